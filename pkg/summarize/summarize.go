// Package summarize implements the Incident Summarizer (C10): it
// batches bursts of CommandStatusChanged events per deputy behind a
// debounce window and asks a pluggable LLM backend for a short incident
// note, handed off to notify.Hub as a single Alert.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/notify"
)

// DefaultDebounce matches spec §4.10's default debounce window.
const DefaultDebounce = 5 * time.Second

// Summarizer turns a batch of events into a short incident note.
type Summarizer interface {
	Summarize(ctx context.Context, events []model.Event) (string, error)
}

// sink receives the finished Alert — normally a *notify.Hub, used
// through a narrow interface rather than notify.Hub directly so tests
// can substitute a recorder.
type sink interface {
	Notify(ctx context.Context, a notify.Alert) error
}

// Batcher is a model.Subscriber that accumulates CommandStatusChanged
// events per deputy and, once a batch closes (debounce window elapsed
// with no new events), asks Summarizer for a note and hands it to sink
// as a single Alert.
type Batcher struct {
	backend  Summarizer
	out      sink
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	batches map[string]*batch
}

type batch struct {
	events []model.Event
	timer  *time.Timer
}

// NewBatcher creates a Batcher. debounce <= 0 uses DefaultDebounce.
func NewBatcher(backend Summarizer, out sink, debounce time.Duration, logger *slog.Logger) *Batcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{backend: backend, out: out, debounce: debounce, logger: logger, batches: make(map[string]*batch)}
}

// OnModelEvent implements model.Subscriber.
func (b *Batcher) OnModelEvent(evt model.Event) {
	if evt.Kind != model.CommandStatusChanged {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	bt, ok := b.batches[evt.Deputy]
	if !ok {
		bt = &batch{}
		b.batches[evt.Deputy] = bt
	}
	bt.events = append(bt.events, evt)
	if bt.timer != nil {
		bt.timer.Stop()
	}
	deputy := evt.Deputy
	bt.timer = time.AfterFunc(b.debounce, func() { b.closeBatch(deputy) })
}

func (b *Batcher) closeBatch(deputy string) {
	b.mu.Lock()
	bt, ok := b.batches[deputy]
	if !ok {
		b.mu.Unlock()
		return
	}
	events := bt.events
	delete(b.batches, deputy)
	b.mu.Unlock()

	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, err := b.backend.Summarize(ctx, events)
	if err != nil {
		b.logger.Warn("summarize: backend unavailable, falling back to templated digest", "deputy", deputy, "error", err)
		body = templatedDigest(deputy, events)
	}

	alert := notify.Alert{
		Title:    fmt.Sprintf("incident summary: %s", deputy),
		Body:     body,
		Severity: notify.SeverityWarning,
		Fields:   map[string]string{"deputy": deputy, "event_count": fmt.Sprint(len(events))},
	}
	if err := b.out.Notify(ctx, alert); err != nil {
		b.logger.Warn("summarize: alert delivery failed", "deputy", deputy, "error", err)
	}
}

func templatedDigest(deputy string, events []model.Event) string {
	digest := fmt.Sprintf("%d status change(s) on %s:\n", len(events), deputy)
	for _, e := range events {
		digest += fmt.Sprintf("- %s: %s -> %s\n", e.Command.Nickname, e.OldStatus, e.NewStatus)
	}
	return digest
}
