// Package notify implements the Alerting Fan-out (C9): a pure Model
// subscriber that renders status-change, split-brain, and script-
// lifecycle events into Alerts and fans them out to zero or more chat
// backends, never touching the Model itself.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/freitascorp/sheriff/pkg/model"
)

// Severity classifies an Alert for backends that color-code messages.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Alert is a rendered, human-readable notification derived from one or
// more Model/Reconciliation events.
type Alert struct {
	Title    string
	Body     string
	Severity Severity
	Fields   map[string]string
}

// Notifier is the minimal sink every chat backend implements.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// SendTimeout bounds how long the Hub waits for one backend's Notify
// before giving up on that delivery and logging a warning.
const SendTimeout = 5 * time.Second

// Hub is one more model.Subscriber. It renders a subset of events into
// Alerts and dispatches them to every configured backend over a bounded
// worker pool, so a slow or wedged chat integration can never stall
// Model mutation (spec §4.9).
type Hub struct {
	backends []Notifier
	logger   *slog.Logger

	jobs chan Alert
	wg   sync.WaitGroup
}

// NewHub starts workers workers pulling from a bounded queue of depth
// queueDepth. Alerts submitted once the queue is full are dropped (and
// logged), never blocking the caller.
func NewHub(backends []Notifier, workers, queueDepth int, logger *slog.Logger) *Hub {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{backends: backends, logger: logger, jobs: make(chan Alert, queueDepth)}
	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
	return h
}

func (h *Hub) worker() {
	defer h.wg.Done()
	for a := range h.jobs {
		for _, b := range h.backends {
			ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
			if err := b.Notify(ctx, a); err != nil {
				h.logger.Warn("notify: backend delivery failed", "title", a.Title, "error", err)
			}
			cancel()
		}
	}
}

// Notify enqueues an already-rendered Alert directly, bypassing the
// Model-event renderer — the seam summarize.Batcher uses to hand off a
// closed incident batch as one Alert. ctx is not threaded through the
// queue; delivery happens on a worker with its own SendTimeout.
func (h *Hub) Notify(ctx context.Context, a Alert) error {
	select {
	case h.jobs <- a:
	default:
		h.logger.Warn("notify: queue full, dropping alert", "title", a.Title)
	}
	return nil
}

// Close stops accepting new alerts and waits for in-flight deliveries.
func (h *Hub) Close() {
	close(h.jobs)
	h.wg.Wait()
}

// OnModelEvent implements model.Subscriber. Only the subset of events
// worth alerting a human about are rendered; everything else is a no-op.
func (h *Hub) OnModelEvent(evt model.Event) {
	a, ok := render(evt)
	if !ok {
		return
	}
	select {
	case h.jobs <- a:
	default:
		h.logger.Warn("notify: queue full, dropping alert", "title", a.Title)
	}
}

func render(evt model.Event) (Alert, bool) {
	switch evt.Kind {
	case model.CommandStatusChanged:
		if evt.NewStatus != model.StatusStoppedErr {
			return Alert{}, false
		}
		return Alert{
			Title:    "command stopped with error",
			Body:     evt.Command.Nickname + " on " + evt.Deputy + " transitioned to Stopped (Error)",
			Severity: SeverityError,
			Fields: map[string]string{
				"deputy": evt.Deputy, "command": evt.Command.Nickname,
				"old_status": string(evt.OldStatus), "new_status": string(evt.NewStatus),
			},
		}, true

	case model.SplitBrainWarning:
		return Alert{Title: "split-brain detected", Body: evt.Warning, Severity: SeverityWarning}, true

	case model.ScriptFinished:
		if evt.Warning != "aborted" {
			return Alert{}, false
		}
		return Alert{Title: "script aborted", Body: "script " + evt.Script + " was aborted", Severity: SeverityWarning}, true

	default:
		return Alert{}, false
	}
}
