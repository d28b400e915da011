package summarize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/notify"
)

type fakeSummarizer struct {
	note string
	err  error
}

func (f fakeSummarizer) Summarize(ctx context.Context, events []model.Event) (string, error) {
	return f.note, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (s *recordingSink) Notify(ctx context.Context, a notify.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) snapshot() []notify.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Alert(nil), s.alerts...)
}

func TestBatcherClosesAfterDebounceAndSummarizes(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(fakeSummarizer{note: "all good"}, sink, 30*time.Millisecond, nil)

	b.OnModelEvent(model.Event{Kind: model.CommandStatusChanged, Deputy: "h1", Command: model.CommandSnapshot{Nickname: "a"}})
	b.OnModelEvent(model.Event{Kind: model.CommandStatusChanged, Deputy: "h1", Command: model.CommandSnapshot{Nickname: "b"}})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	alerts := sink.snapshot()
	assert.Equal(t, "all good", alerts[0].Body)
	assert.Equal(t, "2", alerts[0].Fields["event_count"])
}

func TestBatcherFallsBackToTemplateOnBackendError(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(fakeSummarizer{err: errors.New("unavailable")}, sink, 20*time.Millisecond, nil)

	b.OnModelEvent(model.Event{Kind: model.CommandStatusChanged, Deputy: "h1", Command: model.CommandSnapshot{Nickname: "a"}, OldStatus: model.StatusRunning, NewStatus: model.StatusStoppedErr})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, sink.snapshot()[0].Body, "a: Running -> Stopped (Error)")
}

func TestBatcherSeparatesByDeputy(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(fakeSummarizer{note: "note"}, sink, 15*time.Millisecond, nil)

	b.OnModelEvent(model.Event{Kind: model.CommandStatusChanged, Deputy: "h1"})
	b.OnModelEvent(model.Event{Kind: model.CommandStatusChanged, Deputy: "h2"})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestBatcherIgnoresNonStatusChangeEvents(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(fakeSummarizer{note: "note"}, sink, 10*time.Millisecond, nil)
	b.OnModelEvent(model.Event{Kind: model.DeputyInfoReceived, Deputy: "h1"})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
}
