package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/model"
)

type recordingBackend struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
	delay  time.Duration
}

func (b *recordingBackend) Notify(ctx context.Context, a Alert) error {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	b.alerts = append(b.alerts, a)
	b.mu.Unlock()
	return b.err
}

func (b *recordingBackend) snapshot() []Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Alert(nil), b.alerts...)
}

func TestHubRendersStoppedErrorStatusChange(t *testing.T) {
	backend := &recordingBackend{}
	h := NewHub([]Notifier{backend}, 1, 4, nil)

	h.OnModelEvent(model.Event{
		Kind: model.CommandStatusChanged, Deputy: "h1",
		Command:   model.CommandSnapshot{Nickname: "cat"},
		OldStatus: model.StatusRunning, NewStatus: model.StatusStoppedErr,
	})
	h.Close()

	alerts := backend.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityError, alerts[0].Severity)
}

func TestHubIgnoresNonAlertableStatusChange(t *testing.T) {
	backend := &recordingBackend{}
	h := NewHub([]Notifier{backend}, 1, 4, nil)

	h.OnModelEvent(model.Event{Kind: model.CommandStatusChanged, OldStatus: model.StatusCommandSent, NewStatus: model.StatusRunning})
	h.Close()

	assert.Empty(t, backend.snapshot())
}

func TestHubRendersSplitBrainWarning(t *testing.T) {
	backend := &recordingBackend{}
	h := NewHub([]Notifier{backend}, 1, 4, nil)

	h.OnModelEvent(model.Event{Kind: model.SplitBrainWarning, Warning: "foreign sheriff detected"})
	h.Close()

	alerts := backend.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "foreign sheriff detected", alerts[0].Body)
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	backend := &recordingBackend{delay: 200 * time.Millisecond}
	h := NewHub([]Notifier{backend}, 1, 1, nil)
	defer h.Close()

	for i := 0; i < 10; i++ {
		h.OnModelEvent(model.Event{Kind: model.SplitBrainWarning, Warning: "w"})
	}
	// No assertion on exact delivered count: the point is this never blocks.
}
