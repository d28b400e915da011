package sheriff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/bus/inproc"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/publisher"
	"github.com/freitascorp/sheriff/pkg/reconcile"
)

func newTestSheriff(t *testing.T, observer bool) *Sheriff {
	t.Helper()
	b := inproc.New()
	t.Cleanup(func() { b.Close() })

	return New("me:1:1", observer, nil,
		func(m *model.Model, mode reconcile.ModeSource, sb reconcile.SplitBrainHandler) *reconcile.Engine {
			return reconcile.New(m, mode, sb, "me:1:1", nil, func() int64 { return 0 })
		},
		func(m *model.Model, mode publisher.ModeSource) *publisher.Publisher {
			return publisher.New(m, b, mode, "me:1:1", 0, nil)
		},
	)
}

func TestNameFormatsHostPidUTime(t *testing.T) {
	assert.Equal(t, "host1:42:99", Name("host1", 42, 99))
}

func TestSetObserverTransitionsBothFacadeAndModel(t *testing.T) {
	s := newTestSheriff(t, false)
	s.SetObserver(true)
	assert.True(t, s.IsObserver())
	assert.True(t, s.Model.IsObserver())
}

func TestOnForeignOrdersDemotesAndWarnsOnce(t *testing.T) {
	s := newTestSheriff(t, false)

	var events []model.Event
	s.Model.Subscribe(model.SubscriberFunc(func(e model.Event) { events = append(events, e) }))

	s.OnForeignOrders("other:2:2")
	require.True(t, s.IsObserver())
	require.Len(t, events, 1)
	assert.Equal(t, model.SplitBrainWarning, events[0].Kind)

	s.OnForeignOrders("other:2:2") // already observer: no duplicate warning
	assert.Len(t, events, 1)
}
