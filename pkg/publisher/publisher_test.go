package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/bus/inproc"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/wire"
)

type fakeMode struct{ observer bool }

func (f fakeMode) IsObserver() bool { return f.observer }

func TestPublishOnceEmitsOneOrdersPerDeputy(t *testing.T) {
	m := model.New()
	c, err := m.AddCommand("h1", "cat", "catnick", "", false)
	require.NoError(t, err)
	_ = c

	b := inproc.New()
	defer b.Close()
	ch, err := b.Subscribe(context.Background(), "PMD_ORDERS")
	require.NoError(t, err)

	p := New(m, b, fakeMode{false}, "me:1:1", 0, nil)
	p.PublishOnce(context.Background())

	select {
	case payload := <-ch:
		o, err := wire.DecodeOrders(payload)
		require.NoError(t, err)
		assert.Equal(t, "h1", o.Host)
		assert.Equal(t, "me:1:1", o.SheriffName)
		require.Len(t, o.Commands, 1)
		assert.Equal(t, "catnick", o.Commands[0].Nickname)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for orders")
	}
}

func TestPublishOnceExcludesScheduledForRemoval(t *testing.T) {
	m := model.New()
	c, _ := m.AddCommand("h1", "cat", "", "", false)
	d, ok := m.FindDeputy("h1")
	require.True(t, ok)
	d.LastUpdateUTime = 100 // deputy has reported in: removal is deferred, not immediate
	require.NoError(t, m.ScheduleRemoval(c))

	b := inproc.New()
	defer b.Close()
	ch, _ := b.Subscribe(context.Background(), "PMD_ORDERS")

	p := New(m, b, fakeMode{false}, "me:1:1", 0, nil)
	p.PublishOnce(context.Background())

	select {
	case payload := <-ch:
		o, err := wire.DecodeOrders(payload)
		require.NoError(t, err)
		assert.Empty(t, o.Commands, "scheduled-for-removal commands must not be published")
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestPublishOnceSkippedInObserverMode(t *testing.T) {
	m := model.New()
	m.AddDeputy("h1")

	b := inproc.New()
	defer b.Close()
	ch, _ := b.Subscribe(context.Background(), "PMD_ORDERS")

	p := New(m, b, fakeMode{true}, "me:1:1", 0, nil)
	p.PublishOnce(context.Background())

	select {
	case <-ch:
		t.Fatal("observer mode must not publish orders")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTriggerCoalesces(t *testing.T) {
	m := model.New()
	b := inproc.New()
	defer b.Close()
	p := New(m, b, fakeMode{false}, "me:1:1", time.Hour, nil)
	p.Trigger()
	p.Trigger()
	assert.Len(t, p.trigger, 1, "a second Trigger before the first is consumed must coalesce, not block")
}
