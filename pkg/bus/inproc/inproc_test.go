package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	ch, err := b.Subscribe(context.Background(), "PMD_INFO")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "PMD_INFO", []byte("hello")))

	select {
	case got := <-ch:
		assert.Equal(t, "hello", string(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishOnlyReachesMatchingChannel(t *testing.T) {
	b := New()
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), "PMD_ORDERS")
	require.NoError(t, b.Publish(context.Background(), "PMD_INFO", []byte("wrong channel")))

	select {
	case <-ch:
		t.Fatal("subscriber on a different channel should not receive this publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	defer b.Close()

	a, _ := b.Subscribe(context.Background(), "c")
	c, _ := b.Subscribe(context.Background(), "c")
	require.NoError(t, b.Publish(context.Background(), "c", []byte("x")))

	for _, ch := range []<-chan []byte{a, c} {
		select {
		case got := <-ch:
			assert.Equal(t, "x", string(got))
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New()
	b.Close()
	assert.NoError(t, b.Publish(context.Background(), "c", []byte("x")))
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
