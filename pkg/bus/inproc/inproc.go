// Package inproc implements bus.Bus with channels and no network — the
// seam used to unit-test the Reconciliation Engine, Orders Publisher,
// and Sheriff Mode without a real WebSocket transport.
package inproc

import (
	"context"
	"sync"
)

// Bus is an in-memory, process-local implementation of bus.Bus. Every
// Subscribe call on a channel name gets its own independent feed; a
// Publish fans out to all of them.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]chan []byte
	closed bool
}

// New creates an empty in-process bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan []byte)}
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default: // a slow subscriber never blocks a publish
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 64)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, chs := range b.subs {
		for _, ch := range chs {
			close(ch)
		}
	}
	return nil
}
