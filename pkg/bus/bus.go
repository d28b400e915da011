// Package bus defines the abstract publish/subscribe transport the
// Reconciliation Engine and Orders Publisher run over (spec §6), plus a
// concrete WebSocket implementation and an HA peer-status side channel
// used only to diagnose split-brain, never to arbitrate it.
package bus

import "context"

// Bus decouples C4/C5/C6 from any one transport. Publish is fire-and-
// forget; Subscribe returns a channel of raw payloads for one logical
// channel name (e.g. "PMD_INFO", "PMD_ORDERS").
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
