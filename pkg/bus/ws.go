package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WSBus is a WebSocket hub: deputies (and observer sheriffs) dial in
// outbound, the same way fleet nodes dial into the teacher's relay, so
// the sheriff needs no inbound connectivity from the deputy side beyond
// one listening port. Every connection declares the channels it wants;
// a Publish fans out to every matching connection plus every local
// in-process Subscribe() channel.
type WSBus struct {
	logger *slog.Logger

	mu      sync.RWMutex
	conns   map[*wsConn]struct{}
	local   map[string][]chan []byte
	httpSrv *http.Server
	closed  bool
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	subs map[string]bool
}

// wsEnvelope is the hub's own framing, distinct from the info/orders/
// sheriff-cmd payloads it carries verbatim in Payload.
type wsEnvelope struct {
	Type    string          `json:"type"` // "sub" or "pub"
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWSBus creates a hub with no listener started yet.
func NewWSBus(logger *slog.Logger) *WSBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSBus{
		logger: logger,
		conns:  make(map[*wsConn]struct{}),
		local:  make(map[string][]chan []byte),
	}
}

// ListenAndServe starts the bus's HTTP/WebSocket listener. Blocks until
// ctx is cancelled or the listener errors.
func (b *WSBus) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/bus", b.handleConn)

	b.httpSrv = &http.Server{
		Addr:    addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	b.logger.Info("bus listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() { errCh <- b.httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return b.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (b *WSBus) handleConn(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Warn("bus: accept failed", "error", err)
		return
	}
	wc := &wsConn{conn: c, subs: make(map[string]bool)}

	b.mu.Lock()
	b.conns[wc] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, wc)
		b.mu.Unlock()
		c.Close(websocket.StatusNormalClosure, "bus closing connection")
	}()

	ctx := r.Context()
	for {
		var env wsEnvelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			return
		}
		switch env.Type {
		case "sub":
			wc.mu.Lock()
			wc.subs[env.Channel] = true
			wc.mu.Unlock()
		case "pub":
			b.deliver(ctx, env.Channel, env.Payload, wc)
		default:
			b.logger.Debug("bus: unknown envelope type", "type", env.Type)
		}
	}
}

// Publish implements Bus for locally-originated messages (the sheriff's
// own Orders Publisher).
func (b *WSBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus: closed")
	}
	b.mu.RUnlock()
	b.deliver(ctx, channel, payload, nil)
	return nil
}

// Subscribe implements Bus for local, in-process consumers (the
// Reconciliation Engine).
func (b *WSBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 64)
	b.local[channel] = append(b.local[channel], ch)
	return ch, nil
}

func (b *WSBus) deliver(ctx context.Context, channel string, payload []byte, exclude *wsConn) {
	b.mu.RLock()
	locals := append([]chan []byte(nil), b.local[channel]...)
	var peers []*wsConn
	for wc := range b.conns {
		if wc == exclude {
			continue
		}
		wc.mu.Lock()
		want := wc.subs[channel]
		wc.mu.Unlock()
		if want {
			peers = append(peers, wc)
		}
	}
	b.mu.RUnlock()

	for _, ch := range locals {
		select {
		case ch <- payload:
		default:
		}
	}

	env := wsEnvelope{Type: "pub", Channel: channel, Payload: payload}
	for _, wc := range peers {
		if err := wsjson.Write(ctx, wc.conn, env); err != nil {
			b.logger.Warn("bus: write to peer failed", "channel", channel, "error", err)
		}
	}
}

// Close shuts down every local subscriber channel and connection.
func (b *WSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, chs := range b.local {
		for _, ch := range chs {
			close(ch)
		}
	}
	for wc := range b.conns {
		wc.conn.Close(websocket.StatusGoingAway, "bus shutting down")
	}
	if b.httpSrv != nil {
		return b.httpSrv.Close()
	}
	return nil
}

// DialAndSubscribe connects outbound to a WSBus as a deputy or observer
// sheriff would, declares interest in channel, and returns a feed of raw
// payloads published on it.
func DialAndSubscribe(ctx context.Context, addr, channel string) (*websocket.Conn, <-chan []byte, error) {
	c, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("bus: dial: %w", err)
	}
	if err := wsjson.Write(ctx, c, wsEnvelope{Type: "sub", Channel: channel}); err != nil {
		c.Close(websocket.StatusProtocolError, "subscribe failed")
		return nil, nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			var env wsEnvelope
			if err := wsjson.Read(ctx, c, &env); err != nil {
				return
			}
			if env.Channel == channel {
				select {
				case out <- env.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return c, out, nil
}

// PublishOverDial sends a single payload on a previously dialed
// connection — the shape a deputy uses to publish its own info.
func PublishOverDial(ctx context.Context, c *websocket.Conn, channel string, payload []byte) error {
	return wsjson.Write(ctx, c, wsEnvelope{Type: "pub", Channel: channel, Payload: payload})
}
