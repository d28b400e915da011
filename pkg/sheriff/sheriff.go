// Package sheriff ties the Model, Reconciliation Engine, and Orders
// Publisher together behind the mode & arbitration rules of spec §4.6:
// a boolean active/observer mode, split-brain self-demotion, and the
// once-per-process sheriff_name identity.
package sheriff

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/publisher"
	"github.com/freitascorp/sheriff/pkg/reconcile"
)

// Sheriff is the process-level façade: one Model, one Reconciliation
// Engine, one Orders Publisher, one mode.
type Sheriff struct {
	Model     *model.Model
	Reconcile *reconcile.Engine
	Publish   *publisher.Publisher

	name   string
	logger *slog.Logger

	mu       sync.Mutex
	observer bool
}

// Name formats sheriff_name as host:pid:start_utime (spec §4.6, §6),
// once at process start — so identical host/pid across restarts never
// collide, because start_utime differs.
func Name(host string, pid int, startUTime int64) string {
	return fmt.Sprintf("%s:%d:%d", host, pid, startUTime)
}

// New wires a Sheriff in the given initial mode. reconcileFactory and
// publisherFactory build the Reconciliation Engine and Orders Publisher
// around the new Model, with the Sheriff as their mode source (and as
// the engine's split-brain handler); logger is the Sheriff's own.
func New(name string, observer bool, logger *slog.Logger, reconcileFactory func(m *model.Model, mode reconcile.ModeSource, sb reconcile.SplitBrainHandler) *reconcile.Engine, publisherFactory func(m *model.Model, mode publisher.ModeSource) *publisher.Publisher) *Sheriff {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sheriff{name: name, logger: logger, observer: observer}
	s.Model = model.New()
	s.Model.SetObserver(observer)
	s.Reconcile = reconcileFactory(s.Model, s, s)
	s.Publish = publisherFactory(s.Model, s)
	return s
}

// IsObserver satisfies both reconcile.ModeSource and publisher.ModeSource.
func (s *Sheriff) IsObserver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observer
}

// SetObserver is the explicit, operator-initiated mode transition.
func (s *Sheriff) SetObserver(observer bool) {
	s.mu.Lock()
	s.observer = observer
	s.mu.Unlock()
	s.Model.SetObserver(observer)
}

// OnForeignOrders implements reconcile.SplitBrainHandler: the implicit,
// Reconciliation-Engine-driven self-demotion of spec §4.4/§4.6.
func (s *Sheriff) OnForeignOrders(foreignName string) {
	s.mu.Lock()
	already := s.observer
	s.observer = true
	s.mu.Unlock()
	s.Model.SetObserver(true)

	if already {
		return
	}
	s.logger.Warn("split-brain detected: demoting to observer", "self", s.name, "foreign_sheriff", foreignName)
	s.Model.Lock()
	s.Model.Emit(model.Event{
		Kind:    model.SplitBrainWarning,
		Warning: fmt.Sprintf("received orders from foreign sheriff %q while active; self-demoted to observer", foreignName),
	})
	s.Model.Unlock()
}

// Run starts the Orders Publisher's periodic loop; the Reconciliation
// Engine has no loop of its own — it is invoked per inbound message by
// whatever owns the bus subscription (cmd/sheriff).
func (s *Sheriff) Run(ctx context.Context) {
	s.Publish.Run(ctx)
}

// StartUTimeNow and Hostname are small seams so callers (cmd/sheriff)
// can build a Name() without reaching into os/time themselves, matching
// the rest of the codebase's preference for injectable clocks.
func StartUTimeNow() int64 { return time.Now().UnixMicro() }

func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}
