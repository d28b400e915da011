// Package reconcile implements the sheriff's Reconciliation Engine (C4):
// it merges incoming info/orders into the Model, computes status
// transitions, and issues the start/stop/restart primitives that mutate
// desired state only (spec §4.4).
package reconcile

import (
	"log/slog"

	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/wire"
)

const (
	staleInfoWindowMicros = 30 * 1_000_000 // 30s, spec §4.4 step 2
	runIDWrap             = 1 << 31
)

// ModeSource reports whether the engine is currently running as the
// active sheriff or as an observer (spec §4.4, §4.6). Orders are only
// acted upon in observer mode; info is dropped as stale only in active
// mode.
type ModeSource interface {
	IsObserver() bool
}

// SplitBrainHandler is notified when an orders message from a foreign
// sheriff arrives while this process is active (spec §4.4 split-brain
// detection). It is expected to flip the mode to observer and surface a
// warning.
type SplitBrainHandler interface {
	OnForeignOrders(sheriffName string)
}

// Engine is the Reconciliation Engine. It holds no state of its own
// beyond references to collaborators — all state lives in *model.Model.
type Engine struct {
	m           *model.Model
	mode        ModeSource
	splitBrain  SplitBrainHandler
	sheriffName string
	logger      *slog.Logger
	now         func() int64 // microseconds since epoch; overridable in tests
}

// New creates a Reconciliation Engine bound to m.
func New(m *model.Model, mode ModeSource, splitBrain SplitBrainHandler, sheriffName string, logger *slog.Logger, nowMicros func() int64) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{m: m, mode: mode, splitBrain: splitBrain, sheriffName: sheriffName, logger: logger, now: nowMicros}
}

// OnInfo implements spec §4.4's info path. Decode failures are logged and
// dropped, never surfaced to the caller, per spec §7.
func (e *Engine) OnInfo(payload []byte) {
	info, err := wire.DecodeInfo(payload)
	if err != nil {
		e.logger.Warn("dropping malformed info payload", "error", err)
		return
	}
	e.onInfo(info)
}

func (e *Engine) onInfo(info wire.Info) {
	now := e.now()
	if !e.mode.IsObserver() && now-info.UTime > staleInfoWindowMicros {
		e.logger.Debug("dropping stale info", "host", info.Host, "age_us", now-info.UTime)
		return
	}

	e.m.Lock()
	defer e.m.Unlock()

	d := e.m.AddDeputyLocked(info.Host)
	seen := make(map[uint32]bool, len(info.Commands))

	for _, ic := range info.Commands {
		seen[ic.SheriffID] = true
		c, existing := d.CommandByID(ic.SheriffID)
		if existing {
			oldStatus := statusOf(c)
			applyObserved(c, ic)
			newStatus := statusOf(c)
			if oldStatus != newStatus {
				e.m.Emit(model.Event{
					Kind: model.CommandStatusChanged, Deputy: d.Name,
					Command: c.Snapshot(), OldStatus: oldStatus, NewStatus: newStatus,
				})
			}
		} else {
			c = &model.Command{
				SheriffID:    ic.SheriffID,
				Exec:         ic.Name,
				Nickname:     ic.Nickname,
				Group:        ic.Group,
				DesiredRunID: ic.ActualRunID, // freshly observed running command isn't restarted, spec §4.4
			}
			applyObserved(c, ic)
			d.PutCommand(c)
			e.m.Emit(model.Event{Kind: model.CommandAdded, Deputy: d.Name, Command: c.Snapshot()})
		}
	}

	for _, c := range d.Commands() {
		if c.ScheduledForRemoval && !seen[c.SheriffID] {
			d.DeleteCommand(c.SheriffID)
			e.m.Emit(model.Event{Kind: model.CommandRemoved, Deputy: d.Name, Command: c.Snapshot()})
		}
	}

	d.CPULoad = info.CPULoad
	d.PhysMemTotal = info.PhysMemTotal
	d.PhysMemFree = info.PhysMemFree
	d.LastUpdateUTime = now

	e.m.Emit(model.Event{Kind: model.DeputyInfoReceived, Deputy: d.Name})
}

// OnOrders implements spec §4.4's orders path and §4.4/§4.6 split-brain
// detection. Orders are only acted upon in observer mode; in active mode
// a foreign sheriff_name triggers self-demotion instead.
func (e *Engine) OnOrders(payload []byte) {
	orders, err := wire.DecodeOrders(payload)
	if err != nil {
		e.logger.Warn("dropping malformed orders payload", "error", err)
		return
	}
	e.onOrders(orders)
}

func (e *Engine) onOrders(orders wire.Orders) {
	if !e.mode.IsObserver() {
		if orders.SheriffName != "" && orders.SheriffName != e.sheriffName {
			e.splitBrain.OnForeignOrders(orders.SheriffName)
		}
		return
	}

	e.m.Lock()
	defer e.m.Unlock()

	d := e.m.AddDeputyLocked(orders.Host)
	seen := make(map[uint32]bool, len(orders.Commands))

	for _, oc := range orders.Commands {
		seen[oc.SheriffID] = true
		c, existing := d.CommandByID(oc.SheriffID)
		if existing {
			c.Nickname = oc.Nickname
			c.Group = oc.Group
			c.DesiredRunID = oc.DesiredRunID
			c.ForceQuit = oc.ForceQuit
		} else {
			c = &model.Command{
				SheriffID:    oc.SheriffID,
				Exec:         oc.Name,
				Nickname:     oc.Nickname,
				Group:        oc.Group,
				DesiredRunID: oc.DesiredRunID,
				ForceQuit:    oc.ForceQuit,
			}
			d.PutCommand(c)
			e.m.Emit(model.Event{Kind: model.CommandAdded, Deputy: d.Name, Command: c.Snapshot()})
		}
	}

	for _, c := range d.Commands() {
		if !seen[c.SheriffID] && !c.ScheduledForRemoval {
			c.ScheduledForRemoval = true
		}
	}
}

func applyObserved(c *model.Command, ic wire.InfoCommand) {
	c.PID = ic.PID
	c.ActualRunID = ic.ActualRunID
	c.ExitCode = ic.ExitCode
	c.CPUUsage = ic.CPUUsage
	c.MemVsizeBytes = ic.MemVsizeBytes
	c.MemRSSBytes = ic.MemRSSBytes
}

// statusOf computes a command's derived status, decoding its exit_code as
// a raw wait-status to check for an allowed stop signal per spec §6.
func statusOf(c *model.Command) model.Status {
	signaledOK := false
	if c.ForceQuit {
		if sig, ok := exitedViaSignal(c.ExitCode); ok && isAllowedStopSignal(sig) {
			signaledOK = true
		}
	}
	return model.DerivedStatus(c, signaledOK)
}

// ------------------------------------------------------------------
// Command-issuing primitives (spec §4.4) — mutate desired state only.
// ------------------------------------------------------------------

// Start requests a command be running. A no-op if it already has a pid.
// Refused in observer mode, per spec §4.6 and the §8 arbitration property.
func (e *Engine) Start(c *model.Command) error {
	e.m.Lock()
	defer e.m.Unlock()
	if e.mode.IsObserver() {
		return model.ErrObserverMode
	}
	if c.PID > 0 {
		return nil
	}
	bumpRunID(c)
	c.ForceQuit = false
	return nil
}

// Restart unconditionally bumps desired_runid and clears force_quit.
// Refused in observer mode, per spec §4.6 and the §8 arbitration property.
func (e *Engine) Restart(c *model.Command) error {
	e.m.Lock()
	defer e.m.Unlock()
	if e.mode.IsObserver() {
		return model.ErrObserverMode
	}
	bumpRunID(c)
	c.ForceQuit = false
	return nil
}

// Stop requests a command be terminated. Refused in observer mode, per
// spec §4.6 and the §8 arbitration property.
func (e *Engine) Stop(c *model.Command) error {
	e.m.Lock()
	defer e.m.Unlock()
	if e.mode.IsObserver() {
		return model.ErrObserverMode
	}
	c.ForceQuit = true
	return nil
}

func bumpRunID(c *model.Command) {
	c.DesiredRunID++
	if c.DesiredRunID == 0 || c.DesiredRunID >= runIDWrap {
		c.DesiredRunID = 1
	}
}

// Status returns a command's current derived status.
func Status(c *model.Command) model.Status {
	return statusOf(c)
}
