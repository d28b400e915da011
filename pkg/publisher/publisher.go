// Package publisher implements the Orders Publisher (C5): a periodic
// and on-demand job that emits one orders message per deputy describing
// the sheriff's current desired state.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/freitascorp/sheriff/pkg/bus"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/wire"
)

const ordersChannel = "PMD_ORDERS"

// DefaultPeriod matches spec §4.5's default period of one second.
const DefaultPeriod = time.Second

// ModeSource reports whether publishing should happen at all — orders
// are only published in active mode (spec §4.5, §4.6).
type ModeSource interface {
	IsObserver() bool
}

// Publisher periodically (and on demand) publishes one orders message
// per deputy over a bus.Bus.
type Publisher struct {
	m           *model.Model
	b           bus.Bus
	mode        ModeSource
	sheriffName string
	period      time.Duration
	logger      *slog.Logger

	trigger chan struct{}
}

// New creates a Publisher. period <= 0 uses DefaultPeriod.
func New(m *model.Model, b bus.Bus, mode ModeSource, sheriffName string, period time.Duration, logger *slog.Logger) *Publisher {
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		m: m, b: b, mode: mode, sheriffName: sheriffName, period: period, logger: logger,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an out-of-band publish ahead of the next tick — spec
// §4.5's "on-demand publish ... after any user action that changes
// desired state", e.g. called right after Start/Stop/Restart/AddCommand.
func (p *Publisher) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run blocks, publishing on every tick and every Trigger, until ctx is
// cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishAll(ctx)
		case <-p.trigger:
			p.publishAll(ctx)
		}
	}
}

// PublishOnce publishes immediately, synchronously — used directly by
// tests and by any caller that wants to await completion rather than
// rely on Trigger's best-effort coalescing.
func (p *Publisher) PublishOnce(ctx context.Context) {
	p.publishAll(ctx)
}

func (p *Publisher) publishAll(ctx context.Context) {
	if p.mode.IsObserver() {
		return
	}
	for _, d := range p.m.AllDeputies() {
		orders := p.buildOrders(d)
		payload, err := wire.EncodeOrders(orders)
		if err != nil {
			p.logger.Error("publisher: encode failed", "deputy", d.Name, "error", err)
			continue
		}
		if err := p.b.Publish(ctx, ordersChannel, payload); err != nil {
			p.logger.Warn("publisher: publish failed", "deputy", d.Name, "error", err)
		}
	}
}

func (p *Publisher) buildOrders(d *model.Deputy) wire.Orders {
	var cmds []wire.OrdersCommand
	var varNames, varVals []string

	for _, c := range d.Commands() {
		if c.ScheduledForRemoval {
			continue
		}
		cmds = append(cmds, wire.OrdersCommand{
			SheriffID:    c.SheriffID,
			Name:         c.Exec,
			Nickname:     c.Nickname,
			Group:        c.Group,
			DesiredRunID: c.DesiredRunID,
			ForceQuit:    c.ForceQuit,
		})
	}
	for k, v := range d.Variables {
		varNames = append(varNames, k)
		varVals = append(varVals, v)
	}

	return wire.Orders{
		UTime:       nowMicros(),
		Host:        d.Name,
		SheriffName: p.sheriffName,
		Commands:    cmds,
		VarNames:    varNames,
		VarVals:     varVals,
	}
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}
