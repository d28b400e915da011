package main

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/freitascorp/sheriff/pkg/bus"
	"github.com/freitascorp/sheriff/pkg/wire"
)

// loneRangerDeputy is the minimal local deputy-shaped child-process
// supervisor spawned by -l/--lone-ranger: just enough to exercise the
// info/orders protocol end-to-end against a real OS process, without
// being a full deputy implementation (explicitly out of scope, spec §8
// Non-goals). It tracks exactly the commands named in the most recent
// orders addressed to it.
type loneRangerDeputy struct {
	Name string

	b      bus.Bus
	logger *slog.Logger

	mu     sync.Mutex
	procs  map[uint32]*rangerProc
	cancel context.CancelFunc
}

type rangerProc struct {
	cmd       *exec.Cmd
	running   bool
	desiredID uint32
	actualID  uint32
	nickname  string
	group     string
	exec      string
	exitCode  int32
}

// startLoneRanger subscribes to orders and begins publishing info on a
// fixed tick, the same cadence a real deputy would.
func startLoneRanger(ctx context.Context, b bus.Bus, logger *slog.Logger) (*loneRangerDeputy, error) {
	innerCtx, cancel := context.WithCancel(ctx)

	d := &loneRangerDeputy{
		Name:   "lone-ranger",
		b:      b,
		logger: logger,
		procs:  make(map[uint32]*rangerProc),
		cancel: cancel,
	}

	ordersCh, err := b.Subscribe(innerCtx, ordersChannel)
	if err != nil {
		cancel()
		return nil, err
	}

	go d.ordersLoop(innerCtx, ordersCh)
	go d.infoLoop(innerCtx)

	return d, nil
}

func (d *loneRangerDeputy) Stop() {
	d.cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.procs {
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	}
}

func (d *loneRangerDeputy) ordersLoop(ctx context.Context, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			orders, err := wire.DecodeOrders(payload)
			if err != nil || orders.Host != d.Name {
				continue
			}
			d.applyOrders(orders)
		}
	}
}

func (d *loneRangerDeputy) applyOrders(orders wire.Orders) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, oc := range orders.Commands {
		p, ok := d.procs[oc.SheriffID]
		if !ok {
			p = &rangerProc{}
			d.procs[oc.SheriffID] = p
		}
		p.desiredID = oc.DesiredRunID
		p.nickname = oc.Nickname
		p.group = oc.Group
		p.exec = oc.Name

		wantRunning := p.desiredID != p.actualID && !oc.ForceQuit

		if wantRunning && !p.running {
			d.spawnLocked(p)
		} else if !wantRunning && p.running {
			_ = p.cmd.Process.Kill()
		}
	}
}

func (d *loneRangerDeputy) spawnLocked(p *rangerProc) {
	if p.exec == "" {
		return
	}
	cmd := exec.Command("/bin/sh", "-c", p.exec)
	if err := cmd.Start(); err != nil {
		d.logger.Warn("lone-ranger: spawn failed", "exec", p.exec, "error", err)
		p.exitCode = -1
		return
	}
	p.cmd = cmd
	p.running = true
	p.actualID = p.desiredID
	go func(p *rangerProc, cmd *exec.Cmd) {
		err := cmd.Wait()
		d.mu.Lock()
		defer d.mu.Unlock()
		p.running = false
		if err != nil {
			p.exitCode = 1
		} else {
			p.exitCode = 0
		}
	}(p, cmd)
}

func (d *loneRangerDeputy) infoLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishInfo(ctx)
		}
	}
}

func (d *loneRangerDeputy) publishInfo(ctx context.Context) {
	d.mu.Lock()
	cmds := make([]wire.InfoCommand, 0, len(d.procs))
	for id, p := range d.procs {
		pid := int32(0)
		if p.running && p.cmd.Process != nil {
			pid = int32(p.cmd.Process.Pid)
		}
		cmds = append(cmds, wire.InfoCommand{
			SheriffID:   id,
			Name:        p.exec,
			Nickname:    p.nickname,
			Group:       p.group,
			PID:         pid,
			ActualRunID: p.actualID,
			ExitCode:    p.exitCode,
		})
	}
	d.mu.Unlock()

	info := wire.Info{
		UTime:    time.Now().UnixMicro(),
		Host:     d.Name,
		Commands: cmds,
	}
	payload, err := wire.EncodeInfo(info)
	if err != nil {
		d.logger.Warn("lone-ranger: encode info failed", "error", err)
		return
	}
	if err := d.b.Publish(ctx, infoChannel, payload); err != nil {
		d.logger.Warn("lone-ranger: publish info failed", "error", err)
	}
}
