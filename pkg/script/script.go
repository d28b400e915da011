// Package script implements the Script Engine (C7): a small state
// machine that executes a named, ordered list of actions against the
// Model, one at a time, with cooperative abort.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/reconcile"
)

// PollInterval is the granularity of blocking-wait polling (spec §5:
// "finer granularity for script waits, e.g. 100 ms").
const PollInterval = 100 * time.Millisecond

// PreflightError lists every identifier a script references that the
// Model cannot currently resolve. A script with any unresolved
// identifier does not execute (spec §4.7, §7 ScriptPreflightError).
type PreflightError struct {
	Script     string
	Unresolved []string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("script: %q has unresolved identifiers: %v", e.Script, e.Unresolved)
}

// CommandIssuer is the subset of the Reconciliation Engine's primitives
// the Script Engine drives.
type CommandIssuer interface {
	Start(c *model.Command) error
	Stop(c *model.Command) error
	Restart(c *model.Command) error
}

// Publisher is the subset of the Orders Publisher the Script Engine
// nudges after issuing a desired-state change, so convergence latency
// isn't left to the next periodic tick (spec §4.5).
type Publisher interface {
	Trigger()
}

// State is the engine's own run state, independent of any one script.
type State int

const (
	Idle State = iota
	Running
)

// Engine runs at most one script at a time.
type Engine struct {
	m       *model.Model
	issuer  CommandIssuer
	publish Publisher
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) bool // false if aborted/cancelled

	state State
	abort chan struct{}
}

// New creates a Script Engine bound to m, issuing start/stop/restart
// through issuer (normally a *reconcile.Engine) and nudging publish
// (normally a *publisher.Publisher) after each issuance. publish may be
// nil, e.g. in tests that don't care about publish timing.
func New(m *model.Model, issuer CommandIssuer, publish Publisher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{m: m, issuer: issuer, publish: publish, logger: logger}
	e.sleep = e.defaultSleep
	return e
}

// State reports Idle or Running.
func (e *Engine) State() State { return e.state }

// Abort cooperatively stops the running script at the next wait/action
// boundary; a no-op if nothing is running.
func (e *Engine) Abort() {
	if e.state == Running && e.abort != nil {
		select {
		case e.abort <- struct{}{}:
		default:
		}
	}
}

// Preflight resolves every identifier a script references against the
// current Model, without executing anything.
func (e *Engine) Preflight(s *model.Script) error {
	var unresolved []string
	for _, a := range s.Actions {
		switch a.Target {
		case model.TargetCmd:
			if a.Ident != "" {
				if _, ok := e.findCommandByNickname(a.Ident); !ok {
					unresolved = append(unresolved, a.Ident)
				}
			}
		case model.TargetGroup:
			if a.Ident != "" && !e.groupExists(a.Ident) {
				unresolved = append(unresolved, a.Ident)
			}
		}
	}
	if len(unresolved) > 0 {
		return &PreflightError{Script: s.Name, Unresolved: unresolved}
	}
	return nil
}

// groupExists reports whether any command's group equals ident or is
// nested under it, per spec §8 scenario 5: "Pre-flight succeeds iff
// group "ui" exists."
func (e *Engine) groupExists(ident string) bool {
	for _, c := range e.m.AllCommands() {
		if model.InGroupOrSubgroup(c.Group, ident) {
			return true
		}
	}
	return false
}

// Run executes s to completion or abort. It returns a *PreflightError if
// preflight resolution fails; the script never starts in that case.
func (e *Engine) Run(ctx context.Context, s *model.Script) error {
	if err := e.Preflight(s); err != nil {
		return err
	}

	e.state = Running
	e.abort = make(chan struct{}, 1)
	defer func() {
		e.state = Idle
		e.abort = nil
	}()

	e.emit(model.Event{Kind: model.ScriptStarted, Script: s.Name})

	aborted := false
	for i, a := range s.Actions {
		if e.aborted() {
			aborted = true
			break
		}
		e.emit(model.Event{Kind: model.ScriptActionExecuting, Script: s.Name, ActionIndex: i, ActionString: describe(a)})

		if !e.execute(ctx, a) {
			aborted = true
			break
		}
	}

	e.emit(model.Event{Kind: model.ScriptFinished, Script: s.Name, Warning: finishWarning(aborted)})
	return nil
}

// emit publishes one script-lifecycle event inside its own Model
// critical section, per the lock-held contract on model.Emit.
func (e *Engine) emit(evt model.Event) {
	e.m.Lock()
	e.m.Emit(evt)
	e.m.Unlock()
}

func finishWarning(aborted bool) string {
	if aborted {
		return "aborted"
	}
	return ""
}

func (e *Engine) aborted() bool {
	select {
	case <-e.abort:
		return true
	default:
		return false
	}
}

// execute runs one action, returning false if the script was aborted or
// ctx was cancelled mid-action.
func (e *Engine) execute(ctx context.Context, a model.Action) bool {
	switch a.Kind {
	case model.ActionWaitMs:
		return e.sleep(ctx, time.Duration(a.WaitMs)*time.Millisecond)

	case model.ActionWaitStatus:
		targets := e.resolveTargets(a.Target, a.Ident)
		return e.waitForStatus(ctx, targets, model.Status(a.WaitStatus))

	case model.ActionStart, model.ActionStop, model.ActionRestart:
		targets := e.resolveTargets(a.Target, a.Ident)
		issued := false
		for _, c := range targets {
			var err error
			switch a.Kind {
			case model.ActionStart:
				err = e.issuer.Start(c)
			case model.ActionStop:
				err = e.issuer.Stop(c)
			case model.ActionRestart:
				err = e.issuer.Restart(c)
			}
			if err != nil {
				e.logger.Warn("script: action refused", "error", err)
				continue
			}
			issued = true
		}
		if issued && e.publish != nil {
			e.publish.Trigger()
		}
		if a.WaitStatus == "" {
			return true
		}
		return e.waitForStatus(ctx, targets, model.Status(a.WaitStatus))
	}
	return true
}

// waitForStatus blocks until every command in targets (frozen at issue
// time, per spec §4.7) has the given derived status, polling at
// PollInterval. "Mixed" never matches, per spec §4.7's note — callers
// simply never pass it as a real per-command status.
func (e *Engine) waitForStatus(ctx context.Context, targets []*model.Command, want model.Status) bool {
	if len(targets) == 0 {
		return true
	}
	for {
		allMatch := true
		for _, c := range targets {
			if reconcile.Status(c) != want {
				allMatch = false
				break
			}
		}
		if allMatch {
			return true
		}
		if !e.sleep(ctx, PollInterval) {
			return false
		}
		if e.aborted() {
			return false
		}
	}
}

func (e *Engine) resolveTargets(kind model.TargetKind, ident string) []*model.Command {
	all := e.m.AllCommands()
	switch kind {
	case model.TargetEverything:
		return all
	case model.TargetGroup:
		var out []*model.Command
		for _, c := range all {
			if model.InGroupOrSubgroup(c.Group, ident) {
				out = append(out, c)
			}
		}
		return out
	case model.TargetCmd:
		if c, ok := e.findCommandByNickname(ident); ok {
			return []*model.Command{c}
		}
		return nil
	}
	return nil
}

func (e *Engine) findCommandByNickname(nickname string) (*model.Command, bool) {
	for _, c := range e.m.AllCommands() {
		if c.Nickname == nickname {
			return c, true
		}
	}
	return nil, false
}

func (e *Engine) defaultSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-e.abort:
		return false
	}
}

func describe(a model.Action) string {
	switch a.Kind {
	case model.ActionStart:
		return "start " + describeTarget(a)
	case model.ActionStop:
		return "stop " + describeTarget(a)
	case model.ActionRestart:
		return "restart " + describeTarget(a)
	case model.ActionWaitMs:
		return fmt.Sprintf("wait ms %d", a.WaitMs)
	case model.ActionWaitStatus:
		return fmt.Sprintf("wait %s status %q", describeTarget(a), a.WaitStatus)
	}
	return "unknown action"
}

func describeTarget(a model.Action) string {
	switch a.Target {
	case model.TargetEverything:
		return "everything"
	case model.TargetGroup:
		return "group " + a.Ident
	case model.TargetCmd:
		return "cmd " + a.Ident
	}
	return "?"
}
