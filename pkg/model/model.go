// Package model is the in-memory, single-writer registry of deputies,
// commands, groups, and scripts that the sheriff controls. It is the
// authoritative state the Reconciliation Engine mutates and every other
// subscriber (alerting, history, dashboard) only ever reads through
// emitted, already-copied events.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Errors surfaced to callers, per the error-kind taxonomy of the sheriff's
// error handling design.
var (
	ErrObserverMode     = errors.New("model: mutating operation refused in observer mode")
	ErrNoSuchCommand    = errors.New("model: no such command")
	ErrNoSuchDeputy     = errors.New("model: no such deputy")
	ErrNoSuchScript     = errors.New("model: no such script")
	ErrExhaustedIDSpace = errors.New("model: no available sheriff id")
)

const (
	maxSheriffID = (1 << 30) - 1
	idScanBudget = 1 << 16
)

// Model is the sheriff's exclusive, single-writer registry, guarded by
// Model.mu. The public mutators (AddCommand, ScheduleRemoval, the Set*
// methods, ...) take mu themselves and must not be called with it held.
// The *Locked variants, Emit, and Deputy's PutCommand/DeleteCommand/
// CommandByID instead expect the caller to hold mu: Lock/Unlock are
// exported so the Reconciliation Engine and Script Engine can hold the
// lock across several of those steps, including event emission.
type Model struct {
	mu sync.Mutex

	observer bool

	deputies map[string]*Deputy
	idCursor uint32

	scripts map[string]*Script

	subscribers []Subscriber
}

// New creates an empty Model in active mode.
func New() *Model {
	return &Model{
		deputies: make(map[string]*Deputy),
		scripts:  make(map[string]*Script),
		idCursor: 1,
	}
}

// Lock/Unlock expose the Model's single exclusive lock so that a caller
// dispatching one inbound message or one script action can hold it across
// several mutations and their event emissions, per spec §5.
func (m *Model) Lock()   { m.mu.Lock() }
func (m *Model) Unlock() { m.mu.Unlock() }

// IsObserver reports whether the model currently refuses mutating calls.
func (m *Model) IsObserver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observer
}

// SetObserver explicitly transitions the mode. Unlike split-brain
// self-demotion (driven by the Reconciliation Engine), this is a direct,
// user- or operator-initiated transition.
func (m *Model) SetObserver(observer bool) {
	m.mu.Lock()
	m.observer = observer
	m.mu.Unlock()
}

func (m *Model) requireActiveLocked() error {
	if m.observer {
		return ErrObserverMode
	}
	return nil
}

// Subscribe registers a listener for model events. Subscribers are
// invoked synchronously, inside the same critical section that produced
// the event, and must not call back into the Model.
func (m *Model) Subscribe(s Subscriber) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, s)
	m.mu.Unlock()
}

func (m *Model) emitLocked(evt Event) {
	for _, s := range m.subscribers {
		s.OnModelEvent(evt)
	}
}

// ------------------------------------------------------------------
// Deputies
// ------------------------------------------------------------------

// AddDeputy is idempotent: it returns the existing deputy if name is
// already known, or creates and registers a new one.
func (m *Model) AddDeputy(name string) *Deputy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addDeputyLocked(name)
}

func (m *Model) addDeputyLocked(name string) *Deputy {
	if d, ok := m.deputies[name]; ok {
		return d
	}
	d := &Deputy{
		Name:      name,
		commands:  make(map[uint32]*Command),
		Variables: make(map[string]string),
	}
	m.deputies[name] = d
	return d
}

// AddDeputyLocked is the exported, caller-holds-the-lock counterpart of
// AddDeputy, for collaborators (the Reconciliation Engine) that already
// hold m's lock across a whole dispatch.
func (m *Model) AddDeputyLocked(name string) *Deputy {
	return m.addDeputyLocked(name)
}

// FindDeputy returns the deputy with the given name, if any.
func (m *Model) FindDeputy(name string) (*Deputy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deputies[name]
	return d, ok
}

// AllDeputies returns a snapshot slice of all known deputies, sorted by
// name for deterministic iteration by callers (publisher, CLI, tests).
func (m *Model) AllDeputies() []*Deputy {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Deputy, 0, len(m.deputies))
	for _, d := range m.deputies {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PurgeUselessDeputies removes every deputy whose command set is empty or
// contains only commands scheduled for removal.
func (m *Model) PurgeUselessDeputies() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, d := range m.deputies {
		if d.uselessLocked() {
			delete(m.deputies, name)
		}
	}
}

// ------------------------------------------------------------------
// Commands
// ------------------------------------------------------------------

// AddCommand allocates a fresh sheriff_id and attaches a new Command to
// the named deputy (creating the deputy if needed). Refused in observer
// mode, per spec §4.2.
func (m *Model) AddCommand(deputyName, exec, nickname, group string, autoRespawn bool) (*Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActiveLocked(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(exec) == "" {
		return nil, fmt.Errorf("model: exec must be non-empty")
	}

	id, err := m.allocateIDLocked()
	if err != nil {
		return nil, err
	}

	d := m.addDeputyLocked(deputyName)
	c := &Command{
		SheriffID:    id,
		Exec:         exec,
		Nickname:     nickname,
		Group:        group,
		AutoRespawn:  autoRespawn,
		DesiredRunID: 1,
	}
	d.commands[id] = c

	m.emitLocked(Event{Kind: CommandAdded, Deputy: d.Name, Command: c.snapshot()})
	return c, nil
}

// allocateIDLocked scans forward from the cursor, skipping ids already in
// use by any command on any deputy, per the allocation algorithm of
// spec §4.2.
func (m *Model) allocateIDLocked() (uint32, error) {
	used := make(map[uint32]bool)
	for _, d := range m.deputies {
		for id := range d.commands {
			used[id] = true
		}
	}

	cursor := m.idCursor
	for i := 0; i < idScanBudget; i++ {
		if cursor == 0 || cursor > maxSheriffID {
			cursor = 1
		}
		if !used[cursor] {
			m.idCursor = cursor + 1
			return cursor, nil
		}
		cursor++
	}
	return 0, ErrExhaustedIDSpace
}

// FindCommandByID scans every deputy for the command with the given id.
func (m *Model) FindCommandByID(id uint32) (*Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deputies {
		if c, ok := d.commands[id]; ok {
			return c, true
		}
	}
	return nil, false
}

// FindCommandDeputy resolves the deputy owning a command by scanning the
// deputy list — adequate at realistic fleet sizes per spec §9's design
// note on avoiding a back-pointer cycle.
func (m *Model) FindCommandDeputy(c *Command) (*Deputy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deputies {
		if _, ok := d.commands[c.SheriffID]; ok {
			return d, true
		}
	}
	return nil, false
}

// AllCommands returns every command across every deputy, in no
// particular cross-deputy order (spec §5: "Across deputies no ordering
// is guaranteed").
func (m *Model) AllCommands() []*Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Command
	for _, d := range m.deputies {
		for _, c := range d.commands {
			out = append(out, c)
		}
	}
	return out
}

// ScheduleRemoval marks a command for removal. If the owning deputy has
// never been heard from, the command is deleted immediately rather than
// waiting for a future info message to confirm its absence (spec §4.2).
func (m *Model) ScheduleRemoval(c *Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActiveLocked(); err != nil {
		return err
	}
	d, ok := m.findOwnerLocked(c.SheriffID)
	if !ok {
		return ErrNoSuchCommand
	}
	c.ScheduledForRemoval = true

	if d.LastUpdateUTime == 0 {
		delete(d.commands, c.SheriffID)
		m.emitLocked(Event{Kind: CommandRemoved, Deputy: d.Name, Command: c.snapshot()})
		return nil
	}
	return nil
}

// MoveCommand schedules c for removal on its current deputy and re-adds
// an equivalent command (with a freshly allocated sheriff_id) on
// newDeputyName. The old command lingers until its deputy's next info
// confirms the absence, same as ScheduleRemoval; it is deleted
// immediately only if that deputy has never been heard from.
func (m *Model) MoveCommand(c *Command, newDeputyName string) (*Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActiveLocked(); err != nil {
		return nil, err
	}
	d, ok := m.findOwnerLocked(c.SheriffID)
	if !ok {
		return nil, ErrNoSuchCommand
	}

	id, err := m.allocateIDLocked()
	if err != nil {
		return nil, err
	}

	c.ScheduledForRemoval = true
	if d.LastUpdateUTime == 0 {
		delete(d.commands, c.SheriffID)
		m.emitLocked(Event{Kind: CommandRemoved, Deputy: d.Name, Command: c.snapshot()})
	}

	nd := m.addDeputyLocked(newDeputyName)
	moved := &Command{
		SheriffID:    id,
		Exec:         c.Exec,
		Nickname:     c.Nickname,
		Group:        c.Group,
		AutoRespawn:  c.AutoRespawn,
		DesiredRunID: 1,
	}
	nd.commands[id] = moved
	m.emitLocked(Event{Kind: CommandAdded, Deputy: nd.Name, Command: moved.snapshot()})
	return moved, nil
}

func (m *Model) findOwnerLocked(id uint32) (*Deputy, bool) {
	for _, d := range m.deputies {
		if _, ok := d.commands[id]; ok {
			return d, true
		}
	}
	return nil, false
}

// SetGroup, SetName, SetNickname, SetAutoRespawn mutate a single
// attribute directly, refused in observer mode.
func (m *Model) SetGroup(c *Command, group string) error {
	return m.mutateAttrLocked(c, func() { c.Group = group; emitGroupChanged(m, c) })
}

// SetName renames a command's exec, the wire "name" field (spec §4.2).
func (m *Model) SetName(c *Command, exec string) error {
	return m.mutateAttrLocked(c, func() { c.Exec = exec })
}

// SetExec is an alias of SetName, for callers speaking the config
// grammar's "exec" attribute name rather than the wire's "name" field.
func (m *Model) SetExec(c *Command, exec string) error {
	return m.SetName(c, exec)
}

func (m *Model) SetNickname(c *Command, nickname string) error {
	return m.mutateAttrLocked(c, func() { c.Nickname = nickname })
}

func (m *Model) SetAutoRespawn(c *Command, autoRespawn bool) error {
	return m.mutateAttrLocked(c, func() { c.AutoRespawn = autoRespawn })
}

func emitGroupChanged(m *Model, c *Command) {
	m.emitLocked(Event{Kind: CommandGroupChanged, Command: c.snapshot()})
}

func (m *Model) mutateAttrLocked(c *Command, mutate func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireActiveLocked(); err != nil {
		return err
	}
	if _, ok := m.findOwnerLocked(c.SheriffID); !ok {
		return ErrNoSuchCommand
	}
	mutate()
	return nil
}

// ------------------------------------------------------------------
// Scripts
// ------------------------------------------------------------------

// AddScript registers a new named script. Script names are unique.
func (m *Model) AddScript(s *Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[s.Name]; ok {
		return fmt.Errorf("model: script %q already exists", s.Name)
	}
	m.scripts[s.Name] = s
	m.emitLocked(Event{Kind: ScriptAdded, Script: s.Name})
	return nil
}

// RemoveScript deletes a script by name.
func (m *Model) RemoveScript(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[name]; !ok {
		return ErrNoSuchScript
	}
	delete(m.scripts, name)
	m.emitLocked(Event{Kind: ScriptRemoved, Script: name})
	return nil
}

// FindScript looks up a script by name.
func (m *Model) FindScript(name string) (*Script, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scripts[name]
	return s, ok
}

// AllScripts returns every registered script, sorted by name.
func (m *Model) AllScripts() []*Script {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Script, 0, len(m.scripts))
	for _, s := range m.scripts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Emit lets collaborators outside the core mutators (e.g. the Script
// Engine, which issues Start/Stop/Restart through the Reconciliation
// Engine but owns its own ScriptStarted/Finished lifecycle) publish
// events inside a caller-held lock.
func (m *Model) Emit(evt Event) {
	m.emitLocked(evt)
}
