package model

import "strings"

// Command is a unit of work a deputy may run on the sheriff's behalf.
// Fields are grouped by who writes them: the sheriff's own mutators write
// the desired-state fields; only the Reconciliation Engine writes the
// observed fields, from info payloads.
type Command struct {
	// Identity, never reused while the command exists.
	SheriffID uint32

	// Desired-state attributes, set by the sheriff.
	Exec         string
	Nickname     string
	Group        string
	AutoRespawn  bool
	DesiredRunID uint32
	ForceQuit    bool

	// Observed attributes, written only by the Reconciliation Engine.
	PID           int32
	ActualRunID   uint32
	ExitCode      int32
	CPUUsage      float64
	MemVsizeBytes uint64
	MemRSSBytes   uint64

	ScheduledForRemoval bool
}

// snapshot copies the identifying + status-relevant fields of a command
// into an event payload, so the event survives later mutation of the
// live Command (spec §4.2 event design).
func (c *Command) snapshot() CommandSnapshot {
	return c.Snapshot()
}

// Snapshot is the exported counterpart of snapshot, for collaborators
// outside this package (the Reconciliation Engine) that build their own
// events around a live Command.
func (c *Command) Snapshot() CommandSnapshot {
	return CommandSnapshot{
		SheriffID: c.SheriffID,
		Exec:      c.Exec,
		Nickname:  c.Nickname,
		Group:     c.Group,
	}
}

// CommandSnapshot is the read-only, back-reference-free copy of a
// command's identifying fields carried by events.
type CommandSnapshot struct {
	SheriffID uint32
	Exec      string
	Nickname  string
	Group     string
}

// Status is the derived status of a command, a pure function of its
// observed + desired state (spec §4.4).
type Status string

const (
	StatusCommandSent Status = "Command Sent"
	StatusRunning     Status = "Running"
	StatusStoppedOK   Status = "Stopped (OK)"
	StatusStoppedErr  Status = "Stopped (Error)"
	StatusUnknown     Status = "Unknown"
)

// DerivedStatus computes a command's status per the decision table in
// spec §4.4. signaledOK reports whether the command's most recent exit
// was caused by SIGTERM/SIGINT/SIGKILL while force_quit was set.
func DerivedStatus(c *Command, signaledOK bool) Status {
	runIDsEqual := c.DesiredRunID == c.ActualRunID

	if !runIDsEqual && !c.ForceQuit {
		return StatusCommandSent // trying to start, or restarting
	}
	if runIDsEqual && c.PID > 0 {
		if !c.ForceQuit && !c.ScheduledForRemoval {
			return StatusRunning
		}
		return StatusCommandSent // stopping/removing
	}
	if runIDsEqual && c.PID == 0 {
		if c.ScheduledForRemoval {
			return StatusCommandSent // removing
		}
		if c.ExitCode == 0 {
			return StatusStoppedOK
		}
		if c.ForceQuit && signaledOK {
			return StatusStoppedOK
		}
		return StatusStoppedErr
	}
	return StatusUnknown
}

// Deputy is the sheriff's view of a remote agent.
type Deputy struct {
	Name string

	commands map[uint32]*Command

	CPULoad         float64
	PhysMemTotal    uint64
	PhysMemFree     uint64
	LastUpdateUTime int64 // microseconds since epoch; 0 = never heard from

	Variables map[string]string
}

// Commands returns a snapshot slice of the deputy's owned commands.
func (d *Deputy) Commands() []*Command {
	out := make([]*Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	return out
}

// OwnsCommand reports whether c is owned by this deputy, identified
// solely by sheriff_id — never by object identity, per spec §9's open
// question about observer-reconstructed commands.
func (d *Deputy) OwnsCommand(c *Command) bool {
	_, ok := d.commands[c.SheriffID]
	return ok
}

// CommandByID looks up a directly owned command by sheriff_id. Intended
// for the Reconciliation Engine, which holds the Model lock itself while
// walking an info/orders payload.
func (d *Deputy) CommandByID(id uint32) (*Command, bool) {
	c, ok := d.commands[id]
	return c, ok
}

// PutCommand inserts or replaces a command under its own sheriff_id.
// Caller must hold the owning Model's lock.
func (d *Deputy) PutCommand(c *Command) {
	d.commands[c.SheriffID] = c
}

// DeleteCommand removes a command by sheriff_id. Caller must hold the
// owning Model's lock.
func (d *Deputy) DeleteCommand(id uint32) {
	delete(d.commands, id)
}

func (d *Deputy) uselessLocked() bool {
	for _, c := range d.commands {
		if !c.ScheduledForRemoval {
			return false
		}
	}
	return true
}

// GroupPath normalizes a command's raw group attribute to its canonical
// path form (no leading/trailing slashes).
func GroupPath(group string) string {
	return strings.Trim(group, "/")
}

// InGroupOrSubgroup reports whether a command's group equals g, or is a
// subgroup of g (group == g + "/" + anything), per spec §4.7's action
// targeting rule.
func InGroupOrSubgroup(commandGroup, g string) bool {
	cg := GroupPath(commandGroup)
	g = GroupPath(g)
	if g == "" {
		return true // the root group contains everything
	}
	return cg == g || strings.HasPrefix(cg, g+"/")
}

// ------------------------------------------------------------------
// Scripts
// ------------------------------------------------------------------

// ActionKind enumerates the action shapes the grammar accepts (spec §4.1,
// §4.7).
type ActionKind int

const (
	ActionStart ActionKind = iota
	ActionStop
	ActionRestart
	ActionWaitMs
	ActionWaitStatus
)

// TargetKind enumerates what an action addresses.
type TargetKind int

const (
	TargetEverything TargetKind = iota
	TargetGroup
	TargetCmd
)

// Action is one step of a Script.
type Action struct {
	Kind ActionKind

	Target     TargetKind
	Ident      string // group name or command nickname; unused for TargetEverything
	WaitStatus string // non-empty if start/stop/restart/wait_status should block on this status

	WaitMs int64 // only for ActionWaitMs
}

// Script is a named ordered list of actions.
type Script struct {
	Name    string
	Actions []Action
}
