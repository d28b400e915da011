// Package history implements the Historian (C11): a pure model.Subscriber
// that records command status transitions, split-brain warnings, and
// script lifecycle events to a pluggable durable Store, for later query
// through Store.Since by an operator investigating an incident.
package history

import (
	"context"
	"time"

	"github.com/freitascorp/sheriff/pkg/model"
)

// Record is one durable, queryable history entry derived from a Model
// event. Unlike model.Event it carries a wall-clock timestamp and no
// zero-value ambiguity between event kinds, since a Store can be asked
// to serialize it to disk or a row.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Deputy    string    `json:"deputy,omitempty"`
	Command   string    `json:"command,omitempty"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	Script    string    `json:"script,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Store is the persistence interface every history backend implements.
type Store interface {
	// Append writes r to the log. Records are immutable once written.
	Append(ctx context.Context, r Record) error

	// Since returns every record with Timestamp >= t, oldest first.
	Since(ctx context.Context, t time.Time) ([]Record, error)

	Close() error
}

// Recorder is a model.Subscriber that renders events into Records and
// appends them to a Store. An Append error is dropped: it is neither
// logged nor surfaced to the Model, so a history backend outage never
// affects reconciliation.
type Recorder struct {
	store  Store
	nowFn  func() time.Time
	nextID func() string
}

// NewRecorder wraps store. nowFn and nextID default to time.Now and a
// monotonic counter-based ID respectively when nil, letting tests supply
// deterministic equivalents.
func NewRecorder(store Store, nowFn func() time.Time, nextID func() string) *Recorder {
	if nowFn == nil {
		nowFn = time.Now
	}
	if nextID == nil {
		nextID = defaultIDGen()
	}
	return &Recorder{store: store, nowFn: nowFn, nextID: nextID}
}

func defaultIDGen() func() string {
	var n uint64
	return func() string {
		n++
		return "hist_" + itoa(n)
	}
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// OnModelEvent implements model.Subscriber.
func (r *Recorder) OnModelEvent(evt model.Event) {
	rec, ok := toRecord(evt)
	if !ok {
		return
	}
	rec.ID = r.nextID()
	rec.Timestamp = r.nowFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.store.Append(ctx, rec)
}

func toRecord(evt model.Event) (Record, bool) {
	switch evt.Kind {
	case model.CommandStatusChanged:
		return Record{
			Kind:      "command_status_changed",
			Deputy:    evt.Deputy,
			Command:   evt.Command.Nickname,
			OldStatus: string(evt.OldStatus),
			NewStatus: string(evt.NewStatus),
		}, true

	case model.CommandAdded:
		return Record{Kind: "command_added", Deputy: evt.Deputy, Command: evt.Command.Nickname}, true

	case model.CommandRemoved:
		return Record{Kind: "command_removed", Deputy: evt.Deputy, Command: evt.Command.Nickname}, true

	case model.SplitBrainWarning:
		return Record{Kind: "split_brain_warning", Detail: evt.Warning}, true

	case model.ScriptStarted:
		return Record{Kind: "script_started", Script: evt.Script}, true

	case model.ScriptFinished:
		return Record{Kind: "script_finished", Script: evt.Script, Detail: evt.Warning}, true

	default:
		return Record{}, false
	}
}
