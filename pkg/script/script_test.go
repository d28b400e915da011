package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/model"
)

type fakeIssuer struct {
	onStart func(c *model.Command)
}

func (f *fakeIssuer) Start(c *model.Command) error {
	if f.onStart != nil {
		f.onStart(c)
	} else {
		c.DesiredRunID++
	}
	return nil
}
func (f *fakeIssuer) Stop(c *model.Command) error    { c.ForceQuit = true; return nil }
func (f *fakeIssuer) Restart(c *model.Command) error { c.DesiredRunID++; return nil }

type fakePublisher struct{ triggers int }

func (f *fakePublisher) Trigger() { f.triggers++ }

func TestPreflightUnresolvedCommandIdentifier(t *testing.T) {
	m := model.New()
	e := New(m, &fakeIssuer{}, nil, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetCmd, Ident: "nosuch"},
	}}
	err := e.Preflight(s)
	require.Error(t, err)
	var pe *PreflightError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"nosuch"}, pe.Unresolved)
}

func TestRunEmitsLifecycleEventsForSimpleScript(t *testing.T) {
	m := model.New()
	e := New(m, &fakeIssuer{}, nil, nil)

	var kinds []model.EventKind
	m.Subscribe(model.SubscriberFunc(func(evt model.Event) { kinds = append(kinds, evt.Kind) }))

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetEverything},
	}}
	require.NoError(t, e.Run(context.Background(), s))

	require.Len(t, kinds, 3)
	assert.Equal(t, model.ScriptStarted, kinds[0])
	assert.Equal(t, model.ScriptActionExecuting, kinds[1])
	assert.Equal(t, model.ScriptFinished, kinds[2])
	assert.Equal(t, Idle, e.State())
}

func TestRunWithWaitMsBlocksApproximatelyThatLong(t *testing.T) {
	m := model.New()
	e := New(m, &fakeIssuer{}, nil, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionWaitMs, WaitMs: 20},
	}}
	start := time.Now()
	require.NoError(t, e.Run(context.Background(), s))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestAbortStopsScriptEarly(t *testing.T) {
	m := model.New()
	e := New(m, &fakeIssuer{}, nil, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionWaitMs, WaitMs: 10_000},
		{Kind: model.ActionWaitMs, WaitMs: 10_000},
	}}

	var finishedWarning string
	m.Subscribe(model.SubscriberFunc(func(evt model.Event) {
		if evt.Kind == model.ScriptFinished {
			finishedWarning = evt.Warning
		}
	}))

	done := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), s)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	e.Abort()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("script did not abort in time")
	}
	assert.Equal(t, "aborted", finishedWarning)
}

func TestStartThenWaitStatusBlocksUntilConvergence(t *testing.T) {
	m := model.New()
	c, err := m.AddCommand("h1", "cat", "catnick", "", false)
	require.NoError(t, err)

	issuer := &fakeIssuer{onStart: func(cmd *model.Command) {
		cmd.DesiredRunID++
		go func() {
			time.Sleep(150 * time.Millisecond)
			cmd.PID = 42
			cmd.ActualRunID = cmd.DesiredRunID
		}()
	}}
	e := New(m, issuer, nil, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetCmd, Ident: "catnick", WaitStatus: string(model.StatusRunning)},
	}}
	start := time.Now()
	require.NoError(t, e.Run(context.Background(), s))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, model.StatusRunning, model.DerivedStatus(c, false))
}

func TestPreflightUnresolvedGroupIdentifier(t *testing.T) {
	m := model.New()
	e := New(m, &fakeIssuer{}, nil, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetGroup, Ident: "ui", WaitStatus: string(model.StatusRunning)},
	}}
	err := e.Preflight(s)
	require.Error(t, err)
	var pe *PreflightError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"ui"}, pe.Unresolved)
}

func TestPreflightResolvesExistingGroupIdentifier(t *testing.T) {
	m := model.New()
	_, err := m.AddCommand("h1", "cat", "catnick", "ui", false)
	require.NoError(t, err)
	e := New(m, &fakeIssuer{}, nil, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetGroup, Ident: "ui", WaitStatus: string(model.StatusRunning)},
	}}
	assert.NoError(t, e.Preflight(s))
}

func TestRunTriggersPublisherAfterIssuingAction(t *testing.T) {
	m := model.New()
	pub := &fakePublisher{}
	e := New(m, &fakeIssuer{}, pub, nil)

	s := &model.Script{Name: "s1", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetEverything},
	}}
	require.NoError(t, e.Run(context.Background(), s))
	assert.Equal(t, 0, pub.triggers, "no targets means nothing was issued, so no trigger")

	_, err := m.AddCommand("h1", "cat", "catnick", "", false)
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background(), s))
	assert.Equal(t, 1, pub.triggers)
}
