package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/bus/inproc"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/publisher"
	"github.com/freitascorp/sheriff/pkg/reconcile"
	"github.com/freitascorp/sheriff/pkg/sheriff"
)

func newTestSheriff(t *testing.T) *sheriff.Sheriff {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconcileFactory := func(m *model.Model, mode reconcile.ModeSource, sb reconcile.SplitBrainHandler) *reconcile.Engine {
		return reconcile.New(m, mode, sb, "test-sheriff", logger, func() int64 { return 0 })
	}
	publisherFactory := func(m *model.Model, mode publisher.ModeSource) *publisher.Publisher {
		return publisher.New(m, nil, mode, "test-sheriff", 0, logger)
	}
	return sheriff.New("test-sheriff", false, logger, reconcileFactory, publisherFactory)
}

func newTestConsole(t *testing.T) *console {
	t.Helper()
	return &console{s: newTestSheriff(t), b: inproc.New(), name: "test-sheriff"}
}

func TestHandleConsoleLineExitCommands(t *testing.T) {
	ctx := context.Background()
	c := newTestConsole(t)
	assert.True(t, c.handleLine(ctx, "exit"))
	assert.True(t, c.handleLine(ctx, "quit"))
	assert.False(t, c.handleLine(ctx, "status"))
	assert.False(t, c.handleLine(ctx, ""))
}

func TestHandleConsoleLineObserverToggle(t *testing.T) {
	ctx := context.Background()
	c := newTestConsole(t)
	c.handleLine(ctx, "observer")
	assert.True(t, c.s.IsObserver())
	c.handleLine(ctx, "active")
	assert.False(t, c.s.IsObserver())
}

func TestApplyConsoleActionStartsKnownCommand(t *testing.T) {
	s := newTestSheriff(t)
	_, err := s.Model.AddCommand("dep1", "/bin/true", "nick1", "", false)
	require.NoError(t, err)

	applyConsoleAction(s, "start", "nick1")

	d, ok := s.Model.FindDeputy("dep1")
	require.True(t, ok)
	c := d.Commands()[0]
	assert.Equal(t, uint32(2), c.DesiredRunID) // AddCommand starts at 1, Start bumps once more
}
