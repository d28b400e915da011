package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/model"
)

func TestLoadIntoModelAddsCommandsUnderOneDeputy(t *testing.T) {
	cfg, err := Parse(`
		cmd "alpha" { exec = "/bin/alpha"; group = "svc"; }
		cmd { exec = "/bin/beta"; }
	`)
	require.NoError(t, err)

	m := model.New()
	require.NoError(t, LoadIntoModel(cfg, m, "dep1"))

	d, ok := m.FindDeputy("dep1")
	require.True(t, ok)
	assert.Len(t, d.Commands(), 2)
}

func TestLoadIntoModelRefusedInObserverMode(t *testing.T) {
	cfg := NewConfig()
	m := model.New()
	m.SetObserver(true)
	err := LoadIntoModel(cfg, m, "dep1")
	assert.ErrorIs(t, err, model.ErrObserverMode)
}

func TestLoadIntoModelReplacesExistingCommands(t *testing.T) {
	m := model.New()
	_, err := m.AddCommand("dep1", "/bin/old", "old", "", false)
	require.NoError(t, err)

	cfg, err := Parse(`cmd "new" { exec = "/bin/new"; }`)
	require.NoError(t, err)
	require.NoError(t, LoadIntoModel(cfg, m, "dep1"))

	// dep1 has never been heard from (LastUpdateUTime == 0), so the old
	// command is deleted immediately rather than merely scheduled,
	// per spec §4.2 — only "new" survives.
	d, _ := m.FindDeputy("dep1")
	names := []string{}
	for _, c := range d.Commands() {
		names = append(names, c.Nickname)
	}
	assert.Equal(t, []string{"new"}, names)
}

func TestDumpModelRoundTripsThroughEmitAndParse(t *testing.T) {
	m := model.New()
	_, err := m.AddCommand("dep1", "/bin/alpha", "alpha", "svc", true)
	require.NoError(t, err)
	_, err = m.AddCommand("dep1", "/bin/beta", "", "", false)
	require.NoError(t, err)
	require.NoError(t, m.AddScript(&model.Script{Name: "go", Actions: []model.Action{
		{Kind: model.ActionStart, Target: model.TargetEverything},
	}}))

	cfg := DumpModel(m)
	text := Emit(cfg)

	reparsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, Normalize(cfg), Normalize(reparsed))
}
