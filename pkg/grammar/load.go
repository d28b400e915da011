package grammar

import "github.com/freitascorp/sheriff/pkg/model"

// LoadIntoModel applies a parsed Config to m, the way the original
// sheriff's load_config replaced a deputy's whole command set: every
// command currently owned by deputyName is scheduled for removal, then
// every command the Config describes is (re-)added fresh under
// deputyName. The Config grammar carries no deputy identity of its own
// (the per-command "host" attribute is parsed but ignored at the model
// level, spec §9) — callers name the single deputy a loaded file
// applies to, exactly as `-l/--lone-ranger` does for its embedded local
// deputy. Forbidden in observer mode, same as any other Model mutation.
func LoadIntoModel(cfg *Config, m *model.Model, deputyName string) error {
	if m.IsObserver() {
		return model.ErrObserverMode
	}

	if d, ok := m.FindDeputy(deputyName); ok {
		for _, c := range d.Commands() {
			_ = m.ScheduleRemoval(c)
		}
	}

	for groupName, g := range cfg.Groups {
		for _, cmd := range g.Commands {
			group := groupName
			if groupName == "" && cmd.Group != "" {
				group = cmd.Group
			}
			if _, err := m.AddCommand(deputyName, cmd.Exec, cmd.Nickname, group, cmd.AutoRespawn); err != nil {
				return err
			}
		}
	}

	for _, s := range cfg.Scripts {
		modelScript := &model.Script{Name: s.Name, Actions: toModelActions(s.Actions)}
		if err := m.AddScript(modelScript); err != nil {
			return err
		}
	}
	return nil
}

// DumpModel snapshots m into a Config, the inverse of LoadIntoModel,
// suitable for Emit-ing back to text (spec §4.1's "Config Grammar
// loads/dumps Model"). Commands scheduled for removal are omitted, same
// as they are from outgoing orders.
func DumpModel(m *model.Model) *Config {
	cfg := NewConfig()
	for _, c := range m.AllCommands() {
		if c.ScheduledForRemoval {
			continue
		}
		group := model.GroupPath(c.Group)
		g, ok := cfg.Groups[group]
		if !ok {
			g = &Group{Name: group}
			cfg.Groups[group] = g
		}
		g.Commands = append(g.Commands, &Command{
			Nickname:    c.Nickname,
			Exec:        c.Exec,
			AutoRespawn: c.AutoRespawn,
		})
	}
	for _, s := range m.AllScripts() {
		cfg.Scripts[s.Name] = &Script{Name: s.Name, Actions: toGrammarActions(s.Actions)}
	}
	return cfg
}

func toModelActions(in []Action) []model.Action {
	out := make([]model.Action, len(in))
	for i, a := range in {
		out[i] = model.Action{
			Kind:       model.ActionKind(a.Kind),
			Target:     model.TargetKind(a.Target),
			Ident:      a.Ident,
			WaitStatus: a.WaitStatus,
			WaitMs:     a.WaitMs,
		}
	}
	return out
}

func toGrammarActions(in []model.Action) []Action {
	out := make([]Action, len(in))
	for i, a := range in {
		out[i] = Action{
			Kind:       ActionKind(a.Kind),
			Target:     TargetKind(a.Target),
			Ident:      a.Ident,
			WaitStatus: a.WaitStatus,
			WaitMs:     a.WaitMs,
		}
	}
	return out
}
