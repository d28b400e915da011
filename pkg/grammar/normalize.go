package grammar

// Normalize returns a copy of cfg where every command's explicit
// group="X" attribute has been collapsed into enclosing-group membership
// (moving the command into that group's bucket and clearing the
// attribute), matching the equivalence spec §4.1 requires of
// parse(emit(C)). Host is carried through untouched: the grammar accepts
// and re-emits it even though the model never uses it, keeping files
// forward-compatible.
func Normalize(cfg *Config) *Config {
	out := NewConfig()
	for name := range cfg.Scripts {
		out.Scripts[name] = cfg.Scripts[name]
	}

	for groupName, g := range cfg.Groups {
		for _, cmd := range g.Commands {
			target := groupName
			c := *cmd
			if groupName == "" && c.Group != "" {
				target = c.Group
			}
			c.Group = ""
			dest, ok := out.Groups[target]
			if !ok {
				dest = &Group{Name: target}
				out.Groups[target] = dest
			}
			dest.Commands = append(dest.Commands, &c)
		}
	}
	return out
}
