package grammar

import (
	"fmt"
	"sort"
	"strings"
)

// Emit renders a Config back to text. Groups and scripts are emitted in
// lexicographic (case-insensitive) order by name; command attributes are
// emitted sorted by key, suppressing empty strings and suppressing the
// group/nickname attributes inside a command body, since those are
// implied by the enclosing block / the optional string after `cmd`
// (spec §4.1).
func Emit(cfg *Config) string {
	var sb strings.Builder

	root := cfg.Groups[""]
	if root != nil {
		for _, cmd := range root.Commands {
			emitCommand(&sb, cmd, 0)
			sb.WriteString("\n")
		}
	}

	groupNames := make([]string, 0, len(cfg.Groups))
	for name := range cfg.Groups {
		if name == "" {
			continue
		}
		groupNames = append(groupNames, name)
	}
	sortCaseInsensitive(groupNames)

	for _, name := range groupNames {
		g := cfg.Groups[name]
		fmt.Fprintf(&sb, "group %s {\n", quote(name))
		for _, cmd := range g.Commands {
			emitCommand(&sb, cmd, 1)
		}
		sb.WriteString("}\n\n")
	}

	scriptNames := make([]string, 0, len(cfg.Scripts))
	for name := range cfg.Scripts {
		scriptNames = append(scriptNames, name)
	}
	sortCaseInsensitive(scriptNames)

	for _, name := range scriptNames {
		s := cfg.Scripts[name]
		emitScript(&sb, s)
	}

	return sb.String()
}

func sortCaseInsensitive(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}

func emitCommand(sb *strings.Builder, cmd *Command, indent int) {
	pad := strings.Repeat("    ", indent)
	if cmd.Nickname != "" {
		fmt.Fprintf(sb, "%scmd %s {\n", pad, quote(cmd.Nickname))
	} else {
		fmt.Fprintf(sb, "%scmd {\n", pad)
	}

	type attr struct {
		key, val string
	}
	attrs := []attr{
		{"auto_respawn", boolStr(cmd.AutoRespawn)},
		{"exec", cmd.Exec},
		{"host", cmd.Host},
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].key < attrs[j].key })

	for _, a := range attrs {
		if a.val == "" {
			continue
		}
		fmt.Fprintf(sb, "%s    %s = %s;\n", pad, a.key, quote(a.val))
	}
	fmt.Fprintf(sb, "%s}\n", pad)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return ""
}

func emitScript(sb *strings.Builder, s *Script) {
	fmt.Fprintf(sb, "script %s {\n", quote(s.Name))
	for _, a := range s.Actions {
		sb.WriteString("    ")
		sb.WriteString(emitAction(a))
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")
}

func emitAction(a Action) string {
	switch a.Kind {
	case ActionWaitMs:
		return fmt.Sprintf("wait ms %d;", a.WaitMs)
	case ActionWaitStatus:
		return fmt.Sprintf("wait %s %s status %s;", targetWord(a.Target), quote(a.Ident), quote(a.WaitStatus))
	default:
		verb := map[ActionKind]string{ActionStart: "start", ActionStop: "stop", ActionRestart: "restart"}[a.Kind]
		target := targetExpr(a.Target, a.Ident)
		if a.WaitStatus != "" {
			return fmt.Sprintf("%s %s wait %s;", verb, target, quote(a.WaitStatus))
		}
		return fmt.Sprintf("%s %s;", verb, target)
	}
}

func targetWord(k TargetKind) string {
	switch k {
	case TargetCmd:
		return "cmd"
	case TargetGroup:
		return "group"
	default:
		return "everything"
	}
}

func targetExpr(k TargetKind, ident string) string {
	if k == TargetEverything {
		return "everything"
	}
	return fmt.Sprintf("%s %s", targetWord(k), quote(ident))
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range s {
		switch c {
		case '\\', '"':
			sb.WriteByte('\\')
			sb.WriteRune(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
