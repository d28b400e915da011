package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBasic(t *testing.T) {
	toks, err := Tokenize(`cmd "foo" { exec = "/bin/foo"; }`)
	require.NoError(t, err)

	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{
		TokIdentifier, TokString, TokOpenStruct,
		TokIdentifier, TokAssign, TokString, TokEndStatement,
		TokCloseStruct, TokEOF,
	}, kinds)
}

func TestTokenizeSkipsComments(t *testing.T) {
	toks, err := Tokenize("# a comment\ncmd {}")
	require.NoError(t, err)
	assert.Equal(t, TokIdentifier, toks[0].Kind)
	assert.Equal(t, "cmd", toks[0].Val)
}

func TestTokenizeUnterminatedStringIsSyntaxError(t *testing.T) {
	_, err := Tokenize("cmd { exec = \"/bin/foo\n\"; }")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseSimpleCommand(t *testing.T) {
	cfg, err := Parse(`cmd "foo" { exec = "/bin/foo"; auto_respawn = "true"; }`)
	require.NoError(t, err)
	root := cfg.Groups[""]
	require.Len(t, root.Commands, 1)
	assert.Equal(t, "foo", root.Commands[0].Nickname)
	assert.Equal(t, "/bin/foo", root.Commands[0].Exec)
	assert.True(t, root.Commands[0].AutoRespawn)
}

func TestParseRejectsMissingExec(t *testing.T) {
	_, err := Parse(`cmd "foo" { nickname = "bar"; }`)
	assert.Error(t, err)
}

func TestParseRejectsDuplicateNickname(t *testing.T) {
	_, err := Parse(`cmd "foo" { exec = "/bin/foo"; nickname = "bar"; }`)
	assert.Error(t, err)
}

func TestParseGroupsAndScripts(t *testing.T) {
	src := `
group "a" {
    cmd "one" { exec = "/bin/one"; }
}
group "a/b" {
    cmd "two" { exec = "/bin/two"; }
}
script "deploy" {
    start group "a" wait "Running";
    wait ms 500;
    stop everything wait "Stopped (OK)";
}
`
	cfg, err := Parse(src)
	require.NoError(t, err)
	require.Contains(t, cfg.Groups, "a")
	require.Contains(t, cfg.Groups, "a/b")
	require.Contains(t, cfg.Scripts, "deploy")

	script := cfg.Scripts["deploy"]
	require.Len(t, script.Actions, 3)
	assert.Equal(t, ActionStart, script.Actions[0].Kind)
	assert.Equal(t, TargetGroup, script.Actions[0].Target)
	assert.Equal(t, "a", script.Actions[0].Ident)
	assert.Equal(t, "Running", script.Actions[0].WaitStatus)
	assert.Equal(t, ActionWaitMs, script.Actions[1].Kind)
	assert.EqualValues(t, 500, script.Actions[1].WaitMs)
	assert.Equal(t, ActionStop, script.Actions[2].Kind)
	assert.Equal(t, TargetEverything, script.Actions[2].Target)
}

func TestParseWaitStatusAction(t *testing.T) {
	cfg, err := Parse(`script "s" { wait cmd "foo" status "Running"; }`)
	require.NoError(t, err)
	a := cfg.Scripts["s"].Actions[0]
	assert.Equal(t, ActionWaitStatus, a.Kind)
	assert.Equal(t, TargetCmd, a.Target)
	assert.Equal(t, "foo", a.Ident)
	assert.Equal(t, "Running", a.WaitStatus)
}

func TestEmitSortsGroupsScriptsAndAttrsCaseInsensitive(t *testing.T) {
	cfg := NewConfig()
	cfg.Groups["Zeta"] = &Group{Name: "Zeta", Commands: []*Command{{Exec: "/bin/z"}}}
	cfg.Groups["alpha"] = &Group{Name: "alpha", Commands: []*Command{{Exec: "/bin/a"}}}

	out := Emit(cfg)
	alphaIdx := indexOf(out, `group "alpha"`)
	zetaIdx := indexOf(out, `group "Zeta"`)
	require.GreaterOrEqual(t, alphaIdx, 0)
	require.GreaterOrEqual(t, zetaIdx, 0)
	assert.Less(t, alphaIdx, zetaIdx)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestRoundTripNormalizes(t *testing.T) {
	src := `
group "a" {
    cmd "one" { exec = "/bin/one"; }
}
group "a/b" {
    cmd "two" { exec = "/bin/two"; }
}
cmd "three" { exec = "/bin/three"; }
script "deploy" {
    start everything wait "Running";
}
`
	cfg1, err := Parse(src)
	require.NoError(t, err)

	emitted := Emit(cfg1)
	cfg2, err := Parse(emitted)
	require.NoError(t, err)

	n1 := Normalize(cfg1)
	n2 := Normalize(cfg2)

	assert.Equal(t, groupCommandExecs(n1), groupCommandExecs(n2))
	assert.Equal(t, len(n1.Scripts), len(n2.Scripts))
}

func TestRoundTripCollapsesExplicitGroupAttribute(t *testing.T) {
	src := `cmd "one" { exec = "/bin/one"; group = "web/api"; }`
	cfg, err := Parse(src)
	require.NoError(t, err)

	n := Normalize(cfg)
	require.Contains(t, n.Groups, "web/api")
	assert.Len(t, n.Groups["web/api"].Commands, 1)
	assert.Empty(t, n.Groups[""].Commands)
}

func groupCommandExecs(cfg *Config) map[string][]string {
	out := make(map[string][]string)
	for name, g := range cfg.Groups {
		var execs []string
		for _, c := range g.Commands {
			execs = append(execs, c.Exec)
		}
		out[name] = execs
	}
	return out
}
