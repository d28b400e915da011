package grammar

import (
	"fmt"
	"strings"
)

// Parser consumes a token stream and produces a Config, per the grammar
// in spec §4.1:
//
//	file       := decl* EOF
//	decl       := 'cmd' command | 'group' STRING '{' command* '}' | 'script' STRING '{' action* '}'
//	command    := [STRING] '{' cmd_attr* '}'
//	cmd_attr   := ('exec'|'host'|'nickname'|'auto_respawn'|'group') '=' STRING ';'
//	action     := ('start'|'stop'|'restart') ident_target [ 'wait' STRING ] ';'
//	            | 'wait' 'ms' INT ';'
//	            | 'wait' ('cmd'|'group') STRING 'status' STRING ';'
//	ident_target := 'everything' | ('cmd'|'group') STRING
type Parser struct {
	toks []Token
	pos  int
}

// Parse tokenizes and parses src into a Config.
func Parse(src string) (*Config, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	cfg, err := p.parseFile()
	if pe, ok := err.(*ParseError); ok && pe.LineText == "" {
		lines := strings.Split(src, "\n")
		if pe.Line >= 1 && pe.Line <= len(lines) {
			pe.LineText = lines[pe.Line-1]
		}
	}
	return cfg, err
}

func (p *Parser) peek() Token { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errf(tok Token, format string, args ...any) error {
	return &ParseError{
		Line: tok.Line, Col: tok.Col, Token: tok.Val,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *Parser) expectIdentifier(word string) error {
	t := p.peek()
	if t.Kind != TokIdentifier || t.Val != word {
		return p.errf(t, "expected %q", word)
	}
	p.advance()
	return nil
}

func (p *Parser) expectKind(kind TokenKind) (Token, error) {
	t := p.peek()
	if t.Kind != kind {
		return t, p.errf(t, "expected %s", kind)
	}
	p.advance()
	return t, nil
}

func (p *Parser) parseFile() (*Config, error) {
	cfg := NewConfig()
	for {
		t := p.peek()
		if t.Kind == TokEOF {
			return cfg, nil
		}
		if t.Kind != TokIdentifier {
			return nil, p.errf(t, "expected 'cmd', 'group', or 'script'")
		}
		switch t.Val {
		case "cmd":
			p.advance()
			cmd, err := p.parseCommand()
			if err != nil {
				return nil, err
			}
			root := cfg.Groups[""]
			root.Commands = append(root.Commands, cmd)
		case "group":
			p.advance()
			if err := p.parseGroup(cfg); err != nil {
				return nil, err
			}
		case "script":
			p.advance()
			if err := p.parseScript(cfg); err != nil {
				return nil, err
			}
		default:
			return nil, p.errf(t, "unexpected declaration %q", t.Val)
		}
	}
}

func (p *Parser) parseGroup(cfg *Config) error {
	nameTok, err := p.expectKind(TokString)
	if err != nil {
		return err
	}
	if _, err := p.expectKind(TokOpenStruct); err != nil {
		return err
	}

	g, ok := cfg.Groups[nameTok.Val]
	if !ok {
		g = &Group{Name: nameTok.Val}
		cfg.Groups[nameTok.Val] = g
	}

	for {
		t := p.peek()
		if t.Kind == TokCloseStruct {
			p.advance()
			return nil
		}
		if t.Kind != TokIdentifier || t.Val != "cmd" {
			return p.errf(t, "expected 'cmd' or '}'")
		}
		p.advance()
		cmd, err := p.parseCommand()
		if err != nil {
			return err
		}
		g.Commands = append(g.Commands, cmd)
	}
}

func (p *Parser) parseCommand() (*Command, error) {
	cmd := &Command{}

	if p.peek().Kind == TokString {
		cmd.Nickname = p.advance().Val
	}

	if _, err := p.expectKind(TokOpenStruct); err != nil {
		return nil, err
	}

	seenNickname := cmd.Nickname != ""
	for {
		t := p.peek()
		if t.Kind == TokCloseStruct {
			p.advance()
			break
		}
		if t.Kind != TokIdentifier {
			return nil, p.errf(t, "expected a command attribute or '}'")
		}
		key := p.advance().Val
		switch key {
		case "exec", "host", "nickname", "group":
			if _, err := p.expectKind(TokAssign); err != nil {
				return nil, err
			}
			valTok, err := p.expectKind(TokString)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectKind(TokEndStatement); err != nil {
				return nil, err
			}
			switch key {
			case "exec":
				cmd.Exec = valTok.Val
			case "host":
				cmd.Host = valTok.Val
			case "nickname":
				if seenNickname {
					return nil, p.errf(t, "command may have at most one nickname attribute")
				}
				seenNickname = true
				cmd.Nickname = valTok.Val
			case "group":
				cmd.Group = valTok.Val
			}
		case "auto_respawn":
			if _, err := p.expectKind(TokAssign); err != nil {
				return nil, err
			}
			valTok, err := p.expectKind(TokString)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectKind(TokEndStatement); err != nil {
				return nil, err
			}
			cmd.AutoRespawn = valTok.Val == "true" || valTok.Val == "1"
		default:
			return nil, p.errf(t, "unknown command attribute %q", key)
		}
	}

	if cmd.Exec == "" {
		return nil, p.errf(p.peek(), "command is missing required attribute 'exec'")
	}
	return cmd, nil
}

func (p *Parser) parseScript(cfg *Config) error {
	nameTok, err := p.expectKind(TokString)
	if err != nil {
		return err
	}
	if _, ok := cfg.Scripts[nameTok.Val]; ok {
		return p.errf(nameTok, "duplicate script name %q", nameTok.Val)
	}
	if _, err := p.expectKind(TokOpenStruct); err != nil {
		return err
	}

	s := &Script{Name: nameTok.Val}
	for {
		t := p.peek()
		if t.Kind == TokCloseStruct {
			p.advance()
			cfg.Scripts[s.Name] = s
			return nil
		}
		action, err := p.parseAction()
		if err != nil {
			return err
		}
		s.Actions = append(s.Actions, action)
	}
}

func (p *Parser) parseAction() (Action, error) {
	t := p.peek()
	if t.Kind != TokIdentifier {
		return Action{}, p.errf(t, "expected an action")
	}

	switch t.Val {
	case "start", "stop", "restart":
		p.advance()
		var kind ActionKind
		switch t.Val {
		case "start":
			kind = ActionStart
		case "stop":
			kind = ActionStop
		case "restart":
			kind = ActionRestart
		}
		target, ident, err := p.parseIdentTarget()
		if err != nil {
			return Action{}, err
		}
		a := Action{Kind: kind, Target: target, Ident: ident}

		if p.peek().Kind == TokIdentifier && p.peek().Val == "wait" {
			p.advance()
			waitTok, err := p.expectKind(TokString)
			if err != nil {
				return Action{}, err
			}
			a.WaitStatus = waitTok.Val
		}
		if _, err := p.expectKind(TokEndStatement); err != nil {
			return Action{}, err
		}
		return a, nil

	case "wait":
		p.advance()
		nt := p.peek()
		if nt.Kind == TokIdentifier && nt.Val == "ms" {
			p.advance()
			numTok, err := p.expectKind(TokInteger)
			if err != nil {
				return Action{}, err
			}
			if _, err := p.expectKind(TokEndStatement); err != nil {
				return Action{}, err
			}
			var ms int64
			for _, r := range numTok.Val {
				ms = ms*10 + int64(r-'0')
			}
			return Action{Kind: ActionWaitMs, WaitMs: ms}, nil
		}
		if nt.Kind == TokIdentifier && (nt.Val == "cmd" || nt.Val == "group") {
			target, ident, err := p.parseIdentTarget()
			if err != nil {
				return Action{}, err
			}
			if err := p.expectIdentifier("status"); err != nil {
				return Action{}, err
			}
			statusTok, err := p.expectKind(TokString)
			if err != nil {
				return Action{}, err
			}
			if _, err := p.expectKind(TokEndStatement); err != nil {
				return Action{}, err
			}
			return Action{Kind: ActionWaitStatus, Target: target, Ident: ident, WaitStatus: statusTok.Val}, nil
		}
		return Action{}, p.errf(nt, "expected 'ms', 'cmd', or 'group' after 'wait'")

	default:
		return Action{}, p.errf(t, "expected 'start', 'stop', 'restart', or 'wait'")
	}
}

func (p *Parser) parseIdentTarget() (TargetKind, string, error) {
	t := p.peek()
	if t.Kind != TokIdentifier {
		return 0, "", p.errf(t, "expected a target ('everything', 'cmd', or 'group')")
	}
	switch t.Val {
	case "everything":
		p.advance()
		return TargetEverything, "", nil
	case "cmd":
		p.advance()
		identTok, err := p.expectKind(TokString)
		if err != nil {
			return 0, "", err
		}
		return TargetCmd, identTok.Val, nil
	case "group":
		p.advance()
		identTok, err := p.expectKind(TokString)
		if err != nil {
			return 0, "", err
		}
		return TargetGroup, identTok.Val, nil
	default:
		return 0, "", p.errf(t, "expected 'everything', 'cmd', or 'group'")
	}
}
