// Package grammar implements the tokenizer, parser, and emitter for the
// sheriff's text-based configuration format: groups, commands, and
// scripts (spec §4.1). It is pure — no shared state and no I/O: Parse
// takes the source as a string and Emit returns the text as a string.
package grammar

import (
	"fmt"
	"strings"
)

// TokenKind enumerates the lexical token kinds of spec §4.1.
type TokenKind int

const (
	TokIdentifier TokenKind = iota
	TokInteger
	TokString
	TokAssign
	TokEndStatement
	TokOpenStruct
	TokCloseStruct
	TokComment
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokIdentifier:
		return "Identifier"
	case TokInteger:
		return "Integer"
	case TokString:
		return "String"
	case TokAssign:
		return "Assign"
	case TokEndStatement:
		return "EndStatement"
	case TokOpenStruct:
		return "OpenStruct"
	case TokCloseStruct:
		return "CloseStruct"
	case TokComment:
		return "Comment"
	case TokEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// Token is one lexical unit, with the source position it was read from.
type Token struct {
	Kind TokenKind
	Val  string
	Line int
	Col  int
}

// ParseError carries enough context to render a caret-style diagnostic:
// line number, column, the offending token, and the source line text.
type ParseError struct {
	Line     int
	Col      int
	Token    string
	Message  string
	LineText string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config:%d:%d: %s (near %q)", e.Line, e.Col, e.Message, e.Token)
}

// Lexer tokenizes UTF-8 configuration text.
type Lexer struct {
	src      []rune
	pos      int
	line     int
	col      int
	lineText strings.Builder
	lines    []string
}

// NewLexer creates a Lexer over the given source text.
func NewLexer(src string) *Lexer {
	return &Lexer{
		src:   []rune(src),
		line:  1,
		col:   0,
		lines: strings.Split(src, "\n"),
	}
}

func (l *Lexer) peekChar() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) nextChar() (rune, bool) {
	c, ok := l.peekChar()
	if !ok {
		return 0, false
	}
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return c, true
}

func (l *Lexer) currentLineText() string {
	idx := l.line - 1
	if idx >= 0 && idx < len(l.lines) {
		return l.lines[idx]
	}
	return ""
}

func unescape(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return c
	}
}

// Next returns the next token, or a *ParseError for lexical errors: a
// string that hits a newline or the end of input before its closing
// quote, or a character that starts no token.
func (l *Lexer) Next() (Token, error) {
	var c rune
	var ok bool
	for {
		c, ok = l.nextChar()
		if !ok {
			return Token{Kind: TokEOF, Line: l.line, Col: l.col}, nil
		}
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			continue
		}
		break
	}

	startLine, startCol := l.line, l.col

	simple := map[rune]TokenKind{
		'=': TokAssign,
		';': TokEndStatement,
		'{': TokOpenStruct,
		'}': TokCloseStruct,
	}
	if kind, ok := simple[c]; ok {
		return Token{Kind: kind, Val: string(c), Line: startLine, Col: startCol}, nil
	}

	if c == '#' {
		var sb strings.Builder
		for {
			c, ok = l.peekChar()
			if !ok || c == '\n' {
				break
			}
			l.nextChar()
			sb.WriteRune(c)
		}
		return Token{Kind: TokComment, Val: sb.String(), Line: startLine, Col: startCol}, nil
	}

	if c == '"' {
		var sb strings.Builder
		for {
			c, ok = l.nextChar()
			if !ok {
				return Token{}, &ParseError{
					Line: startLine, Col: startCol, Token: sb.String(),
					Message:  "unterminated string constant",
					LineText: l.currentLineText(),
				}
			}
			if c == '\n' {
				return Token{}, &ParseError{
					Line: startLine, Col: startCol, Token: sb.String(),
					Message:  "unterminated string constant",
					LineText: l.currentLineText(),
				}
			}
			if c == '\\' {
				esc, ok := l.nextChar()
				if !ok {
					return Token{}, &ParseError{
						Line: startLine, Col: startCol, Token: sb.String(),
						Message:  "unterminated string constant",
						LineText: l.currentLineText(),
					}
				}
				sb.WriteRune(unescape(esc))
				continue
			}
			if c == '"' {
				return Token{Kind: TokString, Val: sb.String(), Line: startLine, Col: startCol}, nil
			}
			sb.WriteRune(c)
		}
	}

	if isIdentStart(c) {
		var sb strings.Builder
		sb.WriteRune(c)
		for {
			c, ok = l.peekChar()
			if !ok || !isIdentBody(c) {
				break
			}
			l.nextChar()
			sb.WriteRune(c)
		}
		return Token{Kind: TokIdentifier, Val: sb.String(), Line: startLine, Col: startCol}, nil
	}

	if c >= '0' && c <= '9' {
		var sb strings.Builder
		sb.WriteRune(c)
		for {
			c, ok = l.peekChar()
			if !ok || c < '0' || c > '9' {
				break
			}
			l.nextChar()
			sb.WriteRune(c)
		}
		return Token{Kind: TokInteger, Val: sb.String(), Line: startLine, Col: startCol}, nil
	}

	return Token{}, &ParseError{
		Line: startLine, Col: startCol, Token: string(c),
		Message:  "unexpected character",
		LineText: l.currentLineText(),
	}
}

func isIdentStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentBody(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}

// Tokenize drains the lexer into a slice, skipping comments (the parser
// never sees them, per spec §4.1).
func Tokenize(src string) ([]Token, error) {
	lx := NewLexer(src)
	var out []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokComment {
			continue
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}
