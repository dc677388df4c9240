package predicate

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp     // == != > >= < <= = <>
	tokLParen // (
	tokRParen // )
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a lexing or parsing failure with its byte offset
// into the expression.
type SyntaxError struct {
	Expr    string
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("predicate syntax error at offset %d: %s", e.Pos, e.Message)
}

type lexer struct {
	expr string
	pos  int
}

func (l *lexer) errf(pos int, format string, args ...any) error {
	return &SyntaxError{Expr: l.expr, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// next returns the next token. Identifiers include keywords (AND, SORT,
// TRUEPREDICATE, ...); the parser classifies them.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.expr) && unicode.IsSpace(rune(l.expr[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.expr) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.expr[l.pos]

	switch c {
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '\'', '"':
		return l.lexString(c)
	case '=':
		if l.hasPrefix("==") {
			l.pos += 2
			return token{kind: tokOp, text: "==", pos: start}, nil
		}
		l.pos++
		return token{kind: tokOp, text: "==", pos: start}, nil
	case '!':
		if l.hasPrefix("!=") {
			l.pos += 2
			return token{kind: tokOp, text: "!=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokIdent, text: "NOT", pos: start}, nil
	case '<':
		if l.hasPrefix("<=") {
			l.pos += 2
			return token{kind: tokOp, text: "<=", pos: start}, nil
		}
		if l.hasPrefix("<>") {
			l.pos += 2
			return token{kind: tokOp, text: "!=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokOp, text: "<", pos: start}, nil
	case '>':
		if l.hasPrefix(">=") {
			l.pos += 2
			return token{kind: tokOp, text: ">=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokOp, text: ">", pos: start}, nil
	case '&':
		if l.hasPrefix("&&") {
			l.pos += 2
			return token{kind: tokIdent, text: "AND", pos: start}, nil
		}
		return token{}, l.errf(start, "unexpected %q", "&")
	case '|':
		if l.hasPrefix("||") {
			l.pos += 2
			return token{kind: tokIdent, text: "OR", pos: start}, nil
		}
		return token{}, l.errf(start, "unexpected %q", "|")
	}

	if c == '-' || c >= '0' && c <= '9' {
		return l.lexNumber()
	}
	if isIdentStart(rune(c)) {
		return l.lexIdent()
	}
	return token{}, l.errf(start, "unexpected character %q", string(c))
}

func (l *lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.expr[l.pos:], s)
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.expr) {
		c := l.expr[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.expr) {
				return token{}, l.errf(start, "unterminated string")
			}
			l.pos++
			b.WriteByte(l.expr[l.pos])
			l.pos++
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errf(start, "unterminated string")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.expr[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.expr) && (l.expr[l.pos] >= '0' && l.expr[l.pos] <= '9' || l.expr[l.pos] == '.') {
		l.pos++
	}
	text := l.expr[start:l.pos]
	if text == "-" {
		return token{}, l.errf(start, "malformed number")
	}
	return token{kind: tokNumber, text: text, pos: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.expr) && isIdentPart(rune(l.expr[l.pos])) {
		l.pos++
	}
	return token{kind: tokIdent, text: l.expr[start:l.pos], pos: start}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
