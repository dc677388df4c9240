package predicate

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SortKey is one sort clause of a compiled expression.
type SortKey struct {
	Field string
	Desc  bool
}

// Compiled is the SQL form of a predicate expression.
//
// Where is a fragment over the object alias "o"; Args carries every bind
// parameter in placeholder order (json_extract paths and literals).
// Sort, Distinct and Limit come from the trailing SORT/DISTINCT/LIMIT
// clauses; zero values mean the clause was absent.
type Compiled struct {
	Where    string
	Args     []any
	Sort     []SortKey
	Distinct []string
	Limit    int
}

// Compile parses an expression and compiles it to parameterized SQL.
//
// String literals are NFC-normalized before binding so comparisons match
// stored canonical JSON regardless of how the caller composed the text.
func Compile(expr string) (*Compiled, error) {
	p := &parser{lex: lexer{expr: expr}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	c := &Compiled{}
	where, args, err := p.parseOr(c)
	if err != nil {
		return nil, err
	}
	c.Where = where
	c.Args = args

	// Trailing clauses: SORT / DISTINCT / LIMIT in any order.
	for p.tok.kind == tokIdent {
		switch strings.ToUpper(p.tok.text) {
		case "SORT":
			if err := p.parseSort(c); err != nil {
				return nil, err
			}
		case "DISTINCT":
			if err := p.parseDistinct(c); err != nil {
				return nil, err
			}
		case "LIMIT":
			if err := p.parseLimit(c); err != nil {
				return nil, err
			}
		default:
			return nil, p.lex.errf(p.tok.pos, "unexpected %q", p.tok.text)
		}
	}
	if p.tok.kind != tokEOF {
		return nil, p.lex.errf(p.tok.pos, "unexpected %q", p.tok.text)
	}
	return c, nil
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.lex.errf(p.tok.pos, "expected %s, got %q", what, p.tok.text)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (p *parser) parseOr(c *Compiled) (string, []any, error) {
	left, args, err := p.parseAnd(c)
	if err != nil {
		return "", nil, err
	}
	for p.isKeyword("OR") {
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		right, rargs, err := p.parseAnd(c)
		if err != nil {
			return "", nil, err
		}
		left = "(" + left + " OR " + right + ")"
		args = append(args, rargs...)
	}
	return left, args, nil
}

func (p *parser) parseAnd(c *Compiled) (string, []any, error) {
	left, args, err := p.parseUnary(c)
	if err != nil {
		return "", nil, err
	}
	for p.isKeyword("AND") {
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		right, rargs, err := p.parseUnary(c)
		if err != nil {
			return "", nil, err
		}
		left = "(" + left + " AND " + right + ")"
		args = append(args, rargs...)
	}
	return left, args, nil
}

func (p *parser) parseUnary(c *Compiled) (string, []any, error) {
	switch {
	case p.isKeyword("NOT"):
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		inner, args, err := p.parseUnary(c)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil

	case p.tok.kind == tokLParen:
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		inner, args, err := p.parseOr(c)
		if err != nil {
			return "", nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return "", nil, err
		}
		return inner, args, nil

	case p.isKeyword("TRUEPREDICATE"):
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		return "1 = 1", nil, nil

	case p.isKeyword("FALSEPREDICATE"):
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		return "1 = 0", nil, nil

	case p.tok.kind == tokIdent:
		return p.parseComparison()

	default:
		return "", nil, p.lex.errf(p.tok.pos, "expected predicate, got %q", p.tok.text)
	}
}

// parseComparison handles field op literal.
func (p *parser) parseComparison() (string, []any, error) {
	field, err := p.expect(tokIdent, "property name")
	if err != nil {
		return "", nil, err
	}

	var op string
	switch {
	case p.tok.kind == tokOp:
		op = p.tok.text
	case p.isKeyword("CONTAINS"), p.isKeyword("BEGINSWITH"), p.isKeyword("ENDSWITH"):
		op = strings.ToUpper(p.tok.text)
	default:
		return "", nil, p.lex.errf(p.tok.pos, "expected comparison operator, got %q", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return "", nil, err
	}

	col, colArgs := columnExpr(field.text)

	// String operators compile to LIKE with escaped patterns.
	switch op {
	case "CONTAINS", "BEGINSWITH", "ENDSWITH":
		lit, err := p.expect(tokString, "string literal")
		if err != nil {
			return "", nil, err
		}
		pattern := likeEscape(norm.NFC.String(lit.text))
		switch op {
		case "CONTAINS":
			pattern = "%" + pattern + "%"
		case "BEGINSWITH":
			pattern = pattern + "%"
		case "ENDSWITH":
			pattern = "%" + pattern
		}
		return col + ` LIKE ? ESCAPE '\'`, append(colArgs, pattern), nil
	}

	// nil comparisons compile to IS NULL / IS NOT NULL.
	if p.isKeyword("nil") || p.isKeyword("NULL") {
		if err := p.advance(); err != nil {
			return "", nil, err
		}
		switch op {
		case "==":
			return col + " IS NULL", colArgs, nil
		case "!=":
			return col + " IS NOT NULL", colArgs, nil
		}
		return "", nil, p.lex.errf(field.pos, "operator %q cannot compare against nil", op)
	}

	val, err := p.parseLiteral()
	if err != nil {
		return "", nil, err
	}

	sqlOp := op
	if op == "==" {
		sqlOp = "="
	}
	if op == "!=" {
		sqlOp = "<>"
	}
	return col + " " + sqlOp + " ?", append(colArgs, val), nil
}

func (p *parser) parseLiteral() (any, error) {
	switch p.tok.kind {
	case tokString:
		s := norm.NFC.String(p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return s, nil
	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.lex.errf(p.tok.pos, "malformed number %q", text)
		}
		return f, nil
	case tokIdent:
		switch strings.ToLower(p.tok.text) {
		case "true":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return true, nil
		case "false":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return false, nil
		}
	}
	return nil, p.lex.errf(p.tok.pos, "expected literal, got %q", p.tok.text)
}

// parseSort consumes SORT(field [ASC|DESC], ...).
func (p *parser) parseSort(c *Compiled) error {
	if err := p.advance(); err != nil { // SORT
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	for {
		field, err := p.expect(tokIdent, "property name")
		if err != nil {
			return err
		}
		key := SortKey{Field: field.text}
		if p.isKeyword("ASC") || p.isKeyword("DESC") {
			key.Desc = strings.EqualFold(p.tok.text, "DESC")
			if err := p.advance(); err != nil {
				return err
			}
		}
		c.Sort = append(c.Sort, key)

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	_, err := p.expect(tokRParen, ")")
	return err
}

// parseDistinct consumes DISTINCT(field, ...).
func (p *parser) parseDistinct(c *Compiled) error {
	if err := p.advance(); err != nil { // DISTINCT
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	for {
		field, err := p.expect(tokIdent, "property name")
		if err != nil {
			return err
		}
		c.Distinct = append(c.Distinct, field.text)

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	_, err := p.expect(tokRParen, ")")
	return err
}

// parseLimit consumes LIMIT(n).
func (p *parser) parseLimit(c *Compiled) error {
	if err := p.advance(); err != nil { // LIMIT
		return err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	num, err := p.expect(tokNumber, "limit count")
	if err != nil {
		return err
	}
	n, convErr := strconv.Atoi(num.text)
	if convErr != nil || n < 0 {
		return p.lex.errf(num.pos, "malformed limit %q", num.text)
	}
	c.Limit = n
	_, err = p.expect(tokRParen, ")")
	return err
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, kw)
}

// columnExpr maps a property name to its SQL expression. The reserved
// name "id" addresses the object id column; everything else goes through
// json_extract with the path carried as a bind parameter.
func columnExpr(field string) (string, []any) {
	if field == "id" {
		return "o.id", nil
	}
	return "json_extract(o.props, ?)", []any{jsonPath(field)}
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// likeEscape escapes LIKE wildcards in a literal pattern fragment.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
