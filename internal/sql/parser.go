package sql

import (
	"strconv"
	"strings"

	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

// Parse dispatches a query line to either a meta-command or the SELECT
// parser (spec §4.8). Meta-commands are recognized purely by their
// leading '.' and are never tokenized through the SQL lexer.
func Parse(query string) (interface{}, error) {
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(trimmed, ".") {
		return parseMeta(trimmed)
	}
	return parseSelect(trimmed)
}

func parseMeta(trimmed string) (*MetaCommand, error) {
	switch trimmed {
	case ".dbinfo", ".tables", ".schema":
		return &MetaCommand{Name: trimmed[1:]}, nil
	default:
		return nil, sqlerr.New(sqlerr.UnsupportedFeature, "parse_meta", nil, map[string]interface{}{"command": trimmed})
	}
}

// parser drives a hand-rolled recursive-descent grammar over the token
// stream produced by lexer. It holds one token of lookahead.
type parser struct {
	lex  *lexer
	cur  token
	text string
}

func newParser(s string) (*parser, error) {
	p := &parser{lex: newLexer(s), text: s}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.text, kw)
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return sqlerr.New(sqlerr.SqlSyntax, "expect_"+strings.ToLower(kw), nil, map[string]interface{}{"query": p.text})
	}
	return p.advance()
}

func (p *parser) expectIdent() (string, error) {
	if p.cur.kind != tokIdent {
		return "", sqlerr.New(sqlerr.SqlSyntax, "expect_identifier", nil, map[string]interface{}{"query": p.text})
	}
	name := p.cur.text
	return name, p.advance()
}

// parseSelect parses `SELECT <proj> FROM <table> [WHERE <col> <op> <lit>]`
// and rejects any trailing input as TrailingGarbage (spec §4.8, §7).
func parseSelect(s string) (*SelectStmt, error) {
	p, err := newParser(s)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	stmt := &SelectStmt{}
	switch {
	case p.cur.kind == tokStar:
		stmt.Star = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.isKeyword("COUNT"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokLParen {
			return nil, sqlerr.New(sqlerr.SqlSyntax, "expect_lparen", nil, map[string]interface{}{"query": s})
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokStar {
			return nil, sqlerr.New(sqlerr.UnsupportedFeature, "count_requires_star", nil, map[string]interface{}{"query": s})
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, sqlerr.New(sqlerr.SqlSyntax, "expect_rparen", nil, map[string]interface{}{"query": s})
		}
		stmt.CountStar = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	default:
		cols, err := p.parseColumnList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.isKeyword("WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.cur.kind != tokEOF {
		return nil, sqlerr.New(sqlerr.TrailingGarbage, "parse_select", nil, map[string]interface{}{"query": s})
	}
	return stmt, nil
}

func (p *parser) parseColumnList() ([]string, error) {
	var cols []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)
		if p.cur.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

var comparisonOps = map[string]bool{
	"=": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
}

func (p *parser) parseWhere() (*WhereClause, error) {
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokOp || !comparisonOps[p.cur.text] {
		return nil, sqlerr.New(sqlerr.SqlSyntax, "expect_comparison_operator", nil, map[string]interface{}{"query": p.text})
	}
	op := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &WhereClause{Column: col, Op: op, Value: lit}, nil
}

// parseLiteral accepts a quoted string or a decimal integer. A bare
// identifier in value position is the UnquotedStringLiteral error the
// spec calls out by name, not a generic syntax error.
func (p *parser) parseLiteral() (Literal, error) {
	switch p.cur.kind {
	case tokString:
		lit := Literal{IsInt: false, Text: p.cur.text}
		return lit, p.advance()
	case tokNumber:
		n, err := strconv.ParseInt(p.cur.text, 10, 64)
		if err != nil {
			return Literal{}, sqlerr.New(sqlerr.SqlSyntax, "parse_integer_literal", err, map[string]interface{}{"text": p.cur.text})
		}
		lit := Literal{IsInt: true, Int: n}
		return lit, p.advance()
	case tokIdent:
		return Literal{}, sqlerr.New(sqlerr.UnquotedStringLiteral, "parse_literal", nil, map[string]interface{}{"text": p.cur.text})
	default:
		return Literal{}, sqlerr.New(sqlerr.SqlSyntax, "parse_literal", nil, map[string]interface{}{"query": p.text})
	}
}
