// Package schema reconstructs the database's schema catalog from the
// sqlite_schema root table and parses the stored CREATE statements to
// learn column order, the row-id alias column, and index key columns.
package schema

import (
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

// TableDef is a table's column layout as declared in its CREATE TABLE
// statement (spec §4.7).
type TableDef struct {
	Name          string
	Columns       []string
	RowidAliasCol int // index into Columns, or -1 if none
}

// IndexDef is an index's target table and ordered key columns, as
// declared in its CREATE INDEX statement.
type IndexDef struct {
	Name       string
	Table      string
	KeyColumns []string
}

// ParseCreateTable extracts column names (in declaration order) and the
// INTEGER PRIMARY KEY row-id alias column, if any, from a CREATE TABLE
// statement. It leans on xwb1989/sqlparser (the same dependency the
// reference engine uses for DDL) after normalizing SQLite-only syntax
// into something that dialect's grammar accepts.
func ParseCreateTable(name, sql string) (*TableDef, error) {
	normalized := normalizeForParser(sql)
	stmt, err := sqlparser.Parse(normalized)
	if err != nil {
		return nil, sqlerr.New(sqlerr.SqlSyntax, "parse_create_table", err, map[string]interface{}{"sql": sql})
	}

	ddl, ok := stmt.(*sqlparser.DDL)
	if !ok || ddl.Action != "create" || ddl.TableSpec == nil {
		return nil, sqlerr.New(sqlerr.SqlSyntax, "parse_create_table", nil, map[string]interface{}{"sql": sql})
	}

	defs := columnDefinitions(sql)
	def := &TableDef{Name: name, RowidAliasCol: -1}
	for i, col := range ddl.TableSpec.Columns {
		colName := stripIdentifierQuotes(col.Name.String())
		def.Columns = append(def.Columns, colName)
		if i < len(defs) && isIntegerPrimaryKey(defs[i]) {
			def.RowidAliasCol = i
		}
	}
	return def, nil
}

// columnDefinitions splits the parenthesized body of a CREATE TABLE
// statement into one substring per column (or table constraint), on
// top-level commas only — a comma nested inside a type's argument list
// (e.g. DECIMAL(10,2)) does not split a column's own definition in two.
// Column i of the returned slice lines up with ddl.TableSpec.Columns[i]
// as long as no table-level constraint clause precedes it, which matches
// how sqlparser itself orders TableSpec.Columns.
func columnDefinitions(sql string) []string {
	start := strings.IndexByte(sql, '(')
	end := strings.LastIndexByte(sql, ')')
	if start < 0 || end < start {
		return nil
	}
	body := sql[start+1 : end]

	var defs []string
	depth := 0
	last := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				defs = append(defs, body[last:i])
				last = i + 1
			}
		}
	}
	defs = append(defs, body[last:])
	return defs
}

// normalizeForParser rewrites SQLite-only spellings the MySQL-dialect
// parser does not accept, while leaving column order and names intact.
func normalizeForParser(sql string) string {
	s := strings.ReplaceAll(sql, `"`, "")
	upper := strings.ToUpper(s)
	if idx := strings.Index(upper, "AUTOINCREMENT"); idx >= 0 {
		// sqlparser only understands AUTOINCREMENT glued to the type
		// name (MySQL spelling); drop SQLite's separate keyword so the
		// statement still parses. INTEGER PRIMARY KEY detection reads
		// the original (unnormalized) SQL, via columnDefinitions, so
		// this rewrite never affects it.
		s = s[:idx] + s[idx+len("AUTOINCREMENT"):]
	}
	return strings.TrimSpace(s)
}

// isIntegerPrimaryKey reports whether a single column's own definition
// text (one element of columnDefinitions' split, not the whole CREATE
// TABLE statement) contains INTEGER PRIMARY KEY (case-insensitive,
// whitespace-flexible), the rule that aliases the column to the row id
// (spec §4.7). Scoping the check to just this column's definition,
// rather than searching the full statement for the column's name,
// avoids false positives when the name is a short substring of an
// earlier token or column (e.g. column "a" inside "aa INTEGER PRIMARY
// KEY, a INTEGER").
func isIntegerPrimaryKey(columnDef string) bool {
	collapsed := strings.Join(strings.Fields(strings.ToUpper(columnDef)), " ")
	return strings.Contains(collapsed, "INTEGER PRIMARY KEY")
}

// stripIdentifierQuotes removes backtick or double-quote wrapping from an
// identifier (spec §4.7: identifiers may be bare, backtick-quoted, or
// double-quoted).
func stripIdentifierQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '`' && s[len(s)-1] == '`') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ParseCreateIndex extracts the indexed table name and ordered key
// column list from a CREATE INDEX statement. Hand-rolled rather than
// routed through sqlparser: that dependency's MySQL grammar does not
// model SQLite's CREATE INDEX form, so this follows the same
// parenthesis-extraction approach the engine already uses for
// identifiers in CREATE TABLE (spec §4.7).
func ParseCreateIndex(name, sql string) (*IndexDef, error) {
	upper := strings.ToUpper(sql)
	onIdx := strings.Index(upper, " ON ")
	if onIdx < 0 {
		return nil, sqlerr.New(sqlerr.SqlSyntax, "parse_create_index", nil, map[string]interface{}{"sql": sql})
	}
	rest := strings.TrimSpace(sql[onIdx+4:])

	parenStart := strings.IndexByte(rest, '(')
	if parenStart < 0 {
		return nil, sqlerr.New(sqlerr.SqlSyntax, "parse_create_index", nil, map[string]interface{}{"sql": sql})
	}
	table := stripIdentifierQuotes(strings.TrimSpace(rest[:parenStart]))

	parenEnd := strings.LastIndexByte(rest, ')')
	if parenEnd < parenStart {
		return nil, sqlerr.New(sqlerr.SqlSyntax, "parse_create_index", nil, map[string]interface{}{"sql": sql})
	}
	colsRaw := rest[parenStart+1 : parenEnd]

	var cols []string
	for _, c := range strings.Split(colsRaw, ",") {
		c = strings.TrimSpace(c)
		// Drop a trailing COLLATE/ASC/DESC clause; only the column name
		// is relevant to prefix matching.
		if sp := strings.IndexAny(c, " \t"); sp >= 0 {
			c = c[:sp]
		}
		cols = append(cols, stripIdentifierQuotes(c))
	}

	return &IndexDef{Name: name, Table: table, KeyColumns: cols}, nil
}
