package engine

import (
	"strings"

	"github.com/nyxdb/sqlitequery/internal/record"
	"github.com/nyxdb/sqlitequery/internal/schema"
	"github.com/nyxdb/sqlitequery/internal/sql"
	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

type planKind int

const (
	planScan planKind = iota
	planTableEq
	planIndexLookup
)

// plan is the executor's instruction for how to reach the rows a SELECT
// needs, chosen by matchPlan against the actual on-disk schema (spec §4.9).
type plan struct {
	kind       planKind
	table      *schema.Table
	where      *sql.WhereClause
	whereValue record.Value
	index      *schema.Index
	rowid      int64

	star      bool
	countStar bool
	columns   []int // ordinals into table.Def.Columns, projection order
}

// matchPlan resolves the table and projected columns and decides between
// TableEq, IndexLookup, and Scan (spec §4.9 steps 1-3).
func matchPlan(cat *schema.Catalog, stmt *sql.SelectStmt) (*plan, error) {
	table, ok := cat.Table(stmt.Table)
	if !ok {
		return nil, sqlerr.New(sqlerr.UnknownTable, "resolve_table", nil, map[string]interface{}{"table": stmt.Table})
	}

	p := &plan{table: table, where: stmt.Where, star: stmt.Star, countStar: stmt.CountStar}

	if !stmt.Star && !stmt.CountStar {
		for _, name := range stmt.Columns {
			idx := table.ColumnIndex(name)
			if idx < 0 {
				return nil, sqlerr.New(sqlerr.UnknownColumn, "resolve_column", nil, map[string]interface{}{
					"table": stmt.Table, "column": name,
				})
			}
			p.columns = append(p.columns, idx)
		}
	}

	if stmt.Where != nil {
		whereIdx := table.ColumnIndex(stmt.Where.Column)
		if whereIdx < 0 {
			return nil, sqlerr.New(sqlerr.UnknownColumn, "resolve_where_column", nil, map[string]interface{}{
				"table": stmt.Table, "column": stmt.Where.Column,
			})
		}
		p.whereValue = literalValue(stmt.Where.Value)

		if stmt.Where.Op == "=" {
			if whereIdx == table.Def.RowidAliasCol && stmt.Where.Value.IsInt {
				p.kind = planTableEq
				p.rowid = stmt.Where.Value.Int
				return p, nil
			}
			for _, idx := range cat.IndexesOn(table.TblName, stmt.Where.Column) {
				p.kind = planIndexLookup
				p.index = idx
				return p, nil
			}
		}
	}

	p.kind = planScan
	return p, nil
}

func literalValue(lit sql.Literal) record.Value {
	if lit.IsInt {
		return record.Value{Kind: record.Int, Int: lit.Int}
	}
	return record.Value{Kind: record.Text, Bytes: []byte(lit.Text)}
}

// matchesWhere reports whether row satisfies the plan's WHERE predicate.
// A NULL operand never matches, under any operator (spec §4.9).
func matchesWhere(where *sql.WhereClause, whereValue record.Value, row *record.Record, col int) bool {
	if where == nil {
		return true
	}
	rowValue := row.Values[col]
	if rowValue.Kind == record.Null {
		return false
	}
	cmp := record.Compare(rowValue, whereValue)
	switch where.Op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

func (p *plan) whereColumnIndex() int {
	if p.where == nil {
		return -1
	}
	return p.table.ColumnIndex(p.where.Column)
}

func isSystemTable(name string) bool {
	return strings.HasPrefix(name, "sqlite_")
}
