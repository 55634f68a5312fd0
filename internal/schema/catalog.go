package schema

import (
	"context"
	"strings"

	"github.com/nyxdb/sqlitequery/internal/btree"
	"github.com/nyxdb/sqlitequery/internal/pager"
	"github.com/nyxdb/sqlitequery/internal/record"
	"github.com/nyxdb/sqlitequery/internal/sqlerr"
)

// Object is one row of sqlite_schema (spec §3).
type Object struct {
	Kind     string // table, index, view, trigger
	Name     string
	TblName  string
	RootPage int
	SQL      string
}

// Table bundles a schema object with its parsed column layout.
type Table struct {
	Object
	Def *TableDef
}

// Index bundles a schema object with its parsed key-column layout.
type Index struct {
	Object
	Def *IndexDef
}

// Catalog is the reconstructed schema of one database: tables and
// indexes keyed by name, built once per engine invocation (spec §3
// Lifecycle).
type Catalog struct {
	Tables  map[string]*Table
	Indexes map[string]*Index
	Objects []Object // all sqlite_schema rows, including views/triggers
}

// Load runs collect() on page 1 (sqlite_schema's table B-tree), decodes
// each row, and parses table/index DDL (spec §4.6).
func Load(ctx context.Context, p *pager.Pager) (*Catalog, error) {
	tree := btree.NewTableTree(p, 1)
	cells, err := tree.CollectAll(ctx)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{Tables: map[string]*Table{}, Indexes: map[string]*Index{}}
	for _, cell := range cells {
		rowid := cell.Rowid
		rec, err := record.Decode(cell.Payload, &rowid, -1)
		if err != nil {
			return nil, err
		}
		if len(rec.Values) != 5 {
			return nil, sqlerr.New(sqlerr.TruncatedRecord, "decode_schema_row", nil, map[string]interface{}{
				"columns": len(rec.Values),
			})
		}

		obj := Object{
			Kind:     rec.Values[0].String(),
			Name:     rec.Values[1].String(),
			TblName:  rec.Values[2].String(),
			RootPage: int(rec.Values[3].Int),
			SQL:      rec.Values[4].String(),
		}
		cat.Objects = append(cat.Objects, obj)

		switch obj.Kind {
		case "table":
			def, err := ParseCreateTable(obj.Name, obj.SQL)
			if err != nil {
				return nil, err
			}
			cat.Tables[strings.ToLower(obj.Name)] = &Table{Object: obj, Def: def}
		case "index":
			def, err := ParseCreateIndex(obj.Name, obj.SQL)
			if err != nil {
				// sqlite_autoindex_* objects (from inline UNIQUE/PRIMARY
				// KEY constraints) have no stored CREATE INDEX SQL; they
				// cannot be used for IndexPrefix lookups, so they are
				// recorded with no key columns rather than failing the
				// whole catalog load.
				if obj.SQL == "" {
					def = &IndexDef{Name: obj.Name, Table: obj.TblName}
				} else {
					return nil, err
				}
			}
			cat.Indexes[strings.ToLower(obj.Name)] = &Index{Object: obj, Def: def}
		}
	}
	return cat, nil
}

// Table looks up a table by case-insensitive name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.Tables[strings.ToLower(name)]
	return t, ok
}

// IndexesOn returns indexes on table whose first key column equals
// column, case-insensitively (spec §4.6).
func (c *Catalog) IndexesOn(table, column string) []*Index {
	var out []*Index
	for _, idx := range c.Indexes {
		if !strings.EqualFold(idx.TblName, table) {
			continue
		}
		if len(idx.Def.KeyColumns) == 0 {
			continue
		}
		if strings.EqualFold(idx.Def.KeyColumns[0], column) {
			out = append(out, idx)
		}
	}
	return out
}

// ColumnIndex returns the ordinal of column in t's declaration order, or
// -1 if absent.
func (t *Table) ColumnIndex(column string) int {
	for i, c := range t.Def.Columns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}
