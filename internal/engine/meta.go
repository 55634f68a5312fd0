package engine

import (
	"fmt"
	"sort"
	"strings"
)

// dbInfo renders the .dbinfo output: at least the page size and table
// count (spec §6).
func (e *Engine) dbInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "database page size: %d\n", e.pager.PageSize())
	count := 0
	for _, t := range e.catalog.Tables {
		if !isSystemTable(t.Name) {
			count++
		}
	}
	fmt.Fprintf(&b, "number of tables: %d\n", count)
	return b.String()
}

// tables renders the .tables output: non-system table names,
// space-separated (spec §6).
func (e *Engine) tables() string {
	var names []string
	for _, t := range e.catalog.Tables {
		if !isSystemTable(t.Name) {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, " ") + "\n"
}

// schemaDump renders the .schema output: each table's CREATE statement,
// one per line (spec §6).
func (e *Engine) schemaDump() string {
	var names []string
	for name, t := range e.catalog.Tables {
		if !isSystemTable(t.Name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s\n", strings.TrimRight(e.catalog.Tables[name].SQL, ";"))
	}
	return b.String()
}
