package engine

import (
	"strings"

	"github.com/nyxdb/sqlitequery/internal/record"
)

// project selects and renders the requested columns from rec, one
// string per line, '|'-separated (spec §5 .dbinfo/.tables/.schema are
// formatted separately; this is the SELECT projection format).
func project(pl *plan, rec *record.Record) string {
	if pl.star {
		return formatValues(rec.Values)
	}
	vals := make([]record.Value, len(pl.columns))
	for i, idx := range pl.columns {
		vals[i] = rec.Values[idx]
	}
	return formatValues(vals)
}

func formatValues(values []record.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, "|")
}

// formatValue renders a single value: NULL as empty string, integers in
// decimal, floats in plain decimal, text and blobs as their raw bytes
// (spec §6).
func formatValue(v record.Value) string {
	if v.Kind == record.Null {
		return ""
	}
	return v.String()
}
