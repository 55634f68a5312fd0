package sql

// MetaCommand is a dot-command (spec §4.8): .dbinfo, .tables, .schema.
type MetaCommand struct {
	Name string
}

// Literal is a WHERE-clause comparison value: either the decimal integer
// or the single-quoted string the grammar accepts (spec §4.8).
type Literal struct {
	IsInt bool
	Int   int64
	Text  string
}

// WhereClause is the single supported predicate: one column compared to
// one literal with one of the six comparison operators.
type WhereClause struct {
	Column string
	Op     string
	Value  Literal
}

// SelectStmt is a parsed SELECT statement. Star and CountStar are
// mutually exclusive with Columns; exactly one of Star, CountStar, or a
// non-empty Columns is set.
type SelectStmt struct {
	Star      bool
	CountStar bool
	Columns   []string
	Table     string
	Where     *WhereClause
}
