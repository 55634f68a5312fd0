// Package sqlerr defines the engine's error taxonomy so the CLI can print
// one line and exit non-zero without caring which layer failed.
package sqlerr

import "fmt"

// Kind identifies which failure category an error belongs to.
type Kind int

const (
	Io Kind = iota
	BadHeader
	MalformedVarint
	TruncatedRecord
	UnsupportedPageKind
	OverflowUnsupported
	MalformedTree
	SqlSyntax
	UnquotedStringLiteral
	TrailingGarbage
	UnknownTable
	UnknownColumn
	UnsupportedFeature
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "Io"
	case BadHeader:
		return "BadHeader"
	case MalformedVarint:
		return "MalformedVarint"
	case TruncatedRecord:
		return "TruncatedRecord"
	case UnsupportedPageKind:
		return "UnsupportedPageKind"
	case OverflowUnsupported:
		return "OverflowUnsupported"
	case MalformedTree:
		return "MalformedTree"
	case SqlSyntax:
		return "SqlSyntax"
	case UnquotedStringLiteral:
		return "UnquotedStringLiteral"
	case TrailingGarbage:
		return "TrailingGarbage"
	case UnknownTable:
		return "UnknownTable"
	case UnknownColumn:
		return "UnknownColumn"
	case UnsupportedFeature:
		return "UnsupportedFeature"
	default:
		return "Unknown"
	}
}

// Error is a fatal engine error carrying the kind, the operation that
// raised it, and an optional wrapped cause plus free-form context.
type Error struct {
	Kind      Kind
	Operation string
	Cause     error
	Context   map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Operation)
	}
	if e.Context == nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v (context: %+v)", e.Kind, e.Operation, e.Cause, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error for the given kind and operation, wrapping cause
// (which may be nil) and attaching context (which may be nil).
func New(kind Kind, operation string, cause error, context map[string]interface{}) *Error {
	return &Error{Kind: kind, Operation: operation, Cause: cause, Context: context}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
