// Package grammar implements Stage A of the pipeline: it tokenizes the raw
// notation text into gongans, staves, measures and inline metadata records,
// without yet knowing what any metadata keyword or instrument tag means.
// Scanning is line-oriented: a bufio scanner, a switch over a small set
// of line shapes, and errors that never abort the scan itself (report
// line/column, consume to the next newline, keep going).
package grammar

import "fmt"

// ErrorKind distinguishes the grammar-level failure categories.
type ErrorKind string

const (
	KindMissingKeyword    ErrorKind = "missing-keyword"
	KindUnknownKeyword    ErrorKind = "unknown-keyword"
	KindUnrecognizedParam ErrorKind = "unrecognized-param"
	KindMalformedList     ErrorKind = "malformed-list"
	KindDuplicateKey      ErrorKind = "duplicate-key"
	KindUnexpectedToken   ErrorKind = "unexpected-token"
)

// Error is a parse failure tied to a specific source location,
// discriminated by Kind.
type Error struct {
	Kind    ErrorKind
	Line    int
	Column  int
	Gongan  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", "grammar", e.Line, e.Column, e.Message)
}

func newError(kind ErrorKind, line, column, gongan int, format string, args ...any) *Error {
	return &Error{Kind: kind, Line: line, Column: column, Gongan: gongan, Message: fmt.Sprintf(format, args...)}
}
