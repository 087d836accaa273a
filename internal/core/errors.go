package core

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a merge failure.
type Kind int

const (
	// KindUnreadableSource means a source file could not be opened, decoded
	// or split into records.
	KindUnreadableSource Kind = iota + 1

	// KindSchemaMismatch means a source's columns cannot be mapped onto the
	// target columns.
	KindSchemaMismatch

	// KindMissingColumns means a spreadsheet source lacks a selected column.
	KindMissingColumns

	// KindInvalidConfiguration means the merge options are unusable.
	KindInvalidConfiguration
)

// Sentinel errors for use with errors.Is.
var (
	ErrUnreadableSource     = errors.New("unreadable source")
	ErrSchemaMismatch       = errors.New("schema mismatch")
	ErrMissingColumns       = errors.New("missing columns")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Causes wrapped in an *Error's Err to tell failures of one kind apart.
var (
	ErrAmbiguousHeader = errors.New("ambiguous header match")
	ErrRowTooWide      = errors.New("row has more fields than the header")
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnreadableSource:
		return ErrUnreadableSource
	case KindSchemaMismatch:
		return ErrSchemaMismatch
	case KindMissingColumns:
		return ErrMissingColumns
	case KindInvalidConfiguration:
		return ErrInvalidConfiguration
	default:
		return nil
	}
}

// String returns the kind's short name.
func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the structured error returned by adapters, the merge engine and
// the sink. Path, Columns and Line are set when they apply.
type Error struct {
	Kind    Kind
	Path    string
	Columns []string
	Line    int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if len(e.Columns) > 0 {
		b.WriteString(": columns ")
		b.WriteString(strings.Join(e.Columns, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Errorf builds an *Error of the given kind for path.
func Errorf(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
