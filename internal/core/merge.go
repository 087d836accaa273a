package core

import (
	"fmt"
	"slices"
)

// Mode selects how incoming records are folded into the target.
type Mode string

const (
	// ModeAppend adds incoming records after the existing ones.
	ModeAppend Mode = "append"

	// ModeInsert splices incoming records in at a row offset.
	ModeInsert Mode = "insert"
)

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAppend, "":
		return ModeAppend, nil
	case ModeInsert:
		return ModeInsert, nil
	default:
		return "", fmt.Errorf("unknown merge mode %q: use %q or %q", s, ModeAppend, ModeInsert)
	}
}

// Append returns a new dataset holding target's records followed by
// incoming's, in order. The layouts must be compatible; see InsertAt.
func Append(target, incoming Dataset) (Dataset, error) {
	out, in, err := unify(target, incoming)
	if err != nil {
		return Dataset{}, err
	}
	out.Records = append(out.Records, in.Records...)
	return out, nil
}

// InsertAt returns a new dataset with incoming's records spliced into
// target before position offset, plus the offset just past the inserted
// block. When offset is beyond the end, target is first padded with empty
// records up to offset. A negative offset is an InvalidConfiguration error.
//
// If target has no columns it adopts incoming's columns. Otherwise incoming
// must name the same set of columns and is realigned to target's order;
// anything else is a SchemaMismatch.
func InsertAt(target Dataset, offset int, incoming Dataset) (Dataset, int, error) {
	if offset < 0 {
		return Dataset{}, 0, &Error{
			Kind: KindInvalidConfiguration,
			Err:  fmt.Errorf("insert offset %d is negative", offset),
		}
	}

	out, in, err := unify(target, incoming)
	if err != nil {
		return Dataset{}, 0, err
	}

	for len(out.Records) < offset {
		out.Records = append(out.Records, make(Record, out.Width()))
	}

	out.Records = slices.Insert(out.Records, offset, in.Records...)
	return out, offset + len(in.Records), nil
}

// unify returns copies of target and incoming sharing one column layout.
func unify(target, incoming Dataset) (Dataset, Dataset, error) {
	in := incoming.Clone()

	if len(target.Columns) == 0 {
		out := target.Clone()
		out.Columns = slices.Clone(in.Columns)
		for i, r := range out.Records {
			out.Records[i] = Conform(len(in.Columns), r)
		}
		return out, in, nil
	}

	if len(in.Columns) == 0 && len(in.Records) == 0 {
		return target.Clone(), Dataset{Columns: slices.Clone(target.Columns)}, nil
	}

	in, err := in.Realign(target.Columns)
	if err != nil {
		return Dataset{}, Dataset{}, err
	}
	return target.Clone(), in, nil
}
