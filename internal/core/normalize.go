package core

import "slices"

// Conform pads values with empty strings or truncates them so the result
// has exactly width entries. The input is never modified.
func Conform(width int, values []string) Record {
	out := make(Record, width)
	copy(out, values)
	return out
}

// Project builds a record in column order, taking each value from lookup.
// Columns lookup does not know are left empty.
func Project(columns []string, lookup func(column string) (string, bool)) Record {
	out := make(Record, len(columns))
	for i, c := range columns {
		if v, ok := lookup(c); ok {
			out[i] = v
		}
	}
	return out
}

// Realign returns a copy of d whose records follow the given column order.
// Both column lists must name the same set of columns.
func (d Dataset) Realign(columns []string) (Dataset, error) {
	if slices.Equal(d.Columns, columns) {
		return d.Clone(), nil
	}
	if !SameColumnSet(d.Columns, columns) {
		return Dataset{}, &Error{
			Kind:    KindSchemaMismatch,
			Columns: symmetricDifference(columns, d.Columns),
		}
	}

	perm := make([]int, len(columns))
	for i, c := range columns {
		perm[i] = d.ColumnIndex(c)
	}

	out := Dataset{Columns: slices.Clone(columns), Records: make([]Record, len(d.Records))}
	for i, r := range d.Records {
		rec := make(Record, len(columns))
		for j, src := range perm {
			if src < len(r) {
				rec[j] = r[src]
			}
		}
		out.Records[i] = rec
	}
	return out, nil
}

// symmetricDifference lists names present in exactly one of want and got,
// want's extras first.
func symmetricDifference(want, got []string) []string {
	var diff []string
	for _, c := range want {
		if !slices.Contains(got, c) {
			diff = append(diff, c)
		}
	}
	for _, c := range got {
		if !slices.Contains(want, c) {
			diff = append(diff, c)
		}
	}
	return diff
}
