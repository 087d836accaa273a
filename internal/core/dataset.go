package core

import (
	"slices"
)

// Record is one row of values aligned with its dataset's Columns.
// Absent values are empty strings.
type Record []string

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// IsEmpty reports whether every value is empty.
func (r Record) IsEmpty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// Dataset is an ordered sequence of records sharing one column layout.
// A dataset with no columns is the empty target that adopts whatever
// layout is merged into it first.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// NewDataset returns an empty dataset with the given columns.
func NewDataset(columns []string) Dataset {
	return Dataset{Columns: slices.Clone(columns), Records: []Record{}}
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// Width returns the number of columns.
func (d Dataset) Width() int { return len(d.Columns) }

// ColumnIndex returns the position of name, or -1.
func (d Dataset) ColumnIndex(name string) int {
	return slices.Index(d.Columns, name)
}

// Value returns the value of column name in record i, or "" when the
// column does not exist.
func (d Dataset) Value(i int, name string) string {
	c := d.ColumnIndex(name)
	if c < 0 || i < 0 || i >= len(d.Records) || c >= len(d.Records[i]) {
		return ""
	}
	return d.Records[i][c]
}

// Clone returns a deep copy.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Columns: slices.Clone(d.Columns),
		Records: make([]Record, len(d.Records)),
	}
	for i, r := range d.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Head returns a copy holding at most n leading records.
func (d Dataset) Head(n int) Dataset {
	if n < 0 || n > len(d.Records) {
		n = len(d.Records)
	}
	out := Dataset{Columns: slices.Clone(d.Columns), Records: make([]Record, n)}
	for i := 0; i < n; i++ {
		out.Records[i] = d.Records[i].Clone()
	}
	return out
}

// SameColumnSet reports whether both column lists hold the same names,
// regardless of order.
func SameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, c := range a {
		seen[c]++
	}
	for _, c := range b {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}
