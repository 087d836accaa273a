// Package schema defines the canonical column sets that merged datasets are
// shaped into.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Column names of the default product schema.
const (
	Code  = "Kod"
	Name  = "ProduktNazwa"
	Price = "Cena"
	VAT   = "VAT"
)

// Products is the default product catalogue schema.
var Products = MustNew(Code, Name, Price, VAT)

// ErrEmptySchema is returned when a schema is built without columns.
var ErrEmptySchema = errors.New("schema has no columns")

// Schema is an immutable ordered list of unique column names.
type Schema struct {
	columns []string
	index   map[string]int
}

// New builds a schema from the given column names.
// Names are trimmed; empty and duplicate names are rejected.
func New(columns ...string) (Schema, error) {
	if len(columns) == 0 {
		return Schema{}, ErrEmptySchema
	}

	s := Schema{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return Schema{}, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := s.index[c]; dup {
			return Schema{}, fmt.Errorf("duplicate column %q", c)
		}
		s.index[c] = len(s.columns)
		s.columns = append(s.columns, c)
	}
	return s, nil
}

// MustNew is like New but panics on error. Use it for package-level schemas.
func MustNew(columns ...string) Schema {
	s, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns a copy of the column names in order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.columns) }

// Index returns the position of name, or -1 when absent.
func (s Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether name is a column of the schema.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Equal reports whether both schemas list the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != other.columns[i] {
			return false
		}
	}
	return true
}

// String returns the columns joined by commas.
func (s Schema) String() string {
	return strings.Join(s.columns, ",")
}
