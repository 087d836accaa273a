package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/schema"
	"github.com/JonMunkholm/sheetmerge/internal/textenc"
)

// MatchMode controls how header-mapped sources bind headers to columns.
type MatchMode string

const (
	// MatchSubstring binds a header when it contains the column name,
	// ignoring case.
	MatchSubstring MatchMode = "substring"

	// MatchExact binds a header only when it equals the column name,
	// ignoring case.
	MatchExact MatchMode = "exact"
)

// Default option values.
const (
	DefaultDelimiter      = ';'
	DefaultEncoding       = "windows-1250"
	DefaultFixedEncoding  = "utf-8"
	DefaultOutputEncoding = "utf-8"
	DefaultPreviewRows    = 5
)

// DefaultFixedIndexes picks Kod, ProduktNazwa, Cena and VAT out of the
// fixed-layout price list export.
var DefaultFixedIndexes = []int{0, 3, 2, 4}

// Options configures one merge run.
type Options struct {
	// Columns is the canonical column order for delimited sources.
	Columns []string `json:"columns" yaml:"columns"`

	Delimiter      rune   `json:"delimiter" yaml:"delimiter"`
	Encoding       string `json:"encoding" yaml:"encoding"`
	FixedEncoding  string `json:"fixed_encoding" yaml:"fixed_encoding"`
	OutputEncoding string `json:"output_encoding" yaml:"output_encoding"`

	Mode       Mode `json:"mode" yaml:"mode"`
	Offset     int  `json:"offset" yaml:"offset"`
	AutoOffset bool `json:"auto_offset" yaml:"auto_offset"`

	// DedupKey names the key column; empty disables dedup.
	DedupKey string `json:"dedup_key" yaml:"dedup_key"`

	StrictColumns   bool      `json:"strict_columns" yaml:"strict_columns"`
	Match           MatchMode `json:"match" yaml:"match"`
	RejectAmbiguous bool      `json:"reject_ambiguous" yaml:"reject_ambiguous"`

	FixedIndexes []int `json:"fixed_indexes" yaml:"fixed_indexes"`

	// SelectColumns lists the spreadsheet columns to take, in order.
	// Spreadsheet sources require it.
	SelectColumns []string `json:"select_columns" yaml:"select_columns"`
	Sheet         string   `json:"sheet" yaml:"sheet"`

	DryRun bool `json:"dry_run" yaml:"dry_run"`
}

// DefaultOptions returns the product catalogue defaults.
func DefaultOptions() Options {
	return Options{
		Columns:        schema.Products.Columns(),
		Delimiter:      DefaultDelimiter,
		Encoding:       DefaultEncoding,
		FixedEncoding:  DefaultFixedEncoding,
		OutputEncoding: DefaultOutputEncoding,
		Mode:           ModeAppend,
		DedupKey:       schema.Code,
		Match:          MatchSubstring,
		FixedIndexes:   slices.Clone(DefaultFixedIndexes),
	}
}

// Schema returns the canonical schema built from Columns.
func (o Options) Schema() (schema.Schema, error) {
	return schema.New(o.Columns...)
}

// Validate checks every option and reports all problems at once as an
// InvalidConfiguration error.
func (o Options) Validate() error {
	var errs problems

	s, err := o.Schema()
	if err != nil {
		errs = errs.add("columns: %v", err)
	}

	switch o.Delimiter {
	case 0, '\n', '\r', '"':
		errs = errs.add("delimiter %q is not allowed", o.Delimiter)
	}

	for _, enc := range []struct{ field, name string }{
		{"encoding", o.Encoding},
		{"fixed_encoding", o.FixedEncoding},
		{"output_encoding", o.OutputEncoding},
	} {
		if _, err := textenc.Lookup(enc.name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", enc.field, err))
		}
	}

	if _, err := ParseMode(string(o.Mode)); err != nil {
		errs = append(errs, err)
	}
	if o.Offset < 0 {
		errs = errs.add("offset %d must be >= 0", o.Offset)
	}

	// dedup only runs in append mode
	if o.DedupKey != "" && o.Mode != ModeInsert {
		switch {
		case len(o.SelectColumns) > 0 && !slices.Contains(o.SelectColumns, o.DedupKey):
			errs = errs.add("dedup key %q is not one of the selected columns", o.DedupKey)
		case len(o.SelectColumns) == 0 && err == nil && !s.Has(o.DedupKey):
			errs = errs.add("dedup key %q is not one of the columns", o.DedupKey)
		}
	}

	switch o.Match {
	case MatchSubstring, MatchExact, "":
	default:
		errs = errs.add("match mode %q: use %q or %q", o.Match, MatchSubstring, MatchExact)
	}

	if err == nil && len(o.FixedIndexes) != s.Len() {
		errs = errs.add("fixed_indexes has %d entries, want one per column (%d)", len(o.FixedIndexes), s.Len())
	}
	for _, i := range o.FixedIndexes {
		if i < 0 {
			errs = errs.add("fixed index %d must be >= 0", i)
		}
	}

	if len(o.SelectColumns) > 0 {
		if _, err := schema.New(o.SelectColumns...); err != nil {
			errs = errs.add("select_columns: %v", err)
		}
	}

	if len(errs) > 0 {
		return &Error{Kind: KindInvalidConfiguration, Err: errs}
	}
	return nil
}

// problems collects validation failures into one error. Errors.Is and
// errors.As see every collected error.
type problems []error

func (p problems) add(format string, args ...any) problems {
	return append(p, fmt.Errorf(format, args...))
}

func (p problems) Error() string {
	msgs := make([]string, len(p))
	for i, err := range p {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (p problems) Unwrap() []error { return p }
