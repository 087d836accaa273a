package core

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// OptionsPatch is a partial Options as it appears in profiles and request
// bodies. Nil fields leave the base value alone. The delimiter is a
// one-character string rather than a rune so it reads naturally in YAML
// and JSON.
type OptionsPatch struct {
	Columns        []string `json:"columns,omitempty" yaml:"columns"`
	Delimiter      *string  `json:"delimiter,omitempty" yaml:"delimiter"`
	Encoding       *string  `json:"encoding,omitempty" yaml:"encoding"`
	FixedEncoding  *string  `json:"fixed_encoding,omitempty" yaml:"fixed_encoding"`
	OutputEncoding *string  `json:"output_encoding,omitempty" yaml:"output_encoding"`

	Mode       *Mode `json:"mode,omitempty" yaml:"mode"`
	Offset     *int  `json:"offset,omitempty" yaml:"offset"`
	AutoOffset *bool `json:"auto_offset,omitempty" yaml:"auto_offset"`

	DedupKey *string `json:"dedup_key,omitempty" yaml:"dedup_key"`

	StrictColumns   *bool      `json:"strict_columns,omitempty" yaml:"strict_columns"`
	Match           *MatchMode `json:"match,omitempty" yaml:"match"`
	RejectAmbiguous *bool      `json:"reject_ambiguous,omitempty" yaml:"reject_ambiguous"`

	FixedIndexes  []int    `json:"fixed_indexes,omitempty" yaml:"fixed_indexes"`
	SelectColumns []string `json:"select_columns,omitempty" yaml:"select_columns"`
	Sheet         *string  `json:"sheet,omitempty" yaml:"sheet"`

	DryRun *bool `json:"dry_run,omitempty" yaml:"dry_run"`
}

// Apply returns base with every set field of p copied over. It does not
// validate the result beyond parsing the delimiter.
func (p OptionsPatch) Apply(base Options) (Options, error) {
	o := base
	if p.Columns != nil {
		o.Columns = slices.Clone(p.Columns)
	}
	if p.Delimiter != nil {
		r, err := ParseDelimiter(*p.Delimiter)
		if err != nil {
			return Options{}, err
		}
		o.Delimiter = r
	}
	setIf(&o.Encoding, p.Encoding)
	setIf(&o.FixedEncoding, p.FixedEncoding)
	setIf(&o.OutputEncoding, p.OutputEncoding)
	setIf(&o.Mode, p.Mode)
	setIf(&o.Offset, p.Offset)
	setIf(&o.AutoOffset, p.AutoOffset)
	setIf(&o.DedupKey, p.DedupKey)
	setIf(&o.StrictColumns, p.StrictColumns)
	setIf(&o.Match, p.Match)
	setIf(&o.RejectAmbiguous, p.RejectAmbiguous)
	if p.FixedIndexes != nil {
		o.FixedIndexes = slices.Clone(p.FixedIndexes)
	}
	if p.SelectColumns != nil {
		o.SelectColumns = slices.Clone(p.SelectColumns)
	}
	setIf(&o.Sheet, p.Sheet)
	setIf(&o.DryRun, p.DryRun)
	return o, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// PatchOf renders o as a fully populated patch, for display.
func PatchOf(o Options) OptionsPatch {
	delim := string(o.Delimiter)
	return OptionsPatch{
		Columns:         slices.Clone(o.Columns),
		Delimiter:       &delim,
		Encoding:        &o.Encoding,
		FixedEncoding:   &o.FixedEncoding,
		OutputEncoding:  &o.OutputEncoding,
		Mode:            &o.Mode,
		Offset:          &o.Offset,
		AutoOffset:      &o.AutoOffset,
		DedupKey:        &o.DedupKey,
		StrictColumns:   &o.StrictColumns,
		Match:           &o.Match,
		RejectAmbiguous: &o.RejectAmbiguous,
		FixedIndexes:    slices.Clone(o.FixedIndexes),
		SelectColumns:   slices.Clone(o.SelectColumns),
		Sheet:           &o.Sheet,
		DryRun:          &o.DryRun,
	}
}

// ParseDelimiter parses a delimiter given as a single character. The
// escape `\t` is accepted for tab.
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, &Error{
			Kind: KindInvalidConfiguration,
			Err:  fmt.Errorf("delimiter %q must be a single character", s),
		}
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
