package core

import (
	"errors"
	"slices"
	"testing"
)

func TestOptionsPatch_Apply(t *testing.T) {
	delim := ","
	mode := ModeInsert
	offset := 3
	empty := ""

	base := DefaultOptions()
	got, err := OptionsPatch{
		Delimiter: &delim,
		Mode:      &mode,
		Offset:    &offset,
		DedupKey:  &empty,
	}.Apply(base)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if got.Delimiter != ',' || got.Mode != ModeInsert || got.Offset != 3 || got.DedupKey != "" {
		t.Errorf("Apply() = %+v", got)
	}
	if got.Encoding != base.Encoding {
		t.Errorf("Encoding = %q, want base value %q", got.Encoding, base.Encoding)
	}
	if base.Mode != ModeAppend {
		t.Error("Apply modified its base")
	}
}

func TestOptionsPatch_ApplyCopiesSlices(t *testing.T) {
	cols := []string{"A", "B"}
	got, err := OptionsPatch{Columns: cols}.Apply(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	cols[0] = "changed"
	if got.Columns[0] != "A" {
		t.Errorf("Columns shares memory with the patch")
	}
}

func TestOptionsPatch_RoundTrip(t *testing.T) {
	o := DefaultOptions()
	o.Delimiter = '\t'
	o.SelectColumns = []string{"Kod"}

	got, err := PatchOf(o).Apply(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Delimiter != '\t' || !slices.Equal(got.Columns, o.Columns) || !slices.Equal(got.SelectColumns, o.SelectColumns) {
		t.Errorf("PatchOf/Apply = %+v, want %+v", got, o)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{";", ';', false},
		{"|", '|', false},
		{`\t`, '\t', false},
		{"ą", 'ą', false},
		{"", 0, true},
		{";;", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("ParseDelimiter(%q) error = %v, want invalid configuration", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDelimiter(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
