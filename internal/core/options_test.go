package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultOptions_Valid(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() = %v", err)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantSub string
	}{
		{"no columns", func(o *Options) { o.Columns = nil }, "columns"},
		{"duplicate columns", func(o *Options) { o.Columns = []string{"Kod", "Kod", "Cena", "VAT"} }, "duplicate"},
		{"newline delimiter", func(o *Options) { o.Delimiter = '\n' }, "delimiter"},
		{"unknown encoding", func(o *Options) { o.Encoding = "klingon" }, "unknown encoding"},
		{"unknown mode", func(o *Options) { o.Mode = "replace" }, "merge mode"},
		{"negative offset", func(o *Options) { o.Offset = -2 }, "offset"},
		{"dedup key not a column", func(o *Options) { o.DedupKey = "SKU" }, "dedup key"},
		{"bad match mode", func(o *Options) { o.Match = "fuzzy" }, "match mode"},
		{"index count", func(o *Options) { o.FixedIndexes = []int{0, 1} }, "fixed_indexes"},
		{"negative index", func(o *Options) { o.FixedIndexes = []int{0, 1, 2, -1} }, "fixed index"},
		{"dedup key not selected", func(o *Options) { o.SelectColumns = []string{"Nazwa"} }, "selected columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)

			err := o.Validate()
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestOptions_ValidateReportsAll(t *testing.T) {
	o := DefaultOptions()
	o.Offset = -1
	o.Match = "fuzzy"

	err := o.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sub := range []string{"offset", "match mode"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("error %q does not mention %q", err, sub)
		}
	}
}

func TestOptions_DisabledDedup(t *testing.T) {
	o := DefaultOptions()
	o.DedupKey = ""
	o.SelectColumns = []string{"Nazwa", "Cena"}
	if err := o.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestOptions_InsertIgnoresDedupKey(t *testing.T) {
	o := DefaultOptions()
	o.Mode = ModeInsert
	o.SelectColumns = []string{"Nazwa"}
	if err := o.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
