package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/JonMunkholm/sheetmerge/internal/textenc"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "missing source file",
			err:      &Error{Kind: KindUnreadableSource, Path: "a.csv", Err: fmt.Errorf("open a.csv: %w", fs.ErrNotExist)},
			wantCode: "SRC001",
		},
		{
			name:     "permission denied",
			err:      &Error{Kind: KindUnreadableSource, Path: "a.csv", Err: fmt.Errorf("open a.csv: %w", fs.ErrPermission)},
			wantCode: "SRC002",
		},
		{
			name:     "unreadable source",
			err:      &Error{Kind: KindUnreadableSource, Path: "a.xlsx", Err: errors.New("zip: not a valid zip file")},
			wantCode: "SRC004",
		},
		{
			name:     "os no such file text",
			err:      errors.New("open a.csv: no such file or directory"),
			wantCode: "SRC001",
		},
		{
			name:     "overlong row",
			err:      &Error{Kind: KindUnreadableSource, Line: 3, Err: fmt.Errorf("%w (5 > 4)", ErrRowTooWide)},
			wantCode: "SRC003",
		},
		{
			name:     "ambiguous header",
			err:      &Error{Kind: KindSchemaMismatch, Columns: []string{"Cena"}, Err: ErrAmbiguousHeader},
			wantCode: "SCH001",
		},
		{
			name:     "schema mismatch",
			err:      &Error{Kind: KindSchemaMismatch, Columns: []string{"VAT"}},
			wantCode: "SCH002",
		},
		{
			name:     "missing columns",
			err:      &Error{Kind: KindMissingColumns, Columns: []string{"Nazwa"}},
			wantCode: "COL001",
		},
		{
			name:     "unknown encoding",
			err:      &Error{Kind: KindInvalidConfiguration, Err: fmt.Errorf("encoding: %w", textenc.ErrUnknownEncoding)},
			wantCode: "CFG001",
		},
		{
			name:     "unknown encoding among other problems",
			err:      Options{Encoding: "klingon"}.Validate(),
			wantCode: "CFG001",
		},
		{
			name:     "invalid configuration",
			err:      &Error{Kind: KindInvalidConfiguration, Err: errors.New("offset -1 must be >= 0")},
			wantCode: "CFG002",
		},
		{
			name:     "path naming another failure",
			err:      &Error{Kind: KindSchemaMismatch, Path: "/data/no such file/ambiguous.csv", Columns: []string{"VAT"}},
			wantCode: "SCH002",
		},
		{
			name:     "column naming another failure",
			err:      &Error{Kind: KindUnreadableSource, Path: "missing columns.csv", Err: errors.New("unknown encoding in column")},
			wantCode: "SRC004",
		},
		{
			name:     "cancelled read",
			err:      &Error{Kind: KindUnreadableSource, Path: "a.csv", Err: context.Canceled},
			wantCode: "MRG002",
		},
		{
			name:     "merge deadline",
			err:      fmt.Errorf("merge cancelled before a.csv: %w", context.DeadlineExceeded),
			wantCode: "MRG003",
		},
		{
			name:     "busy",
			err:      errors.New("too many concurrent merges, please try again later"),
			wantCode: "MRG001",
		},
		{
			name:     "unknown error",
			err:      errors.New("something weird"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q (error %v)", got.Code, tt.wantCode, tt.err)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(&Error{Kind: KindMissingColumns, Columns: []string{"X"}})
	want := "Selected columns are not in the sheet (Code: COL001). List the sheet's columns and choose again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Errorf("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(&Error{Kind: KindSchemaMismatch}) {
		t.Errorf("schema mismatch should be user facing")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Errorf("unknown error should not be user facing")
	}
	if IsUserFacing(nil) {
		t.Errorf("nil should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	orig := &Error{Kind: KindMissingColumns, Columns: []string{"X"}}
	ue := NewUserError(orig)

	if ue.User.Code != "COL001" {
		t.Errorf("code = %q, want COL001", ue.User.Code)
	}
	if !errors.Is(ue, ErrMissingColumns) {
		t.Errorf("UserError should unwrap to the technical error")
	}
	if NewUserError(nil) != nil {
		t.Errorf("NewUserError(nil) should be nil")
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindSchemaMismatch, Path: "in.csv", Columns: []string{"VAT", "Cena"}}
	want := "schema mismatch: in.csv: columns VAT, Cena"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if KindOf(fmt.Errorf("wrapped: %w", err)) != KindSchemaMismatch {
		t.Errorf("KindOf through wrapping failed")
	}
	if errors.Is(err, ErrMissingColumns) {
		t.Errorf("schema mismatch should not match ErrMissingColumns")
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(KindUnreadableSource, "book.xlsx", "sheet %q not found", "Ceny")
	want := `unreadable source: book.xlsx: sheet "Ceny" not found`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrUnreadableSource) {
		t.Errorf("Errorf result should match ErrUnreadableSource")
	}
	if got := MapError(err).Code; got != "SRC004" {
		t.Errorf("MapError code = %s, want SRC004", got)
	}
}
