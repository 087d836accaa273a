// Package sink loads the merge target and persists merged datasets.
//
// A merge writes two artifacts: the target spreadsheet itself and a
// delimited text file next to it with the same base name and a .csv
// extension. Both are written to temporary files in the target directory
// and only renamed into place once both are complete.
package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// DefaultSheet is the sheet name written to target spreadsheets.
const DefaultSheet = "Sheet1"

// SpreadsheetExtensions lists the target extensions that can be written.
var SpreadsheetExtensions = []string{".xlsx", ".xlsm"}

// Options controls how a dataset is written.
type Options struct {
	Delimiter rune
	Encoding  string
	Sheet     string
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = core.DefaultDelimiter
	}
	if o.Encoding == "" {
		o.Encoding = core.DefaultOutputEncoding
	}
	if o.Sheet == "" {
		o.Sheet = DefaultSheet
	}
	return o
}

// Confirmation reports what a write produced.
type Confirmation struct {
	Spreadsheet string    `json:"spreadsheet"`
	Delimited   string    `json:"delimited"`
	Rows        int       `json:"rows"`
	WrittenAt   time.Time `json:"written_at"`
}

// SiblingPath returns path with its extension replaced by ext.
func SiblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// CheckTarget reports whether path names a spreadsheet the sink can write.
func CheckTarget(path string) error {
	if path == "" {
		return &core.Error{Kind: core.KindInvalidConfiguration, Err: errors.New("no target file given")}
	}
	if !slices.Contains(SpreadsheetExtensions, strings.ToLower(filepath.Ext(path))) {
		return &core.Error{
			Kind: core.KindInvalidConfiguration,
			Path: path,
			Err:  fmt.Errorf("target must be one of %s", strings.Join(SpreadsheetExtensions, ", ")),
		}
	}
	return nil
}

// Write persists ds to target and to its .csv sibling. Existing files are
// replaced only when both new files were written successfully.
func Write(ds core.Dataset, target string, opts Options) (Confirmation, error) {
	if err := CheckTarget(target); err != nil {
		return Confirmation{}, err
	}
	opts = opts.withDefaults()
	delimited := SiblingPath(target, ".csv")

	xlsxTmp, err := writeSpreadsheetTemp(ds, target, opts.Sheet)
	if err != nil {
		return Confirmation{}, fmt.Errorf("write %s: %w", target, err)
	}
	csvTmp, err := writeDelimitedTemp(ds, delimited, opts)
	if err != nil {
		os.Remove(xlsxTmp)
		return Confirmation{}, fmt.Errorf("write %s: %w", delimited, err)
	}

	if err := os.Rename(xlsxTmp, target); err != nil {
		os.Remove(xlsxTmp)
		os.Remove(csvTmp)
		return Confirmation{}, fmt.Errorf("replace %s: %w", target, err)
	}
	if err := os.Rename(csvTmp, delimited); err != nil {
		os.Remove(csvTmp)
		return Confirmation{}, fmt.Errorf("replace %s: %w", delimited, err)
	}

	return Confirmation{
		Spreadsheet: target,
		Delimited:   delimited,
		Rows:        ds.Len(),
		WrittenAt:   time.Now().UTC(),
	}, nil
}

// tempFor reserves a temporary file next to path that keeps path's
// extension.
func tempFor(path string) (string, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	ext := filepath.Ext(base)
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+"-*"+ext)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// LoadTarget reads an existing target spreadsheet. The first row becomes
// the columns and every later row a record padded to that width. A target
// that does not exist yet, or has an empty sheet, yields a dataset with no
// columns. A row holding values to the right of the last header cell is a
// schema mismatch, since writing the merge back would drop them.
func LoadTarget(path, sheet string) (core.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Dataset{}, nil
		}
		return core.Dataset{}, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return core.Dataset{}, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}
	if len(rows) == 0 {
		return core.Dataset{}, nil
	}

	ds := core.NewDataset(rows[0])
	for i, r := range rows[1:] {
		if extra := overflow(r, ds.Width()); extra > 0 {
			return core.Dataset{}, &core.Error{
				Kind: core.KindSchemaMismatch,
				Path: path,
				Line: i + 2,
				Err:  fmt.Errorf("%w (%d cells past column %d)", core.ErrRowTooWide, extra, ds.Width()),
			}
		}
		ds.Records = append(ds.Records, core.Conform(ds.Width(), r))
	}
	return ds, nil
}

// overflow counts the cells of row beyond width up to its last non-blank
// one.
func overflow(row []string, width int) int {
	last := len(row)
	for last > width && strings.TrimSpace(row[last-1]) == "" {
		last--
	}
	return max(0, last-width)
}
