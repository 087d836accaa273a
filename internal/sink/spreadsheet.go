package sink

import (
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// WriteSpreadsheet writes ds to path as a single sheet: a header row with
// the columns, then one row per record. Every cell is stored as text.
func WriteSpreadsheet(ds core.Dataset, path, sheet string) error {
	f, err := buildWorkbook(ds, sheet)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func writeSpreadsheetTemp(ds core.Dataset, target, sheet string) (string, error) {
	tmp, err := tempFor(target)
	if err != nil {
		return "", err
	}
	if err := WriteSpreadsheet(ds, tmp, sheet); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

func buildWorkbook(ds core.Dataset, sheet string) (*excelize.File, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			f.Close()
			return nil, err
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := sw.SetRow("A1", cells(ds.Columns)); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range ds.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := sw.SetRow(cell, cells(core.Conform(ds.Width(), r))); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// cells converts values to stream writer cells. Values are typed as
// strings so codes like "007" keep their leading zeros.
func cells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
