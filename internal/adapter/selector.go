package adapter

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

func init() {
	Register(FormatSpreadsheet, newSelector, ".xlsx", ".xlsm")
}

// Selector reads a spreadsheet sheet whose first row holds the headers and
// keeps only the Columns chosen by the caller, in that order. Column names
// must match headers exactly; any that do not fail the read with a
// missing-columns error naming all of them.
type Selector struct {
	Columns []string
	Sheet   string
	Logger  *slog.Logger
}

func newSelector(opts core.Options, logger *slog.Logger) (Adapter, error) {
	if len(opts.SelectColumns) == 0 {
		return nil, &core.Error{
			Kind: core.KindInvalidConfiguration,
			Err:  errors.New("spreadsheet sources need select_columns"),
		}
	}
	return &Selector{
		Columns: slices.Clone(opts.SelectColumns),
		Sheet:   opts.Sheet,
		Logger:  logger,
	}, nil
}

// Adapt implements Adapter.
func (s *Selector) Adapt(ctx context.Context, path string) (core.Dataset, error) {
	if len(s.Columns) == 0 {
		return core.Dataset{}, core.Errorf(core.KindInvalidConfiguration, path, "no columns selected")
	}

	sheet, err := openSheet(path, s.Sheet)
	if err != nil {
		return core.Dataset{}, err
	}
	defer sheet.Close()

	headers, err := sheet.next()
	if err != nil {
		return core.Dataset{}, err
	}

	pos := make(map[string]int, len(s.Columns))
	var missing []string
	for _, c := range s.Columns {
		i := slices.Index(headers, c)
		if i < 0 {
			missing = append(missing, c)
			continue
		}
		pos[c] = i
	}
	if len(missing) > 0 {
		return core.Dataset{}, &core.Error{
			Kind:    core.KindMissingColumns,
			Path:    path,
			Columns: missing,
		}
	}

	out := core.NewDataset(s.Columns)
	for n := 2; sheet.rows.Next(); n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return core.Dataset{}, err
			}
		}
		cells, err := sheet.rows.Columns()
		if err != nil {
			return core.Dataset{}, &core.Error{Kind: core.KindUnreadableSource, Path: path, Line: n, Err: err}
		}
		out.Records = append(out.Records, core.Project(s.Columns, func(c string) (string, bool) {
			i := pos[c]
			if i >= len(cells) {
				return "", false
			}
			return cells[i], true
		}))
	}
	if err := sheet.rows.Error(); err != nil {
		return core.Dataset{}, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}

	s.logger().Debug("spreadsheet source read",
		"path", path,
		"sheet", sheet.name,
		"rows", out.Len(),
	)
	return out, nil
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// SheetColumns returns the header names of a sheet, the first sheet when
// sheet is empty.
func SheetColumns(path, sheet string) ([]string, error) {
	sh, err := openSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	defer sh.Close()

	return sh.next()
}

// Sheets returns the sheet names of a workbook in order.
func Sheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

type openedSheet struct {
	path string
	name string
	file *excelize.File
	rows *excelize.Rows
}

func openSheet(path, name string) (*openedSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}

	if name == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			f.Close()
			return nil, core.Errorf(core.KindUnreadableSource, path, "workbook has no sheets")
		}
		name = list[0]
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		f.Close()
		return nil, core.Errorf(core.KindUnreadableSource, path, "sheet %q not found", name)
	}

	rows, err := f.Rows(name)
	if err != nil {
		f.Close()
		return nil, &core.Error{Kind: core.KindUnreadableSource, Path: path, Err: err}
	}

	return &openedSheet{path: path, name: name, file: f, rows: rows}, nil
}

// next returns the next row with surrounding spaces trimmed from each cell,
// or nil at the end of the sheet.
func (s *openedSheet) next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, &core.Error{Kind: core.KindUnreadableSource, Path: s.path, Err: err}
		}
		return nil, nil
	}
	cells, err := s.rows.Columns()
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnreadableSource, Path: s.path, Err: err}
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells, nil
}

func (s *openedSheet) Close() error {
	rerr := s.rows.Close()
	ferr := s.file.Close()
	return errors.Join(rerr, ferr)
}
