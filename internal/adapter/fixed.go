package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

func init() {
	Register(FormatFixed, newFixed, ".txt", ".txt4")
}

// Fixed reads delimited text without a header, taking the field at
// Indexes[i] as the value of Columns[i]. Every line is a record, blank
// lines included. Lines shorter than the largest index are padded with
// empty fields.
type Fixed struct {
	Columns   []string
	Indexes   []int
	Delimiter rune
	Encoding  string
	Logger    *slog.Logger
}

func newFixed(opts core.Options, logger *slog.Logger) (Adapter, error) {
	f := &Fixed{
		Columns:   slices.Clone(opts.Columns),
		Indexes:   slices.Clone(opts.FixedIndexes),
		Delimiter: opts.Delimiter,
		Encoding:  opts.FixedEncoding,
		Logger:    logger,
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fixed) validate() error {
	if len(f.Indexes) != len(f.Columns) || len(f.Columns) == 0 {
		return &core.Error{
			Kind: core.KindInvalidConfiguration,
			Err:  fmt.Errorf("fixed_indexes has %d entries for %d columns", len(f.Indexes), len(f.Columns)),
		}
	}
	for _, i := range f.Indexes {
		if i < 0 {
			return &core.Error{
				Kind: core.KindInvalidConfiguration,
				Err:  fmt.Errorf("fixed index %d must be >= 0", i),
			}
		}
	}
	return nil
}

// Adapt implements Adapter.
func (f *Fixed) Adapt(ctx context.Context, path string) (core.Dataset, error) {
	if err := f.validate(); err != nil {
		return core.Dataset{}, err
	}

	src, err := openText(path, f.Encoding)
	if err != nil {
		return core.Dataset{}, err
	}
	defer src.Close()

	width := slices.Max(f.Indexes) + 1
	out := core.NewDataset(f.Columns)

	err = src.eachLine(ctx, func(_ int, line string) error {
		fields := core.Conform(width, splitFields(line, f.Delimiter))
		rec := make(core.Record, len(f.Indexes))
		for i, idx := range f.Indexes {
			rec[i] = fields[idx]
		}
		out.Records = append(out.Records, rec)
		return nil
	})
	if err != nil {
		return core.Dataset{}, err
	}

	f.logger().Debug("fixed source read",
		"path", path,
		"rows", out.Len(),
		"bytes", src.dec.BytesRead(),
	)
	return out, nil
}

func (f *Fixed) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
