package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/sheetmerge/internal/adapter"
	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// SourceStats describes what one source contributed.
type SourceStats struct {
	Path   string         `json:"path"`
	Format adapter.Format `json:"format"`
	Rows   int            `json:"rows"`
}

// Stats summarizes a merge.
type Stats struct {
	Sources    []SourceStats `json:"sources"`
	RowsRead   int           `json:"rows_read"`
	Duplicates int           `json:"duplicates"`
	Rows       int           `json:"rows"`
}

// Outcome is the result of folding sources into a target.
type Outcome struct {
	Dataset core.Dataset `json:"dataset"`
	// NextOffset is where a following insert-mode run would continue.
	NextOffset int   `json:"next_offset"`
	Stats      Stats `json:"stats"`
}

// Merge reads each source in order and folds it into target according to
// opts. The first failing source aborts the merge and target is left as it
// was. A path listed more than once is read once.
//
// In append mode the records are added at the end and, when a dedup key is
// set, reduced to the latest record per key. In insert mode they are
// spliced in at the offset, each source following the previous one, and no
// dedup takes place.
func Merge(ctx context.Context, sources []string, target core.Dataset, opts core.Options, logger *slog.Logger) (Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.Validate(); err != nil {
		return Outcome{}, err
	}
	if len(sources) == 0 {
		return Outcome{}, &core.Error{Kind: core.KindInvalidConfiguration, Err: errors.New("no source files given")}
	}

	acc := target.Clone()
	if len(acc.Columns) == 0 && len(acc.Records) == 0 && len(opts.SelectColumns) == 0 {
		acc = core.NewDataset(opts.Columns)
	}

	offset := opts.Offset
	if opts.AutoOffset {
		offset = acc.Len()
	}

	var stats Stats
	for _, path := range uniquePaths(sources) {
		if err := ctx.Err(); err != nil {
			return Outcome{}, fmt.Errorf("merge cancelled before %s: %w", path, err)
		}

		desc := adapter.Describe(path)
		ds, err := adapter.Read(ctx, desc, opts, logger)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return Outcome{}, fmt.Errorf("merge cancelled while reading %s: %w", path, err)
			}
			return Outcome{}, err
		}

		switch opts.Mode {
		case core.ModeInsert:
			acc, offset, err = core.InsertAt(acc, offset, ds)
		default:
			acc, err = core.Append(acc, ds)
		}
		if err != nil {
			return Outcome{}, withPath(err, path)
		}

		stats.Sources = append(stats.Sources, SourceStats{Path: path, Format: desc.Format, Rows: ds.Len()})
		stats.RowsRead += ds.Len()
		logger.Debug("source merged", "path", path, "format", desc.Format, "rows", ds.Len())
	}

	if opts.Mode != core.ModeInsert {
		if opts.DedupKey != "" {
			var err error
			acc, stats.Duplicates, err = core.DedupLatest(acc, opts.DedupKey)
			if err != nil {
				return Outcome{}, err
			}
		}
		offset = acc.Len()
	}

	stats.Rows = acc.Len()
	return Outcome{Dataset: acc, NextOffset: offset, Stats: stats}, nil
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// withPath fills in the source path of a core error that lacks one.
func withPath(err error, path string) error {
	var e *core.Error
	if errors.As(err, &e) && e.Path == "" {
		cp := *e
		cp.Path = path
		return &cp
	}
	return err
}
