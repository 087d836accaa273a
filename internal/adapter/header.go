package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

func init() {
	Register(FormatHeader, newHeader, ".csv")
}

// Header reads delimited text whose first non-blank line names the
// columns. Headers are bound to Columns with MatchColumns.
//
// In lenient mode a column without a matching header is filled with empty
// values. In strict mode it fails the read with a schema mismatch naming
// every such column. Ambiguous matches are logged, or rejected when
// RejectAmbiguous is set.
type Header struct {
	Columns         []string
	Delimiter       rune
	Encoding        string
	Strict          bool
	Match           core.MatchMode
	RejectAmbiguous bool
	Logger          *slog.Logger
}

func newHeader(opts core.Options, logger *slog.Logger) (Adapter, error) {
	if len(opts.Columns) == 0 {
		return nil, &core.Error{Kind: core.KindInvalidConfiguration, Err: errors.New("no columns configured")}
	}
	return &Header{
		Columns:         slices.Clone(opts.Columns),
		Delimiter:       opts.Delimiter,
		Encoding:        opts.Encoding,
		Strict:          opts.StrictColumns,
		Match:           opts.Match,
		RejectAmbiguous: opts.RejectAmbiguous,
		Logger:          logger,
	}, nil
}

// Adapt implements Adapter.
func (h *Header) Adapt(ctx context.Context, path string) (core.Dataset, error) {
	src, err := openText(path, h.Encoding)
	if err != nil {
		return core.Dataset{}, err
	}
	defer src.Close()

	logger := h.logger().With("path", path)
	out := core.NewDataset(h.Columns)

	var (
		headers []string
		mapping Mapping
		pos     map[string]int
	)

	err = src.eachLine(ctx, func(n int, line string) error {
		if strings.TrimSpace(line) == "" {
			return nil
		}

		fields := splitFields(line, h.Delimiter)

		if headers == nil {
			headers = make([]string, len(fields))
			for i, f := range fields {
				headers[i] = strings.TrimSpace(f)
			}
			var berr error
			mapping, berr = h.bind(path, headers, logger)
			pos = mapping.Positions()
			return berr
		}

		if len(fields) > len(headers) {
			return &core.Error{
				Kind: core.KindUnreadableSource,
				Path: path,
				Line: n,
				Err:  fmt.Errorf("%w (%d > %d)", core.ErrRowTooWide, len(fields), len(headers)),
			}
		}

		fields = core.Conform(len(headers), fields)
		out.Records = append(out.Records, core.Project(h.Columns, func(c string) (string, bool) {
			i, ok := pos[c]
			if !ok {
				return "", false
			}
			return fields[i], true
		}))
		return nil
	})
	if err != nil {
		return core.Dataset{}, err
	}

	if headers == nil {
		return core.Dataset{}, core.Errorf(core.KindUnreadableSource, path, "empty file: no header line")
	}

	logger.Debug("header source read",
		"rows", out.Len(),
		"bytes", src.dec.BytesRead(),
		"synthesized", mapping.Missing(),
	)
	return out, nil
}

// bind matches headers to the canonical columns and applies the strict and
// ambiguity policies.
func (h *Header) bind(path string, headers []string, logger *slog.Logger) (Mapping, error) {
	mode := h.Match
	if mode == "" {
		mode = core.MatchSubstring
	}
	m := MatchColumns(h.Columns, headers, mode)

	for _, a := range m.Ambiguous {
		logger.Warn("ambiguous header match",
			"column", a.Column,
			"candidates", a.Candidates,
			"chosen", a.Chosen,
		)
	}
	if h.RejectAmbiguous && len(m.Ambiguous) > 0 {
		return Mapping{}, &core.Error{
			Kind:    core.KindSchemaMismatch,
			Path:    path,
			Columns: m.AmbiguousColumns(),
			Err:     core.ErrAmbiguousHeader,
		}
	}

	if missing := m.Missing(); len(missing) > 0 {
		if h.Strict {
			return Mapping{}, &core.Error{
				Kind:    core.KindSchemaMismatch,
				Path:    path,
				Columns: missing,
				Err:     errors.New("columns not found in header"),
			}
		}
		logger.Info("synthesizing empty columns", "columns", missing)
	}

	return m, nil
}

func (h *Header) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
