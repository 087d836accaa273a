// Package service runs merges end to end: it loads the target, folds the
// sources into it, writes the result and records the run in history. Both
// the HTTP server and the CLI drive merges through a Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetmerge/internal/adapter"
	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/sink"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single merge run.
const DefaultTimeout = 10 * time.Minute

// Config configures a Service.
type Config struct {
	// Defaults are the options a request starts from.
	Defaults core.Options

	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
	PreviewRows   int
}

// Service coordinates merge runs.
type Service struct {
	defaults    core.Options
	timeout     time.Duration
	previewRows int

	limiter *Limiter
	store   history.Store
	logger  *slog.Logger
}

// New creates a Service. A nil store keeps history in memory; a nil logger
// uses slog.Default.
func New(cfg Config, store history.Store, logger *slog.Logger) *Service {
	if store == nil {
		store = history.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = core.DefaultPreviewRows
	}
	if cfg.Defaults.Columns == nil {
		cfg.Defaults = core.DefaultOptions()
	}
	return &Service{
		defaults:    cfg.Defaults,
		timeout:     cfg.Timeout,
		previewRows: cfg.PreviewRows,
		limiter:     NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		store:       store,
		logger:      logger,
	}
}

// Defaults returns a copy of the options requests start from.
func (s *Service) Defaults() core.Options {
	o := s.defaults
	o.Columns = append([]string(nil), o.Columns...)
	o.FixedIndexes = append([]int(nil), o.FixedIndexes...)
	o.SelectColumns = append([]string(nil), o.SelectColumns...)
	return o
}

// Request describes one merge run.
type Request struct {
	Sources []string     `json:"sources"`
	Target  string       `json:"target"`
	Options core.Options `json:"options"`
}

// Result reports a finished run.
type Result struct {
	RunID      uuid.UUID          `json:"run_id"`
	Target     string             `json:"target"`
	DryRun     bool               `json:"dry_run"`
	NextOffset int                `json:"next_offset"`
	Stats      Stats              `json:"stats"`
	Output     *sink.Confirmation `json:"output,omitempty"`
	Preview    core.Dataset       `json:"preview"`
	Duration   time.Duration      `json:"duration_ns"`
}

// Run merges req.Sources into req.Target and writes the spreadsheet and its
// delimited sibling. With Options.DryRun nothing is written; Target may then
// be empty to merge into a fresh dataset.
//
// Returns ErrTooManyMerges when no merge slot frees up in time. Every run
// that gets a slot is recorded in history.
func (s *Service) Run(ctx context.Context, req Request) (res Result, err error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	runID := uuid.New()
	started := time.Now()
	logger := s.logger.With("run_id", runID.String(), "target", req.Target)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in merge", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
		s.record(ctx, runID, started, req, res, err)
	}()

	opts := req.Options
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	var target core.Dataset
	switch {
	case req.Target == "" && !opts.DryRun:
		return Result{}, &core.Error{Kind: core.KindInvalidConfiguration, Err: errors.New("no target file given")}
	case req.Target != "":
		if err := sink.CheckTarget(req.Target); err != nil {
			return Result{}, err
		}
		target, err = sink.LoadTarget(req.Target, "")
		if err != nil {
			return Result{}, err
		}
	}

	out, err := Merge(ctx, req.Sources, target, opts, logger)
	if err != nil {
		logger.Warn("merge failed", "error", err, "sources", len(req.Sources))
		return Result{}, err
	}

	res = Result{
		RunID:      runID,
		Target:     req.Target,
		DryRun:     opts.DryRun,
		NextOffset: out.NextOffset,
		Stats:      out.Stats,
		Preview:    out.Dataset.Head(s.previewRows),
	}

	if !opts.DryRun {
		conf, err := sink.Write(out.Dataset, req.Target, sink.Options{
			Delimiter: opts.Delimiter,
			Encoding:  opts.OutputEncoding,
		})
		if err != nil {
			return Result{}, err
		}
		res.Output = &conf
		logger.Info("merge output saved",
			"spreadsheet", conf.Spreadsheet,
			"delimited", conf.Delimited,
			"rows", conf.Rows,
		)
	}

	res.Duration = time.Since(started)
	logger.Info("merge completed",
		"sources", len(out.Stats.Sources),
		"rows_read", out.Stats.RowsRead,
		"rows", out.Stats.Rows,
		"duplicates", out.Stats.Duplicates,
		"dry_run", opts.DryRun,
		"duration", res.Duration,
	)
	return res, nil
}

func (s *Service) record(ctx context.Context, id uuid.UUID, started time.Time, req Request, res Result, runErr error) {
	entry := history.Entry{
		ID:         id,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Target:     req.Target,
		Sources:    req.Sources,
		Mode:       string(req.Options.Mode),
		RowsRead:   res.Stats.RowsRead,
		RowsOut:    res.Stats.Rows,
		Duplicates: res.Stats.Duplicates,
		Status:     history.StatusSucceeded,
		IPAddress:  core.IPAddressFromContext(ctx),
		UserAgent:  core.UserAgentFromContext(ctx),
	}
	if req.Options.DryRun {
		entry.Status = history.StatusDryRun
	}
	if runErr != nil {
		entry.Status = history.StatusFailed
		entry.ErrorCode = core.MapError(runErr).Code
		entry.Error = runErr.Error()
	}

	// the run context may already be cancelled
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Record(recCtx, entry); err != nil {
		s.logger.Warn("failed to record merge run", "run_id", id.String(), "error", err)
	}
}

// Preview reads one source with opts and returns its first n records.
// Non-positive n uses the configured preview size.
func (s *Service) Preview(ctx context.Context, path string, opts core.Options, n int) (core.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return core.Dataset{}, err
	}
	if n <= 0 {
		n = s.previewRows
	}
	ds, err := adapter.Read(ctx, adapter.Describe(path), opts, s.logger)
	if err != nil {
		return core.Dataset{}, err
	}
	return ds.Head(n), nil
}

// SheetColumns lists the header cells of a spreadsheet sheet so a caller can
// choose SelectColumns. An empty sheet name means the first sheet.
func (s *Service) SheetColumns(path, sheet string) ([]string, error) {
	return adapter.SheetColumns(path, sheet)
}

// History returns the most recent runs.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.store.List(ctx, limit)
}

// LimiterStatus reports merge slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForMerges blocks until running merges finish or ctx is done.
func (s *Service) WaitForMerges(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Close releases the history store.
func (s *Service) Close() error {
	return s.store.Close()
}
