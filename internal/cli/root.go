// Package cli implements the sheetmerge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetmerge/internal/config"
	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/logging"
	"github.com/JonMunkholm/sheetmerge/internal/service"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		return 1
	}

	rootCmd, a := newRootCmd(os.Stdout, os.Stderr)
	err := rootCmd.Execute()
	a.close()
	if err != nil {
		a.printError(err)
		return 1
	}
	return 0
}

// app holds what the commands share once flags are resolved.
type app struct {
	stdout io.Writer
	stderr io.Writer

	output     string
	profile    string
	historyDSN string
	logLevel   string

	defaults core.Options
	logger   *slog.Logger
	svc      *service.Service
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "sheetmerge",
		Short: "Merge product price lists into one spreadsheet",
		Long: "sheetmerge reads delimited exports and spreadsheets, normalizes them to one\n" +
			"column layout, merges them into a target workbook and writes a .csv copy\n" +
			"next to it.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVarP(&a.profile, "profile", "p", "", "YAML profile overlaid on the default merge options (env: MERGE_PROFILE)")
	pf.StringVar(&a.historyDSN, "history", "", "History store: postgres:// URL, sqlite path, or empty for memory (env: HISTORY_DSN)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")

	rootCmd.AddCommand(
		newMergeCmd(a),
		newPreviewCmd(a),
		newColumnsCmd(a),
		newSchemaCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return rootCmd, a
}

// setup resolves configuration with flag > env > default precedence and
// opens the service.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := validateOutputFormat(a.output); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = logging.New(a.stderr, level, cfg.Logging.Format)

	if a.profile != "" {
		cfg.Merge.Profile = a.profile
	}
	a.defaults, err = cfg.MergeOptions()
	if err != nil {
		return err
	}

	dsn := cfg.History.DSN
	if cmd.Flags().Changed("history") {
		dsn = a.historyDSN
	}
	store, err := history.Open(a.context(cmd), dsn)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}

	a.svc = service.New(service.Config{
		Defaults:      a.defaults,
		MaxConcurrent: cfg.Limits.MaxConcurrent,
		MaxWait:       cfg.Limits.MaxWait,
		Timeout:       cfg.Limits.Timeout,
		PreviewRows:   cfg.Merge.PreviewRows,
	}, store, a.logger)
	return nil
}

func (a *app) close() {
	if a.svc == nil {
		return
	}
	if err := a.svc.Close(); err != nil && a.logger != nil {
		a.logger.Warn("close history", "error", err)
	}
	a.svc = nil
}

// printError reports err on stderr, or as a JSON object on stdout when
// JSON output was requested.
func (a *app) printError(err error) {
	if a.output != "json" {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		if msg := core.MapError(err); core.IsUserFacing(err) {
			fmt.Fprintf(a.stderr, "%s (%s)\n", msg.Action, msg.Code)
		}
		return
	}

	obj := map[string]any{"error": err.Error(), "code": core.MapError(err).Code}
	var cerr *core.Error
	if errors.As(err, &cerr) {
		obj["kind"] = cerr.Kind.String()
		if cerr.Path != "" {
			obj["path"] = cerr.Path
		}
		if len(cerr.Columns) > 0 {
			obj["columns"] = cerr.Columns
		}
		if cerr.Line > 0 {
			obj["line"] = cerr.Line
		}
	}
	_ = printJSON(a.stdout, obj)
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
