package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetmerge/internal/adapter"
	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/service"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		flags  optionFlags
		target string
	)

	cmd := &cobra.Command{
		Use:   "merge SOURCE...",
		Short: "Merge source files into a target spreadsheet",
		Long: "Merge reads every SOURCE in order and merges it into the target workbook.\n" +
			"The format of a source follows its extension: .csv is header-mapped,\n" +
			".xlsx and .xlsm use --select, anything else is fixed-layout.\n" +
			"The target is rewritten together with a .csv copy next to it.",
		Example: "  sheetmerge merge -t cennik.xlsx dostawca1.csv dostawca2.txt\n" +
			"  sheetmerge merge -t cennik.xlsx -m insert --offset 10 --select Nazwa,Cena katalog.xlsx",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.resolve(cmd, a.defaults)
			if err != nil {
				return err
			}

			res, err := a.svc.Run(a.context(cmd), service.Request{
				Sources: args,
				Target:  target,
				Options: opts,
			})
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(a.stdout, res)
			}
			return printResult(a, res)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Target spreadsheet (.xlsx or .xlsm)")
	flags.register(cmd, true)
	return cmd
}

func printResult(a *app, res service.Result) error {
	verb := "Merged"
	if res.DryRun {
		verb = "Dry run: would merge"
	}
	fmt.Fprintf(a.stdout, "%s %d source(s) into %s\n", verb, len(res.Stats.Sources), orNone(res.Target))

	pairs := []any{
		"rows read", res.Stats.RowsRead,
		"duplicates", res.Stats.Duplicates,
		"rows", res.Stats.Rows,
		"next offset", res.NextOffset,
	}
	if res.Output != nil {
		pairs = append(pairs, "spreadsheet", res.Output.Spreadsheet, "delimited", res.Output.Delimited)
	}
	if err := printFields(a.stdout, pairs...); err != nil {
		return err
	}
	if res.DryRun {
		fmt.Fprintln(a.stdout)
		return printDataset(a.stdout, res.Preview)
	}
	return nil
}

func newPreviewCmd(a *app) *cobra.Command {
	var (
		flags optionFlags
		rows  int
	)

	cmd := &cobra.Command{
		Use:   "preview SOURCE",
		Short: "Show the first records of a source after normalization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.resolve(cmd, a.defaults)
			if err != nil {
				return err
			}
			ds, err := a.svc.Preview(a.context(cmd), args[0], opts, rows)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.stdout, ds)
			}
			return printDataset(a.stdout, ds)
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Number of records to show (default: MERGE_PREVIEW_ROWS)")
	flags.register(cmd, false)
	return cmd
}

func newColumnsCmd(a *app) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "columns SPREADSHEET",
		Short: "List the header cells of a spreadsheet sheet",
		Long:  "Columns prints the names that can be passed to merge --select.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := a.svc.SheetColumns(args[0], sheet)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.stdout, map[string][]string{"columns": cols})
			}
			for _, c := range cols {
				fmt.Fprintln(a.stdout, c)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: first sheet)")
	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the canonical columns and default merge options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			formats := adapter.Formats()
			if a.output == "json" {
				return printJSON(a.stdout, map[string]any{
					"columns":  a.defaults.Columns,
					"defaults": core.PatchOf(a.defaults),
					"formats":  formats,
				})
			}

			o := a.defaults
			return printFields(a.stdout,
				"columns", strings.Join(o.Columns, ", "),
				"delimiter", fmt.Sprintf("%q", o.Delimiter),
				"encoding", o.Encoding,
				"fixed encoding", o.FixedEncoding,
				"output encoding", o.OutputEncoding,
				"mode", o.Mode,
				"dedup key", orNone(o.DedupKey),
				"match", o.Match,
				"strict", o.StrictColumns,
				"fixed indexes", fmt.Sprint(o.FixedIndexes),
				"header formats", strings.Join(formats[adapter.FormatHeader], " "),
				"fixed formats", strings.Join(formats[adapter.FormatFixed], " ")+" (and any other extension)",
				"spreadsheet formats", strings.Join(formats[adapter.FormatSpreadsheet], " "),
			)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent merge runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.svc.History(a.context(cmd), limit)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []history.Entry{}
			}
			if a.output == "json" {
				return printJSON(a.stdout, runs)
			}

			ds := core.NewDataset([]string{"STARTED", "STATUS", "TARGET", "SOURCES", "ROWS", "DUPLICATES", "CODE"})
			for _, r := range runs {
				ds.Records = append(ds.Records, core.Record{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					string(r.Status),
					orNone(r.Target),
					fmt.Sprint(len(r.Sources)),
					fmt.Sprint(r.RowsOut),
					fmt.Sprint(r.Duplicates),
					r.ErrorCode,
				})
			}
			return printDataset(a.stdout, ds)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "Maximum number of runs to list")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOutputFormat(a.output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.output == "json" {
				return printJSON(a.stdout, map[string]string{"version": version, "commit": commit})
			}
			_, err := fmt.Fprintf(a.stdout, "sheetmerge version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
