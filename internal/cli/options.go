package cli

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// optionFlags are the merge option flags shared by merge and preview.
// Only flags the user actually set override the resolved defaults.
type optionFlags struct {
	columns        []string
	delimiter      string
	encoding       string
	fixedEncoding  string
	outputEncoding string

	mode       string
	offset     int
	autoOffset bool

	dedupKey string
	noDedup  bool

	strict          bool
	match           string
	rejectAmbiguous bool

	fixedIndexes  []int
	selectColumns []string
	sheet         string

	dryRun bool
}

func (f *optionFlags) register(cmd *cobra.Command, merge bool) {
	fl := cmd.Flags()
	fl.StringSliceVar(&f.columns, "columns", nil, "Canonical column order (comma-separated)")
	fl.StringVarP(&f.delimiter, "delimiter", "d", "", `Field delimiter of delimited sources, one character or \t`)
	fl.StringVar(&f.encoding, "encoding", "", "Encoding of header-mapped sources")
	fl.StringVar(&f.fixedEncoding, "fixed-encoding", "", "Encoding of fixed-layout sources")
	fl.StringVar(&f.match, "match", "", "Header matching: substring or exact")
	fl.BoolVar(&f.strict, "strict", false, "Fail when a header-mapped source lacks a column")
	fl.BoolVar(&f.rejectAmbiguous, "reject-ambiguous", false, "Fail when a column matches several headers")
	fl.IntSliceVar(&f.fixedIndexes, "fixed-indexes", nil, "Field index of each column in fixed-layout sources")
	fl.StringSliceVar(&f.selectColumns, "select", nil, "Spreadsheet columns to take, in order")
	fl.StringVar(&f.sheet, "sheet", "", "Spreadsheet sheet to read (default: first sheet)")

	if !merge {
		return
	}
	fl.StringVar(&f.outputEncoding, "output-encoding", "", "Encoding of the written .csv")
	fl.StringVarP(&f.mode, "mode", "m", "", "Merge mode: append or insert")
	fl.IntVar(&f.offset, "offset", 0, "Insert position in the target (insert mode)")
	fl.BoolVar(&f.autoOffset, "auto-offset", false, "Insert after the target's last record (insert mode)")
	fl.StringVar(&f.dedupKey, "dedup-key", "", "Key column for keeping the latest record (append mode)")
	fl.BoolVar(&f.noDedup, "no-dedup", false, "Keep every record in append mode")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Merge without writing the target")
	cmd.MarkFlagsMutuallyExclusive("dedup-key", "no-dedup")
}

// patch collects the flags that were set on cmd.
func (f *optionFlags) patch(cmd *cobra.Command) core.OptionsPatch {
	changed := cmd.Flags().Changed
	var p core.OptionsPatch

	if changed("columns") {
		p.Columns = f.columns
	}
	if changed("delimiter") {
		p.Delimiter = &f.delimiter
	}
	if changed("encoding") {
		p.Encoding = &f.encoding
	}
	if changed("fixed-encoding") {
		p.FixedEncoding = &f.fixedEncoding
	}
	if changed("output-encoding") {
		p.OutputEncoding = &f.outputEncoding
	}
	if changed("mode") {
		mode := core.Mode(f.mode)
		p.Mode = &mode
	}
	if changed("offset") {
		p.Offset = &f.offset
	}
	if changed("auto-offset") {
		p.AutoOffset = &f.autoOffset
	}
	if changed("dedup-key") {
		p.DedupKey = &f.dedupKey
	}
	if changed("no-dedup") && f.noDedup {
		none := ""
		p.DedupKey = &none
	}
	if changed("strict") {
		p.StrictColumns = &f.strict
	}
	if changed("match") {
		match := core.MatchMode(f.match)
		p.Match = &match
	}
	if changed("reject-ambiguous") {
		p.RejectAmbiguous = &f.rejectAmbiguous
	}
	if changed("fixed-indexes") {
		p.FixedIndexes = f.fixedIndexes
	}
	if changed("select") {
		p.SelectColumns = f.selectColumns
	}
	if changed("sheet") {
		p.Sheet = &f.sheet
	}
	if changed("dry-run") {
		p.DryRun = &f.dryRun
	}
	return p
}

// resolve applies the set flags over the app defaults.
func (f *optionFlags) resolve(cmd *cobra.Command, base core.Options) (core.Options, error) {
	return f.patch(cmd).Apply(base)
}
