package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printDataset writes ds as an aligned table with a dashed separator under
// the header.
func printDataset(w io.Writer, ds core.Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(ds.Columns, "\t"))

	dashes := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		dashes[i] = strings.Repeat("-", max(3, len([]rune(c))))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, r := range ds.Records {
		fmt.Fprintln(tw, strings.Join(core.Conform(ds.Width(), r), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", ds.Len())
	return err
}

// printFields writes label/value pairs as two aligned columns.
func printFields(w io.Writer, pairs ...any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(tw, "%v\t%v\n", pairs[i], pairs[i+1])
	}
	return tw.Flush()
}
