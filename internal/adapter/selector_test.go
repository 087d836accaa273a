package adapter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

func selectorOpts(cols ...string) core.Options {
	opts := core.DefaultOptions()
	opts.SelectColumns = cols
	opts.DedupKey = ""
	return opts
}

func TestSelector_PicksColumnsInCallerOrder(t *testing.T) {
	path := writeWorkbook(t, "book.xlsx", [][]any{
		{"Nazwa", "Ilosc", "Cena"},
		{"Widget", "3", "10"},
		{"Gadget"},
	})

	got, err := Read(context.Background(), Describe(path), selectorOpts("Cena", "Nazwa"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cena", "Nazwa"}, got.Columns)
	assert.Equal(t, []core.Record{
		{"10", "Widget"},
		{"", "Gadget"},
	}, got.Records)
}

func TestSelector_MissingColumns(t *testing.T) {
	path := writeWorkbook(t, "book.xlsm", [][]any{{"Nazwa", "Cena"}, {"a", "1"}})

	_, err := Read(context.Background(), Describe(path), selectorOpts("Nazwa", "Ilosc", "EAN"), nil)
	require.ErrorIs(t, err, core.ErrMissingColumns)

	var cerr *core.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"Ilosc", "EAN"}, cerr.Columns)
}

func TestSelector_RequiresSelection(t *testing.T) {
	_, err := New(FormatSpreadsheet, selectorOpts(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestSelector_UnknownSheet(t *testing.T) {
	path := writeWorkbook(t, "book.xlsx", [][]any{{"Nazwa"}})
	opts := selectorOpts("Nazwa")
	opts.Sheet = "Arkusz9"

	_, err := Read(context.Background(), Describe(path), opts, nil)
	assert.ErrorIs(t, err, core.ErrUnreadableSource)
}

func TestSelector_NotAWorkbook(t *testing.T) {
	path := writeFile(t, "fake.xlsx", []byte("Kod;VAT\n"))

	_, err := Read(context.Background(), Describe(path), selectorOpts("Kod"), nil)
	assert.ErrorIs(t, err, core.ErrUnreadableSource)
}

func TestSheetColumns(t *testing.T) {
	path := writeWorkbook(t, "book.xlsx", [][]any{{"Nazwa", " Cena ", "VAT"}, {"a", "1", "23"}})

	cols, err := SheetColumns(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nazwa", "Cena", "VAT"}, cols)

	sheets, err := Sheets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1"}, sheets)
}

func TestSheetColumns_MissingFile(t *testing.T) {
	_, err := SheetColumns(filepath.Join(t.TempDir(), "none.xlsx"), "")
	assert.ErrorIs(t, err, core.ErrUnreadableSource)
}
