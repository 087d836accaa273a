package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/sink"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := New(Config{MaxConcurrent: 2, MaxWait: 100 * time.Millisecond}, history.NewMemoryStore(), nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestService_RunWritesBothArtifacts(t *testing.T) {
	s := newTestService(t)
	dir := t.TempDir()
	csv := writeFile(t, dir, "products.csv", productsCSV)
	target := filepath.Join(dir, "out.xlsx")

	ctx := core.ContextWithIPAddress(context.Background(), "10.1.2.3")
	res, err := s.Run(ctx, Request{Sources: []string{csv}, Target: target, Options: s.Defaults()})
	require.NoError(t, err)

	require.NotNil(t, res.Output)
	assert.Equal(t, target, res.Output.Spreadsheet)
	assert.Equal(t, filepath.Join(dir, "out.csv"), res.Output.Delimited)
	assert.Equal(t, 2, res.Stats.Rows)
	assert.Equal(t, 2, res.Preview.Len())

	data, err := os.ReadFile(res.Output.Delimited)
	require.NoError(t, err)
	assert.Equal(t, "Kod;ProduktNazwa;Cena;VAT\nA2;Gadget;5;8\nA1;Widget;10;23\n", string(data))

	runs, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, history.StatusSucceeded, runs[0].Status)
	assert.Equal(t, "10.1.2.3", runs[0].IPAddress)
	assert.Equal(t, 2, runs[0].RowsOut)
}

func TestService_LogsOutputWithRunLogger(t *testing.T) {
	var runLog, globalLog bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&globalLog, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := New(Config{}, nil, slog.New(slog.NewJSONHandler(&runLog, nil)))
	t.Cleanup(func() { _ = s.Close() })
	dir := t.TempDir()
	csv := writeFile(t, dir, "products.csv", productsCSV)

	res, err := s.Run(context.Background(), Request{
		Sources: []string{csv},
		Target:  filepath.Join(dir, "out.xlsx"),
		Options: s.Defaults(),
	})
	require.NoError(t, err)

	var saved map[string]any
	for _, line := range strings.Split(strings.TrimSpace(runLog.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "merge output saved" {
			saved = entry
		}
	}
	require.NotNil(t, saved, "run log: %s", runLog.String())
	assert.Equal(t, res.RunID.String(), saved["run_id"])
	assert.Equal(t, filepath.Join(dir, "out.csv"), saved["delimited"])
	assert.Empty(t, globalLog.String())
}

func TestService_RunMergesIntoExistingTarget(t *testing.T) {
	s := newTestService(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "out.xlsx")

	first := writeFile(t, dir, "first.csv", productsCSV)
	_, err := s.Run(context.Background(), Request{Sources: []string{first}, Target: target, Options: s.Defaults()})
	require.NoError(t, err)

	update := writeFile(t, dir, "update.txt", "A1;;12;Widget v2;23\nA3;;7;Thing;8\n")
	res, err := s.Run(context.Background(), Request{Sources: []string{update}, Target: target, Options: s.Defaults()})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Rows)
	assert.Equal(t, 1, res.Stats.Duplicates)

	loaded, err := sink.LoadTarget(target, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2", "A3"}, codes(loaded))
	for i := range loaded.Records {
		if loaded.Value(i, "Kod") == "A1" {
			assert.Equal(t, "Widget v2", loaded.Value(i, "ProduktNazwa"))
		}
	}
}

func TestService_DryRunWritesNothing(t *testing.T) {
	s := newTestService(t)
	dir := t.TempDir()
	csv := writeFile(t, dir, "products.csv", productsCSV)
	target := filepath.Join(dir, "out.xlsx")

	opts := s.Defaults()
	opts.DryRun = true
	res, err := s.Run(context.Background(), Request{Sources: []string{csv}, Target: target, Options: opts})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Nil(t, res.Output)
	assert.NoFileExists(t, target)

	opts.DryRun = true
	_, err = s.Run(context.Background(), Request{Sources: []string{csv}, Options: opts})
	require.NoError(t, err, "dry run needs no target")

	runs, err := s.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, history.StatusDryRun, runs[0].Status)
}

func TestService_FailedRunIsRecorded(t *testing.T) {
	s := newTestService(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "out.xlsx")

	_, err := s.Run(context.Background(), Request{
		Sources: []string{filepath.Join(dir, "missing.csv")},
		Target:  target,
		Options: s.Defaults(),
	})
	require.ErrorIs(t, err, core.ErrUnreadableSource)
	assert.NoFileExists(t, target)

	runs, err := s.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.Equal(t, "SRC001", runs[0].ErrorCode)
	assert.NotEmpty(t, runs[0].Error)
}

func TestService_RejectsBadTarget(t *testing.T) {
	s := newTestService(t)
	csv := writeFile(t, t.TempDir(), "products.csv", productsCSV)

	for _, target := range []string{"", "out.csv"} {
		_, err := s.Run(context.Background(), Request{Sources: []string{csv}, Target: target, Options: s.Defaults()})
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration, "target %q", target)
	}
}

func TestService_RunBusy(t *testing.T) {
	s := New(Config{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond}, nil, nil)
	require.True(t, s.limiter.TryAcquire())
	defer s.limiter.Release()

	_, err := s.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrTooManyMerges)
	assert.Equal(t, 1, s.LimiterStatus().Active)
}

func TestService_Preview(t *testing.T) {
	s := New(Config{PreviewRows: 1}, nil, nil)
	csv := writeFile(t, t.TempDir(), "products.csv", productsCSV)

	got, err := s.Preview(context.Background(), csv, s.Defaults(), 0)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{"A1", "Widget", "10", "23"}}, got.Records)

	got, err = s.Preview(context.Background(), csv, s.Defaults(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestService_DefaultsAreCopies(t *testing.T) {
	s := newTestService(t)
	d := s.Defaults()
	d.Columns[0] = "changed"
	assert.Equal(t, "Kod", s.Defaults().Columns[0])
}
