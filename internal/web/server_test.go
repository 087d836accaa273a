package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetmerge/internal/adapter"
	"github.com/JonMunkholm/sheetmerge/internal/config"
	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/service"
)

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			DataDir:         dataDir,
			Port:            8080,
			ShutdownTimeout: time.Second,
			RequestTimeout:  time.Minute,
			MaxBodyBytes:    1 << 16,
		},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *service.Service) {
	t.Helper()
	svc := service.New(service.Config{MaxConcurrent: 2, MaxWait: 50 * time.Millisecond}, history.NewMemoryStore(), nil)
	srv := NewServer(cfg, svc)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = svc.Close()
	})
	return srv, svc
}

func do(t *testing.T, srv *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

const productsCSV = "Kod;ProduktNazwa;Cena;VAT\nA1;Widget;10;23\n"

func ptr[T any](v T) *T { return &v }

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHealthAndHeaders(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t.TempDir()))

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSchema(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t.TempDir()))

	rec := do(t, srv, http.MethodGet, "/api/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SchemaResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"Kod", "ProduktNazwa", "Cena", "VAT"}, resp.Columns)
	require.NotNil(t, resp.Defaults.Delimiter)
	assert.Equal(t, ";", *resp.Defaults.Delimiter)
	assert.Contains(t, resp.Formats, adapter.FormatHeader)
}

func TestMerge_Success(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newTestServer(t, testConfig(dir))
	src := writeCSV(t, dir, "in.csv", "Kod;ProduktNazwa;Cena;VAT\nA1;Widget;10;23\n")
	target := filepath.Join(dir, "out.xlsx")

	rec := do(t, srv, http.MethodPost, "/api/merge", MergeRequest{Sources: []string{src}, Target: target})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res service.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 1, res.Stats.Rows)
	require.NotNil(t, res.Output)
	assert.FileExists(t, target)
	assert.FileExists(t, filepath.Join(dir, "out.csv"))

	rec = do(t, srv, http.MethodGet, "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	require.Len(t, hist.Runs, 1)
	assert.Equal(t, res.RunID, hist.Runs[0].ID)
	assert.Equal(t, "192.0.2.1", hist.Runs[0].IPAddress)
}

func TestMerge_StrictMissingColumn(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newTestServer(t, testConfig(dir))
	src := writeCSV(t, dir, "in.csv", "Kod;ProduktNazwa;Cena\nA1;Widget;10\n")
	strict := true

	rec := do(t, srv, http.MethodPost, "/api/merge", MergeRequest{
		Sources: []string{src},
		Target:  filepath.Join(dir, "out.xlsx"),
		Options: core.OptionsPatch{StrictColumns: &strict},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "SCH002", resp.Code)
	assert.Equal(t, "schema mismatch", resp.Kind)
	assert.Equal(t, []string{"VAT"}, resp.Columns)
	assert.Equal(t, src, resp.Path)
	assert.NoFileExists(t, filepath.Join(dir, "out.xlsx"))
}

func TestMerge_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t.TempDir()))

	tests := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"unknown field", `{"sources":[],"colour":"red"}`},
		{"not json", `{sources`},
		{"bad delimiter", `{"sources":["a.csv"],"target":"o.xlsx","options":{"delimiter":";;"}}`},
		{"bad target", `{"sources":["a.csv"],"target":"o.txt"}`},
		{"no sources", `{"target":"o.xlsx"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/merge", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "CFG002", decodeError(t, rec).Code)
		})
	}
}

func TestPreviewAndColumns(t *testing.T) {
	dir := t.TempDir()
	srv, _ := newTestServer(t, testConfig(dir))
	src := writeCSV(t, dir, "in.csv", "Kod;ProduktNazwa;Cena;VAT\nA1;Widget;10;23\nA2;Gadget;5;8\n")

	rec := do(t, srv, http.MethodPost, "/api/preview", PreviewRequest{Path: src, Rows: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ds core.Dataset
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ds))
	assert.Equal(t, []core.Record{{"A1", "Widget", "10", "23"}}, ds.Records)

	book := filepath.Join(dir, "book.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Nazwa", "Cena"}))
	require.NoError(t, f.SaveAs(book))
	require.NoError(t, f.Close())

	rec = do(t, srv, http.MethodPost, "/api/columns", ColumnsRequest{Path: book})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"columns":["Nazwa","Cena"]}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/preview", PreviewRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestPathsConfinedToDataDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "data")
	require.NoError(t, os.Mkdir(dir, 0o755))
	srv, _ := newTestServer(t, testConfig(dir))

	writeCSV(t, dir, "in.csv", productsCSV)
	outside := writeCSV(t, root, "secret.csv", productsCSV)
	require.NoError(t, os.Symlink(root, filepath.Join(dir, "escape")))

	tests := []struct {
		name string
		path string
		body any
	}{
		{"merge parent source", "../secret.csv",
			MergeRequest{Sources: []string{"../secret.csv"}, Target: "out.xlsx"}},
		{"merge absolute source", outside,
			MergeRequest{Sources: []string{"in.csv", outside}, Target: "out.xlsx"}},
		{"merge symlinked source", "escape/secret.csv",
			MergeRequest{Sources: []string{"escape/secret.csv"}, Target: "out.xlsx"}},
		{"merge parent target", "../out.xlsx",
			MergeRequest{Sources: []string{"in.csv"}, Target: "../out.xlsx"}},
		{"merge absolute target", filepath.Join(root, "out.xlsx"),
			MergeRequest{Sources: []string{"in.csv"}, Target: filepath.Join(root, "out.xlsx")}},
		{"merge symlinked target", "escape/out.xlsx",
			MergeRequest{Sources: []string{"in.csv"}, Target: "escape/out.xlsx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/merge", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, "CFG002", resp.Code)
			assert.Equal(t, tt.path, resp.Path)
		})
	}
	assert.NoFileExists(t, filepath.Join(root, "out.xlsx"))
	assert.NoFileExists(t, filepath.Join(root, "out.csv"))

	for _, p := range []string{"../secret.csv", outside, "escape/secret.csv"} {
		rec := do(t, srv, http.MethodPost, "/api/preview", PreviewRequest{Path: p})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "preview %s", p)
		rec = do(t, srv, http.MethodPost, "/api/columns", ColumnsRequest{Path: p})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "columns %s", p)
	}

	rec := do(t, srv, http.MethodPost, "/api/merge", MergeRequest{Sources: []string{"in.csv"}, Target: "out.xlsx"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.FileExists(t, filepath.Join(dir, "out.xlsx"))
	assert.FileExists(t, filepath.Join(dir, "out.csv"))
}

func TestRequestPathsWithoutDataDir(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(""))
	src := writeCSV(t, t.TempDir(), "in.csv", productsCSV)

	rec := do(t, srv, http.MethodPost, "/api/preview", PreviewRequest{Path: src})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CFG002", decodeError(t, rec).Code)

	rec = do(t, srv, http.MethodPost, "/api/merge", MergeRequest{Sources: []string{src}, Options: core.OptionsPatch{DryRun: ptr(true)}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t.TempDir()))
	rec := do(t, srv, http.MethodGet, "/api/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	srv, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/status", nil, "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", nil).Code, "health stays open")
}

func TestMergeRateLimit(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, MergeLimit: 1}
	srv, _ := newTestServer(t, cfg)

	first := do(t, srv, http.MethodPost, "/api/merge", `{}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := do(t, srv, http.MethodPost, "/api/merge", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/status", nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrTooManyMerges, http.StatusServiceUnavailable},
		{&core.Error{Kind: core.KindInvalidConfiguration}, http.StatusBadRequest},
		{&core.Error{Kind: core.KindSchemaMismatch}, http.StatusUnprocessableEntity},
		{&core.Error{Kind: core.KindMissingColumns}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", &core.Error{Kind: core.KindUnreadableSource}), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "budgets are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"), "budget resets after the window")
}
