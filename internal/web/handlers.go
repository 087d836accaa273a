package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/sheetmerge/internal/adapter"
	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/logging"
	"github.com/JonMunkholm/sheetmerge/internal/service"
)

// MergeRequest is the body of POST /api/merge.
type MergeRequest struct {
	Sources []string          `json:"sources"`
	Target  string            `json:"target"`
	Options core.OptionsPatch `json:"options"`
}

// PreviewRequest is the body of POST /api/preview.
type PreviewRequest struct {
	Path    string            `json:"path"`
	Rows    int               `json:"rows"`
	Options core.OptionsPatch `json:"options"`
}

// ColumnsRequest is the body of POST /api/columns.
type ColumnsRequest struct {
	Path  string `json:"path"`
	Sheet string `json:"sheet"`
}

// SchemaResponse describes the defaults a request starts from.
type SchemaResponse struct {
	Columns  []string                    `json:"columns"`
	Defaults core.OptionsPatch           `json:"defaults"`
	Formats  map[adapter.Format][]string `json:"formats"`
}

// HistoryResponse lists recent runs.
type HistoryResponse struct {
	Runs []history.Entry `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	defaults := s.service.Defaults()
	writeJSON(w, http.StatusOK, SchemaResponse{
		Columns:  defaults.Columns,
		Defaults: core.PatchOf(defaults),
		Formats:  adapter.Formats(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, &core.Error{
				Kind: core.KindInvalidConfiguration,
				Err:  fmt.Errorf("limit %q must be a positive integer", v),
			})
			return
		}
		limit = n
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Runs: runs})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	opts, err := req.Options.Apply(s.service.Defaults())
	if err != nil {
		respondError(w, r, err)
		return
	}

	sources, err := s.requestPaths(r, req.Sources...)
	if err != nil {
		respondError(w, r, err)
		return
	}
	target := req.Target
	if target != "" {
		if target, err = s.resolvePath(target); err != nil {
			respondError(w, r, err)
			return
		}
	}

	logging.WithFields(r.Context(), "target", target, "mode", opts.Mode).
		Info("merge requested", "sources", len(sources), "dry_run", opts.DryRun)

	res, err := s.service.Run(r.Context(), service.Request{
		Sources: sources,
		Target:  target,
		Options: opts,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, r, &core.Error{Kind: core.KindInvalidConfiguration, Err: errors.New("path is required")})
		return
	}
	opts, err := req.Options.Apply(s.service.Defaults())
	if err != nil {
		respondError(w, r, err)
		return
	}

	paths, err := s.requestPaths(r, req.Path)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ds, err := s.service.Preview(r.Context(), paths[0], opts, req.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	var req ColumnsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, r, &core.Error{Kind: core.KindInvalidConfiguration, Err: errors.New("path is required")})
		return
	}

	paths, err := s.requestPaths(r, req.Path)
	if err != nil {
		respondError(w, r, err)
		return
	}

	cols, err := s.service.SheetColumns(paths[0], req.Sheet)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"columns": cols})
}

// decode reads a JSON body into v, rejecting unknown fields and bodies over
// the configured size. It writes the error response and returns false on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		respondError(w, r, &core.Error{
			Kind: core.KindInvalidConfiguration,
			Err:  fmt.Errorf("invalid request body: %w", err),
		})
		return false
	}
	return true
}
