package web

// errors.go turns handler errors into JSON responses. The technical error is
// logged with the request ID; the client gets the mapped user message, its
// support code, and the path, columns and line of a merge error so a
// rejected file can be fixed.

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/logging"
	"github.com/JonMunkholm/sheetmerge/internal/service"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Kind    string   `json:"kind,omitempty"`
	Path    string   `json:"path,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Line    int      `json:"line,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTooManyMerges):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSchemaMismatch),
		errors.Is(err, core.ErrMissingColumns),
		errors.Is(err, core.ErrUnreadableSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var cerr *core.Error
	if errors.As(err, &cerr) {
		resp.Kind = cerr.Kind.String()
		resp.Path = cerr.Path
		resp.Columns = cerr.Columns
		resp.Line = cerr.Line
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(30))
	}
	writeJSON(w, status, resp)
}
