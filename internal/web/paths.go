package web

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/core"
	"github.com/JonMunkholm/sheetmerge/internal/logging"
)

var (
	errNoDataDir      = errors.New("server has no data directory configured")
	errOutsideDataDir = errors.New("path is outside the data directory")
	errEmptyPath      = errors.New("empty path")
)

// resolvePath maps a request path onto the data directory. Relative paths
// are taken from the data directory; absolute paths must already lie inside
// it. Symlinks are resolved before the check, so a link in the data
// directory cannot lead elsewhere. Rejections are invalid configuration.
func (s *Server) resolvePath(p string) (string, error) {
	reject := func(err error) (string, error) {
		return "", &core.Error{Kind: core.KindInvalidConfiguration, Path: p, Err: err}
	}

	switch {
	case s.dataRoot == "":
		return reject(errNoDataDir)
	case p == "":
		return reject(errEmptyPath)
	}

	full := p
	if !filepath.IsAbs(p) {
		if !filepath.IsLocal(p) {
			return reject(errOutsideDataDir)
		}
		full = filepath.Join(s.dataRoot, p)
	}
	full = filepath.Clean(full)

	resolved, err := evalExisting(full)
	if err != nil {
		return reject(err)
	}
	if !within(s.dataRoot, resolved) {
		return reject(errOutsideDataDir)
	}
	return full, nil
}

// requestPaths resolves every path of a request, logging the one rejected.
func (s *Server) requestPaths(r *http.Request, paths ...string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		full, err := s.resolvePath(p)
		if err != nil {
			logging.WithFields(r.Context(), "path", p).Warn("request path rejected", "error", err)
			return nil, err
		}
		out[i] = full
	}
	return out, nil
}

// evalExisting resolves symlinks in the longest existing prefix of p and
// appends the rest unchanged. Targets usually do not exist yet.
func evalExisting(p string) (string, error) {
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		tail = append([]string{filepath.Base(p)}, tail...)
		p = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
