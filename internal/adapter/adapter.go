// Package adapter turns source files into datasets in the canonical layout.
//
// Three source formats are supported. Fixed-index delimited files pick
// fields by position. Header-mapped delimited files bind their first line's
// headers to the canonical columns by name. Spreadsheets take caller-chosen
// columns from a sheet. The format of a file is inferred from its
// extension; see [Describe].
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// Adapter reads one source file into a dataset.
type Adapter interface {
	Adapt(ctx context.Context, path string) (core.Dataset, error)
}

// Format identifies how a source file is read.
type Format string

const (
	FormatFixed       Format = "fixed"
	FormatHeader      Format = "header"
	FormatSpreadsheet Format = "spreadsheet"
)

// SourceDescriptor pairs a path with the format it will be read as.
type SourceDescriptor struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
}

// Factory builds an adapter for a format from merge options.
type Factory func(opts core.Options, logger *slog.Logger) (Adapter, error)

type registration struct {
	format     Format
	extensions []string
	factory    Factory
}

var (
	registry   = make(map[Format]registration)
	extensions = make(map[string]Format)
	registryMu sync.RWMutex
)

// Register adds a format with the extensions that select it.
// Panics if the format or an extension is already registered.
func Register(format Format, factory Factory, exts ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[format]; exists {
		panic(fmt.Sprintf("format already registered: %s", format))
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if f, exists := extensions[ext]; exists {
			panic(fmt.Sprintf("extension %s already registered for %s", ext, f))
		}
		extensions[ext] = format
	}
	registry[format] = registration{format: format, extensions: exts, factory: factory}
}

// Formats returns the registered formats with their extensions, sorted by
// format name.
func Formats() map[Format][]string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make(map[Format][]string, len(registry))
	for f, reg := range registry {
		exts := append([]string(nil), reg.extensions...)
		sort.Strings(exts)
		out[f] = exts
	}
	return out
}

// Describe infers the format of path from its extension. Files with an
// unregistered extension, including .txt and .txt4 exports, are read as
// fixed-index delimited text.
func Describe(path string) SourceDescriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()

	format, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		format = FormatFixed
	}
	return SourceDescriptor{Path: path, Format: format}
}

// New builds the adapter for format.
func New(format Format, opts core.Options, logger *slog.Logger) (Adapter, error) {
	registryMu.RLock()
	reg, ok := registry[format]
	registryMu.RUnlock()

	if !ok {
		return nil, &core.Error{
			Kind: core.KindInvalidConfiguration,
			Err:  fmt.Errorf("unknown source format %q", format),
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return reg.factory(opts, logger)
}

// Read adapts the source described by desc.
func Read(ctx context.Context, desc SourceDescriptor, opts core.Options, logger *slog.Logger) (core.Dataset, error) {
	a, err := New(desc.Format, opts, logger)
	if err != nil {
		return core.Dataset{}, err
	}
	return a.Adapt(ctx, desc.Path)
}
