package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// NoDedup is the MERGE_DEDUP_KEY value that turns dedup off.
const NoDedup = "none"

// Options converts the environment defaults into merge options.
func (m MergeConfig) Options() core.Options {
	key := m.DedupKey
	if key == NoDedup {
		key = ""
	}
	return core.Options{
		Columns:         slices.Clone(m.Columns),
		Delimiter:       m.Delimiter,
		Encoding:        m.Encoding,
		FixedEncoding:   m.FixedEncoding,
		OutputEncoding:  m.OutputEncoding,
		Mode:            core.Mode(m.Mode),
		DedupKey:        key,
		StrictColumns:   m.StrictColumns,
		Match:           core.MatchMode(m.Match),
		RejectAmbiguous: m.RejectAmbiguous,
		FixedIndexes:    slices.Clone(m.FixedIndexes),
	}
}

// MergeOptions returns the default merge options with MERGE_PROFILE
// overlaid when one is configured.
func (c *Config) MergeOptions() (core.Options, error) {
	opts := c.Merge.Options()
	if c.Merge.Profile == "" {
		return opts, nil
	}
	return LoadProfile(c.Merge.Profile, opts)
}

// LoadProfile reads a YAML profile from path and applies it over base.
// Unknown keys are rejected so a typo does not silently fall back to a
// default. The result is validated.
func LoadProfile(path string, base core.Options) (core.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Options{}, &core.Error{Kind: core.KindInvalidConfiguration, Path: path, Err: err}
	}
	opts, err := ParseProfile(data, base)
	if err != nil {
		var cerr *core.Error
		if errors.As(err, &cerr) && cerr.Path == "" {
			cp := *cerr
			cp.Path = path
			return core.Options{}, &cp
		}
		return core.Options{}, err
	}
	return opts, nil
}

// ParseProfile applies a YAML profile document over base.
func ParseProfile(data []byte, base core.Options) (core.Options, error) {
	var patch core.OptionsPatch

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
		return core.Options{}, &core.Error{
			Kind: core.KindInvalidConfiguration,
			Err:  fmt.Errorf("parse profile: %w", err),
		}
	}

	opts, err := patch.Apply(base)
	if err != nil {
		return core.Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return core.Options{}, err
	}
	return opts, nil
}
