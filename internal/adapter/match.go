package adapter

import (
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/core"
)

// Ambiguity records a canonical column that more than one header matched.
type Ambiguity struct {
	Column     string   `json:"column"`
	Candidates []string `json:"candidates"`
	Chosen     string   `json:"chosen"`
}

// Mapping binds each canonical column to a source header position.
// Index[i] is the header position for Columns[i], or -1 when no header
// matched and the column is synthesized empty.
type Mapping struct {
	Columns   []string    `json:"columns"`
	Index     []int       `json:"index"`
	Ambiguous []Ambiguity `json:"ambiguous,omitempty"`
}

// Missing lists the canonical columns without a matching header.
func (m Mapping) Missing() []string {
	var out []string
	for i, idx := range m.Index {
		if idx < 0 {
			out = append(out, m.Columns[i])
		}
	}
	return out
}

// Positions maps every matched column to its header position.
func (m Mapping) Positions() map[string]int {
	pos := make(map[string]int, len(m.Columns))
	for i, idx := range m.Index {
		if idx >= 0 {
			pos[m.Columns[i]] = idx
		}
	}
	return pos
}

// AmbiguousColumns lists the canonical columns with several candidates.
func (m Mapping) AmbiguousColumns() []string {
	out := make([]string, len(m.Ambiguous))
	for i, a := range m.Ambiguous {
		out[i] = a.Column
	}
	return out
}

// MatchColumns binds columns to headers. In substring mode a header
// matches when it contains the column name, in exact mode when it equals
// it; both ignore case and surrounding spaces. The leftmost matching header
// wins. One header may serve several columns.
func MatchColumns(columns, headers []string, mode core.MatchMode) Mapping {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}

	m := Mapping{
		Columns: append([]string(nil), columns...),
		Index:   make([]int, len(columns)),
	}

	for i, col := range columns {
		want := strings.ToLower(strings.TrimSpace(col))
		m.Index[i] = -1

		var candidates []string
		for j, h := range norm {
			if !headerMatches(h, want, mode) {
				continue
			}
			if m.Index[i] < 0 {
				m.Index[i] = j
			}
			candidates = append(candidates, headers[j])
		}

		if len(candidates) > 1 {
			m.Ambiguous = append(m.Ambiguous, Ambiguity{
				Column:     col,
				Candidates: candidates,
				Chosen:     headers[m.Index[i]],
			})
		}
	}

	return m
}

func headerMatches(header, column string, mode core.MatchMode) bool {
	if mode == core.MatchExact {
		return header == column
	}
	return strings.Contains(header, column)
}
