// Package tagresolver expands an instrument tag
// (e.g. "gangsa") into the set of model.Positions it denotes for a given
// instrument group, and splitting a stave's pass selector into an explicit
// set of pass numbers.
package tagresolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/grammar"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// TagEntry is one row of the instrument-tag table: a tag
// string, the groups it is valid for (empty meaning all groups), and the
// positions it expands to.
type TagEntry struct {
	Tag       string
	Groups    []model.InstrumentGroup
	Positions []model.Position
}

// Table is the resolved tag -> positions lookup for one instrument group.
// It is built once from the externally loaded tag entries and treated as
// immutable thereafter.
type Table struct {
	group   model.InstrumentGroup
	byAlias map[string][]model.Position
}

// NewTable indexes entries for the given group, expanding each tag's
// pipe-separated alternative spellings and pipe-separated suffix additions
// combined with the separators {"", " ", "_"}.
func NewTable(group model.InstrumentGroup, entries []TagEntry) *Table {
	t := &Table{group: group, byAlias: map[string][]model.Position{}}
	for _, e := range entries {
		if !appliesToGroup(e.Groups, group) {
			continue
		}
		for _, alias := range expandAliases(e.Tag) {
			t.byAlias[normalize(alias)] = e.Positions
		}
	}
	return t
}

func appliesToGroup(groups []model.InstrumentGroup, group model.InstrumentGroup) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		if g == group {
			return true
		}
	}
	return false
}

// expandAliases splits a tag definition like "gangsa|gangse" combined with
// optional suffix alternatives "polos|sangsih" into every literal spelling,
// joined with each of the separators {"", " ", "_"}.
func expandAliases(tag string) []string {
	base, suffix, hasSuffix := strings.Cut(tag, "+")
	baseAlts := strings.Split(base, "|")
	if !hasSuffix {
		return baseAlts
	}
	suffixAlts := strings.Split(suffix, "|")
	seps := []string{"", " ", "_"}
	var out []string
	for _, b := range baseAlts {
		for _, s := range suffixAlts {
			for _, sep := range seps {
				out = append(out, b+sep+s)
			}
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve expands a tag to its concrete positions, or reports an error
// naming the stave's source line.
func (t *Table) Resolve(tag string, line int) ([]model.Position, error) {
	positions, ok := t.byAlias[normalize(tag)]
	if !ok {
		return nil, fmt.Errorf("line %d: unresolved instrument tag %q for group %s", line, tag, t.group)
	}
	out := make([]model.Position, len(positions))
	copy(out, positions)
	return out, nil
}

// ResolvedStave is one RawStave after its tag has expanded to a single
// concrete Position and its pass spec has expanded to an explicit set of
// passes. Measures are duplicated per resulting position.
type ResolvedStave struct {
	Position model.Position
	Passes   []int // empty means "default pass", i.e. model.DefaultPass
	Measures [][]string
	Line     int
}

// ResolveStave expands one raw stave into one ResolvedStave per position
// the tag denotes.
func (t *Table) ResolveStave(raw grammar.RawStave) ([]ResolvedStave, error) {
	positions, err := t.Resolve(raw.PositionTag, raw.Line)
	if err != nil {
		return nil, err
	}
	passes, err := grammar.ExpandPassSpec(raw.PassSpec)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", raw.Line, err)
	}
	out := make([]ResolvedStave, len(positions))
	for i, p := range positions {
		out[i] = ResolvedStave{Position: p, Passes: passes, Measures: raw.Measures, Line: raw.Line}
	}
	return out, nil
}

// ResolvePositionList expands a metadata record's `positions=[...]` field
// (e.g. SUPPRESS, DYNAMICS, OCTAVATE) the same way stave tags expand,
// deduplicating and sorting the result for deterministic output.
func (t *Table) ResolvePositionList(tags []string, line int) ([]model.Position, error) {
	seen := map[model.Position]bool{}
	var out []model.Position
	for _, tag := range tags {
		positions, err := t.Resolve(tag, line)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
