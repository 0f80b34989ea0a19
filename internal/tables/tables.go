// Package tables is a minimal, CLI-only concrete loader for the lookup
// tables a deployment provides on disk: valid-note tables, rule tables,
// tone-to-MIDI-key lookups, preset/MIDI channel tables, and the
// tag-to-position map. No internal/ package other than cmd/notation2midi
// imports this one: the core packages (internal/model,
// internal/tagresolver, internal/ruleengine, internal/validator,
// internal/midiout) all take their tables as already-built values, passed
// as an explicit immutable context. This package exists only so the CLI
// binary is runnable end-to-end against a plain TSV deployment; it is not
// a full settings system (no YAML schema, no rule-table DSL, just flat
// TSV rows).
package tables

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/midiout"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/ruleengine"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tagresolver"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/validator"
)

func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows [][]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows, scanner.Err()
}

func optFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// MidiNoteMap maps a position's sounding (pitch, octave, stroke) to the
// MIDI key(s) it strikes: the tone-to-MIDI-note table settings.Midi's
// MidiNoteFile points at. A nil map leaves every note's MidiNotes empty
// (the emitter then produces correctly-timed but silent tracks, useful in
// tests that only exercise flow).
type MidiNoteMap map[midiNoteKey][]int

type midiNoteKey struct {
	Position  model.Position
	Pitch     model.Pitch
	Octave    int
	HasOctave bool
	Stroke    model.Stroke
}

// LoadMidiNoteMap reads a TSV of (position, pitch, octave, stroke,
// midinotes) rows, midinotes a comma-separated list of MIDI key numbers
// (several for chorded strikes such as reyong byong).
func LoadMidiNoteMap(path string) (MidiNoteMap, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	m := MidiNoteMap{}
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%s:%d: expected 5 tab-separated fields, got %d", path, i+1, len(row))
		}
		key := midiNoteKey{
			Position: model.Position(strings.TrimSpace(row[0])),
			Pitch:    model.Pitch(strings.TrimSpace(row[1])),
			Stroke:   model.Stroke(strings.TrimSpace(row[3])),
		}
		if s := strings.TrimSpace(row[2]); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad octave %q: %w", path, i+1, s, err)
			}
			key.Octave = v
			key.HasOctave = true
		}
		var keys []int
		for _, part := range strings.Split(row[4], ",") {
			if part = strings.TrimSpace(part); part != "" {
				v, err := strconv.Atoi(part)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: bad midi note %q: %w", path, i+1, part, err)
				}
				keys = append(keys, v)
			}
		}
		m[key] = keys
	}
	return m, nil
}

func (m MidiNoteMap) lookup(n model.Note) []int {
	if m == nil {
		return nil
	}
	key := midiNoteKey{Position: n.Position, Pitch: n.Tone.Pitch, Stroke: n.Stroke}
	if n.Tone.Octave != nil {
		key.Octave = *n.Tone.Octave
		key.HasOctave = true
	}
	return m[key]
}

// LoadNoteTable reads a TSV of (position, symbol, pitch, octave, stroke,
// modifier, duration, rest_after) rows: the valid-note table, one row per
// (position, resolved symbol) combination rather than per glyph.
// midiNotes assigns each sounding row the MIDI key(s) it strikes; rests
// and rows absent from the map keep an empty MidiNotes list.
func LoadNoteTable(path string, midiNotes MidiNoteMap) (*model.NoteTable, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var notes []model.Note
	for i, row := range rows {
		if len(row) < 8 {
			return nil, fmt.Errorf("%s:%d: expected 8 tab-separated fields, got %d", path, i+1, len(row))
		}
		position := model.Position(strings.TrimSpace(row[0]))
		symbol := strings.TrimSpace(row[1])
		pitch := model.Pitch(strings.TrimSpace(row[2]))
		var octave *int
		if s := strings.TrimSpace(row[3]); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad octave %q: %w", path, i+1, s, err)
			}
			octave = &v
		}
		stroke := model.Stroke(strings.TrimSpace(row[4]))
		modifier := model.Modifier(strings.TrimSpace(row[5]))
		duration := optFloat(row[6])
		restAfter := optFloat(row[7])
		n := model.Note{
			Position:  position,
			Tone:      model.Tone{Pitch: pitch, Octave: octave},
			Stroke:    stroke,
			Duration:  duration,
			RestAfter: restAfter,
			Symbol:    symbol,
			Modifier:  modifier,
		}
		if !n.IsRest() {
			n.MidiNotes = midiNotes.lookup(n)
		}
		notes = append(notes, n)
	}
	return model.NewNoteTable(notes), nil
}

// LoadTagTable reads a TSV of (tag, positions, groups) rows, the
// instrument-tag table, positions and groups each a comma-separated list.
func LoadTagTable(path string, group model.InstrumentGroup) (*tagresolver.Table, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var entries []tagresolver.TagEntry
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s:%d: expected at least 2 tab-separated fields, got %d", path, i+1, len(row))
		}
		var positions []model.Position
		for _, p := range strings.Split(row[1], ",") {
			if p = strings.TrimSpace(p); p != "" {
				positions = append(positions, model.Position(p))
			}
		}
		var groups []model.InstrumentGroup
		if len(row) > 2 {
			for _, g := range strings.Split(row[2], ",") {
				if g = strings.TrimSpace(g); g != "" {
					groups = append(groups, model.InstrumentGroup(g))
				}
			}
		}
		entries = append(entries, tagresolver.TagEntry{
			Tag:       strings.TrimSpace(row[0]),
			Positions: positions,
			Groups:    groups,
		})
	}
	return tagresolver.NewTable(group, entries), nil
}

// LoadPresetTable reads a TSV of (position, channel, bank, program) rows.
func LoadPresetTable(path string) (*midiout.PresetTable, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var entries []midiout.PresetEntry
	for i, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("%s:%d: expected 4 tab-separated fields, got %d", path, i+1, len(row))
		}
		channel, _ := strconv.Atoi(strings.TrimSpace(row[1]))
		bank, _ := strconv.Atoi(strings.TrimSpace(row[2]))
		program, _ := strconv.Atoi(strings.TrimSpace(row[3]))
		entries = append(entries, midiout.PresetEntry{
			Position: model.Position(strings.TrimSpace(row[0])),
			Channel:  uint8(channel),
			Bank:     uint8(bank),
			Program:  uint8(program),
		})
	}
	return midiout.NewPresetTable(entries), nil
}

// LoadRulePairs reads a TSV of (primary, secondary) rows used both as
// RuleEngine derivation pairs and as Validator kempyung-check pairs;
// both key off the same polos/sangsih relationship.
func LoadRulePairs(path string) ([]ruleengine.RulePair, []validator.PolosSangsih, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, nil, err
	}
	var rulePairs []ruleengine.RulePair
	var kempyungPairs []validator.PolosSangsih
	for i, row := range rows {
		if len(row) < 2 {
			return nil, nil, fmt.Errorf("%s:%d: expected 2 tab-separated fields, got %d", path, i+1, len(row))
		}
		primary := model.Position(strings.TrimSpace(row[0]))
		secondary := model.Position(strings.TrimSpace(row[1]))
		rulePairs = append(rulePairs, ruleengine.RulePair{Primary: primary, Secondary: secondary})
		kempyungPairs = append(kempyungPairs, validator.PolosSangsih{Polos: primary, Sangsih: secondary})
	}
	return rulePairs, kempyungPairs, nil
}
