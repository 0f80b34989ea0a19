package midiout

import "github.com/marcpaelinck/gamelan-notation-sub000/internal/model"

// PresetEntry assigns a position its MIDI channel and General MIDI bank/
// program, one row of the preset table.
type PresetEntry struct {
	Position model.Position
	Channel  uint8
	Bank     uint8
	Program  uint8
}

// PresetTable is the immutable, build-once-from-a-flat-list lookup for
// per-position MIDI addressing, populated from settings.Midi.PresetFile
// the same way model.NoteTable is populated from the font table.
type PresetTable struct {
	byPosition map[model.Position]PresetEntry
}

// NewPresetTable builds a PresetTable from a flat list of entries.
func NewPresetTable(entries []PresetEntry) *PresetTable {
	t := &PresetTable{byPosition: make(map[model.Position]PresetEntry, len(entries))}
	for _, e := range entries {
		t.byPosition[e.Position] = e
	}
	return t
}

// Lookup returns position's preset entry, or a zero-valued entry (channel 0,
// bank 0, program 0) when the table has nothing for it.
func (t *PresetTable) Lookup(position model.Position) PresetEntry {
	if t != nil {
		if e, ok := t.byPosition[position]; ok {
			return e
		}
	}
	return PresetEntry{Position: position}
}

// OrderPositions returns the members of active in the canonical position
// sequence shared by every emitted artifact, one MIDI track per entry.
func OrderPositions(active map[model.Position]bool) []model.Position {
	return model.OrderPositions(active)
}
