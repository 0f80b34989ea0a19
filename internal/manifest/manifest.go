// Package manifest maintains the sidecar JSON document the companion
// player reads. The manifest is updated, not replaced: read, merge the
// current notation's entry, write to temp, atomic rename.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/atomicfile"
)

// Marker is one HELPINGHAND-style cue surfaced to the companion player at
// playback time, alongside the MIDI marker meta events internal/midiout
// emits.
type Marker struct {
	ID   string `json:"id"`
	Time string `json:"time,omitempty"`
	Text string `json:"text,omitempty"`
}

// Part is one playable part (one Position's track, or a bundle) within an
// Entry, carrying the file it was rendered to and any loop/marker metadata
// the player needs.
type Part struct {
	PartID  string   `json:"part_id"`
	File    string   `json:"file"`
	Loop    bool     `json:"loop,omitempty"`
	Markers []Marker `json:"markers,omitempty"`
}

// Entry is one notation's manifest record: title, instrument group, parts
// with file/loop/markers, optional pdf, notation version.
type Entry struct {
	Title           string `json:"title"`
	InstrumentGroup string `json:"instrumentgroup"`
	Parts           []Part `json:"parts"`
	PDF             string `json:"pdf,omitempty"`
	NotationVersion string `json:"notation_version,omitempty"`
}

// Manifest is the sidecar JSON document: every known composition's Entry,
// keyed by composition id.
type Manifest struct {
	Compositions map[string]Entry `json:"compositions"`
}

// load reads path's manifest, or returns an empty one if the file does not
// yet exist (the first run for a given deployment has nothing to merge
// into).
func load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{Compositions: map[string]Entry{}}, nil
		}
		return Manifest{}, fmt.Errorf("reading player manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing player manifest %s: %w", path, err)
	}
	if m.Compositions == nil {
		m.Compositions = map[string]Entry{}
	}
	return m, nil
}

// Update merges entry into path's manifest under compositionID and writes
// the result back atomically: the manifest is never replaced wholesale,
// only this composition's record is overwritten.
func Update(path, compositionID string, entry Entry) error {
	m, err := load(path)
	if err != nil {
		return err
	}
	m.Compositions[compositionID] = entry

	return atomicfile.Write(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
}
