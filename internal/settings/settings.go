// Package settings holds the run configuration the core is wired against:
// which composition to compile, which options are active, and where the
// instrument/font/MIDI lookup tables live on disk. LoadRunSettings only
// decodes the top-level YAML document; the referenced tables are loaded
// elsewhere (see internal/tables).
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// Composition identifies the piece being compiled.
type Composition struct {
	ID           string `yaml:"id"`
	PartID       string `yaml:"part_id"`
	NotationFile string `yaml:"notation_file"`
	Title        string `yaml:"title"`
}

// Options toggles the optional stages and outputs of a compile run.
type Options struct {
	Autocorrect                bool `yaml:"autocorrect"`
	DetailedValidationLogging bool `yaml:"detailed_validation_logging"`
	SaveCorrected              bool `yaml:"save_corrected"`
	SavePDF                    bool `yaml:"save_pdf"`
	SaveMIDI                   bool `yaml:"save_midi"`
	IsProductionRun            bool `yaml:"is_production_run"`
	IsIntegrationTest          bool `yaml:"is_integration_test"`
}

// Instruments selects the ensemble configuration and the location of its
// tag table (used by TagResolver to expand shorthand position tags).
type Instruments struct {
	Group    model.InstrumentGroup `yaml:"group"`
	TagFile  string                `yaml:"tag_file"`
	RuleFile string                `yaml:"rule_file"`
}

// Midi carries every numeric parameter the MidiEmitter and ScoreBuilder's
// tremolo/grace-note expansion need.
type Midi struct {
	PPQ                         int     `yaml:"ppq"`
	BaseNoteTime                float64 `yaml:"base_note_time"`
	SilenceSecondsAfterEnd      float64 `yaml:"silence_seconds_after_end"`
	SilenceSecondsAfterMusicEnd float64 `yaml:"silence_seconds_after_music_end"`
	GraceNoteDuration           float64 `yaml:"grace_note_duration"`
	GraceNoteTimeThreshold      float64 `yaml:"grace_note_time_threshold"`
	TremoloNotesPerQuarter      int     `yaml:"tremolo_notes_per_quarter"`
	AcceleratingPattern         []int   `yaml:"accelerating_pattern"`
	AcceleratingVelocity        []int   `yaml:"accelerating_velocity"`
	PresetFile                  string  `yaml:"preset_file"`
	MidiNoteFile                string  `yaml:"midinote_file"`
}

// Font locates the symbol-table that maps notation glyphs to (pitch,
// octave, stroke, duration, rest_after, modifier) tuples.
type Font struct {
	TableFile string `yaml:"table_file"`
	Name      string `yaml:"notation_font"`
}

// Notation controls grammar-level behavior that varies by notation style,
// and locates the corrected-notation output written when SaveCorrected is
// set.
type Notation struct {
	BeatAtEnd          bool            `yaml:"beat_at_end"`
	ShorthandPositions []model.Position `yaml:"shorthand_positions"`
	CorrectedFile      string           `yaml:"corrected_file"`
}

// PlayerManifest locates the JSON sidecar the companion player reads.
type PlayerManifest struct {
	Path string `yaml:"path"`
}

// PDF locates the output path for the (stubbed, see internal/pdfout) score
// renderer.
type PDF struct {
	OutputPath string `yaml:"output_path"`
}

// RunSettings is the full in-memory configuration a compile run is wired
// against.
type RunSettings struct {
	Composition    Composition    `yaml:"composition"`
	Options        Options        `yaml:"options"`
	Instruments    Instruments    `yaml:"instruments"`
	Midi           Midi           `yaml:"midi"`
	Font           Font           `yaml:"font"`
	Notation       Notation       `yaml:"notation"`
	PlayerManifest PlayerManifest `yaml:"player_manifest"`
	PDF            PDF            `yaml:"pdf"`
}

// LoadRunSettings reads and decodes a RunSettings document from path.
// Populating the referenced lookup tables (instruments, font, midinotes,
// presets, rules) from their own files is out of scope here; callers obtain
// a model.NoteTable and rule set by whatever means their deployment uses.
func LoadRunSettings(path string) (*RunSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	var rs RunSettings
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return &rs, nil
}
