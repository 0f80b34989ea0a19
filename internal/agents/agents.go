// Package agents wires each stage of the compiler into a pipeline.Agent,
// so cmd/notation2midi can hand the whole sequence to pipeline.Pipeline
// instead of calling every stage's package directly. Each Agent here is a
// thin adapter: the actual logic lives in the stage's own package
// (internal/grammar, internal/tagresolver, internal/scorebuilder,
// internal/ruleengine, internal/validator, internal/notationout,
// internal/midiout, internal/pdfout, internal/manifest); this package only
// declares the Bag contract between them.
package agents

import (
	"context"
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/grammar"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/manifest"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/midiout"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/notationout"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/pdfout"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/pipeline"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/ruleengine"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/scorebuilder"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/settings"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tagresolver"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/validator"
)

// Bag keys threaded through the pipeline. Declared once here so every
// Agent's RequiredInputs/Produces agree on the same Key values.
const (
	KeyNotationText  pipeline.Key = "notation_text"
	KeySettings      pipeline.Key = "settings"
	KeyNoteTable     pipeline.Key = "note_table"
	KeyTagTable      pipeline.Key = "tag_table"
	KeyRulePairs     pipeline.Key = "rule_pairs"
	KeyKempyungPairs pipeline.Key = "kempyung_pairs"
	KeyPresetTable   pipeline.Key = "preset_table"
	KeyCues          pipeline.Key = "helpinghand_cues"
	KeyParseResult   pipeline.Key = "parse_result"
	KeyScore         pipeline.Key = "score"
	KeyValidation    pipeline.Key = "validation_report"
	KeyMidiFile      pipeline.Key = "midi_file"
)

// ----------------------------------------------------------------------
// Stage A: GrammarParser

// GrammarAgent runs internal/grammar.Parse.
type GrammarAgent struct{}

func (GrammarAgent) Name() string                 { return "GrammarParser" }
func (GrammarAgent) RequiredInputs() []pipeline.Key { return []pipeline.Key{KeyNotationText} }
func (GrammarAgent) Produces() []pipeline.Key       { return []pipeline.Key{KeyParseResult} }
func (GrammarAgent) RunConditionSatisfied(pipeline.Bag) bool { return true }

func (GrammarAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	text, _ := pipeline.Get[string](bag, KeyNotationText)
	result, errs := grammar.Parse(text)
	if len(errs) > 0 {
		return errs
	}
	bag[KeyParseResult] = result
	return nil
}

// ----------------------------------------------------------------------
// Stages B+ (TagResolver through MetadataBinder run inside BuildScore):
// ScoreBuilderAgent

// ScoreBuilderAgent runs internal/scorebuilder.BuildScore, which itself
// invokes TagResolver and MetadataBinder per-gongan.
type ScoreBuilderAgent struct{}

func (ScoreBuilderAgent) Name() string { return "ScoreBuilder" }
func (ScoreBuilderAgent) RequiredInputs() []pipeline.Key {
	return []pipeline.Key{KeyParseResult, KeyTagTable, KeyNoteTable, KeySettings}
}
func (ScoreBuilderAgent) Produces() []pipeline.Key           { return []pipeline.Key{KeyScore} }
func (ScoreBuilderAgent) RunConditionSatisfied(pipeline.Bag) bool { return true }

func (ScoreBuilderAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	parsed, _ := pipeline.Get[*grammar.ParseResult](bag, KeyParseResult)
	tagTable, _ := pipeline.Get[*tagresolver.Table](bag, KeyTagTable)
	table, _ := pipeline.Get[*model.NoteTable](bag, KeyNoteTable)
	rs, _ := pipeline.Get[*settings.RunSettings](bag, KeySettings)

	shorthand := map[model.Position]bool{}
	for _, p := range rs.Notation.ShorthandPositions {
		shorthand[p] = true
	}
	acceleratingPattern := make([]float64, len(rs.Midi.AcceleratingPattern))
	for i, v := range rs.Midi.AcceleratingPattern {
		acceleratingPattern[i] = float64(v)
	}
	cfg := scorebuilder.BuildConfig{
		Table:              table,
		ShorthandPositions: shorthand,
		Tremolo: scorebuilder.TremoloConfig{
			NotesPerQuarter:      rs.Midi.TremoloNotesPerQuarter,
			AcceleratingPattern:  acceleratingPattern,
			AcceleratingVelocity: rs.Midi.AcceleratingVelocity,
		},
		KempliPosition: model.PositionKempli,
		HasKempliBeat:  true,
	}
	score, err := scorebuilder.BuildScore(rs.Composition.Title, parsed, tagTable, cfg, rs.Notation.BeatAtEnd)
	if err != nil {
		return []error{err}
	}
	bag[KeyScore] = score
	return nil
}

// ----------------------------------------------------------------------
// Stage B continued: RuleEngine

// RuleEngineAgent runs internal/ruleengine.DeriveMeasures, filling in
// positions that co-occur with a notated primary but were never staved
// themselves.
type RuleEngineAgent struct{}

func (RuleEngineAgent) Name() string { return "RuleEngine" }
func (RuleEngineAgent) RequiredInputs() []pipeline.Key {
	return []pipeline.Key{KeyScore, KeyRulePairs, KeyNoteTable}
}
func (RuleEngineAgent) Produces() []pipeline.Key           { return nil }
func (RuleEngineAgent) RunConditionSatisfied(pipeline.Bag) bool { return true }

func (RuleEngineAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	score, _ := pipeline.Get[*model.Score](bag, KeyScore)
	pairs, _ := pipeline.Get[[]ruleengine.RulePair](bag, KeyRulePairs)
	table, _ := pipeline.Get[*model.NoteTable](bag, KeyNoteTable)
	if err := ruleengine.DeriveMeasures(score, pairs, table); err != nil {
		return []error{err}
	}
	return nil
}

// ----------------------------------------------------------------------
// Stage C: Validator

// ValidatorAgent runs internal/validator.Validate and aborts the pipeline
// if any check still reports an invalid entry after autocorrection.
type ValidatorAgent struct {
	Autocorrect bool
}

func (ValidatorAgent) Name() string { return "Validator" }
func (ValidatorAgent) RequiredInputs() []pipeline.Key {
	return []pipeline.Key{KeyScore, KeyNoteTable, KeyKempyungPairs, KeySettings}
}
func (ValidatorAgent) Produces() []pipeline.Key           { return []pipeline.Key{KeyValidation} }
func (ValidatorAgent) RunConditionSatisfied(pipeline.Bag) bool { return true }

func (a ValidatorAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	score, _ := pipeline.Get[*model.Score](bag, KeyScore)
	table, _ := pipeline.Get[*model.NoteTable](bag, KeyNoteTable)
	pairs, _ := pipeline.Get[[]validator.PolosSangsih](bag, KeyKempyungPairs)
	rs, _ := pipeline.Get[*settings.RunSettings](bag, KeySettings)

	shorthand := map[model.Position]bool{}
	for _, p := range rs.Notation.ShorthandPositions {
		shorthand[p] = true
	}
	report := validator.Validate(score, table, validator.Config{
		ShorthandPositions: shorthand,
		BeatAtEnd:          rs.Notation.BeatAtEnd,
		KempyungPairs:      pairs,
		Autocorrect:        a.Autocorrect,
	})
	bag[KeyValidation] = report
	if n := report.ErrorCount(); n > 0 {
		return []error{fmt.Errorf("validator: %d unresolved invariant violation(s)", n)}
	}
	return nil
}

// ----------------------------------------------------------------------
// Corrected-notation writer

// CorrectedNotationAgent writes the validated (and possibly autocorrected)
// score back out as notation text via internal/notationout when
// SaveCorrected is set, so the corrected file can be inspected or
// re-compiled in place of the original.
type CorrectedNotationAgent struct {
	OutputPath string
}

func (CorrectedNotationAgent) Name() string { return "CorrectedNotation" }
func (CorrectedNotationAgent) RequiredInputs() []pipeline.Key {
	return []pipeline.Key{KeyScore, KeySettings}
}
func (CorrectedNotationAgent) Produces() []pipeline.Key { return nil }
func (CorrectedNotationAgent) RunConditionSatisfied(bag pipeline.Bag) bool {
	rs, ok := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	return ok && rs.Options.SaveCorrected
}

func (a CorrectedNotationAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	score, _ := pipeline.Get[*model.Score](bag, KeyScore)
	rs, _ := pipeline.Get[*settings.RunSettings](bag, KeySettings)

	path := a.OutputPath
	if path == "" {
		path = rs.Notation.CorrectedFile
	}
	if path == "" {
		path = rs.Composition.ID + "_corrected.tsv"
	}
	if err := notationout.SaveTo(path, score); err != nil {
		return []error{err}
	}
	return nil
}

// ----------------------------------------------------------------------
// Stage D: FlowInterpreter + MidiEmitter

// MidiAgent runs internal/midiout.Emit and writes the result via
// internal/atomicfile (inside midiout.SaveTo).
type MidiAgent struct {
	OutputPath string
}

func (MidiAgent) Name() string { return "MidiEmitter" }
func (MidiAgent) RequiredInputs() []pipeline.Key {
	return []pipeline.Key{KeyScore, KeyPresetTable, KeySettings}
}
func (MidiAgent) Produces() []pipeline.Key { return []pipeline.Key{KeyMidiFile} }
func (a MidiAgent) RunConditionSatisfied(bag pipeline.Bag) bool {
	rs, ok := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	return ok && rs.Options.SaveMIDI
}

func (a MidiAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	score, _ := pipeline.Get[*model.Score](bag, KeyScore)
	presets, _ := pipeline.Get[*midiout.PresetTable](bag, KeyPresetTable)
	rs, _ := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	cues, _ := pipeline.Get[[]midiout.HelpingHandCue](bag, KeyCues)

	cfg := midiout.Config{
		PPQ:                         rs.Midi.PPQ,
		BaseNoteTime:                rs.Midi.BaseNoteTime,
		InitialTempoBPM:             60,
		InitialVelocity:             64,
		GraceNoteDuration:           rs.Midi.GraceNoteDuration,
		GraceNoteTimeThreshold:      rs.Midi.GraceNoteTimeThreshold,
		SilenceSecondsAfterEnd:      rs.Midi.SilenceSecondsAfterEnd,
		SilenceSecondsAfterMusicEnd: rs.Midi.SilenceSecondsAfterMusicEnd,
	}
	smfFile, err := midiout.Emit(score, presets, cfg, cues)
	if err != nil {
		return []error{err}
	}
	path := a.OutputPath
	if path == "" {
		path = rs.Composition.ID + ".mid"
	}
	if err := midiout.SaveTo(path, smfFile); err != nil {
		return []error{err}
	}
	bag[KeyMidiFile] = path
	return nil
}

// ----------------------------------------------------------------------
// PDF renderer stub (an external collaborator; only its input contract is
// exercised here)

// PDFAgent calls the pdfout.Renderer the caller wired in (or
// pdfout.NotImplemented, which always fails) when SavePDF is set.
type PDFAgent struct {
	Renderer pdfout.Renderer
}

func (PDFAgent) Name() string                       { return "PDFRenderer" }
func (PDFAgent) RequiredInputs() []pipeline.Key       { return []pipeline.Key{KeyScore, KeySettings} }
func (PDFAgent) Produces() []pipeline.Key             { return nil }
func (a PDFAgent) RunConditionSatisfied(bag pipeline.Bag) bool {
	rs, ok := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	return ok && rs.Options.SavePDF
}

func (a PDFAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	score, _ := pipeline.Get[*model.Score](bag, KeyScore)
	rs, _ := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	renderer := a.Renderer
	if renderer == nil {
		renderer = pdfout.NotImplemented{}
	}
	if err := renderer.Render(score, rs.PDF.OutputPath); err != nil {
		return []error{err}
	}
	return nil
}

// ----------------------------------------------------------------------
// Player manifest updater (an external collaborator; only its input
// contract, the MIDI path plus metadata merge, is exercised here)

// ManifestAgent runs internal/manifest.Update, merging this run's entry
// into the sidecar JSON the companion player reads.
type ManifestAgent struct{}

func (ManifestAgent) Name() string                 { return "PlayerManifest" }
func (ManifestAgent) RequiredInputs() []pipeline.Key { return []pipeline.Key{KeyMidiFile, KeySettings} }
func (ManifestAgent) Produces() []pipeline.Key       { return nil }
func (ManifestAgent) RunConditionSatisfied(bag pipeline.Bag) bool {
	rs, ok := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	return ok && rs.Options.SaveMIDI && rs.PlayerManifest.Path != ""
}

func (ManifestAgent) Run(_ context.Context, bag pipeline.Bag) []error {
	rs, _ := pipeline.Get[*settings.RunSettings](bag, KeySettings)
	midiPath, _ := pipeline.Get[string](bag, KeyMidiFile)
	score, _ := pipeline.Get[*model.Score](bag, KeyScore)

	entry := manifest.Entry{
		Title:            score.Title,
		InstrumentGroup:  string(rs.Instruments.Group),
		NotationVersion:  rs.Composition.PartID,
		Parts: []manifest.Part{{
			PartID: rs.Composition.PartID,
			File:   midiPath,
		}},
	}
	if rs.Options.SavePDF {
		entry.PDF = rs.PDF.OutputPath
	}
	if err := manifest.Update(rs.PlayerManifest.Path, rs.Composition.ID, entry); err != nil {
		return []error{err}
	}
	return nil
}

// Standard returns the ordered agent list for a normal compile run.
// midi/pdf/manifest honor the corresponding settings.Options flags via
// RunConditionSatisfied; callers that want a different sequence can build
// their own []pipeline.Agent instead.
func Standard(rs *settings.RunSettings, midiPath string, renderer pdfout.Renderer) []pipeline.Agent {
	return []pipeline.Agent{
		GrammarAgent{},
		ScoreBuilderAgent{},
		RuleEngineAgent{},
		ValidatorAgent{Autocorrect: rs.Options.Autocorrect},
		CorrectedNotationAgent{},
		MidiAgent{OutputPath: midiPath},
		PDFAgent{Renderer: renderer},
		ManifestAgent{},
	}
}
