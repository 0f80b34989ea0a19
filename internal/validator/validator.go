// Package validator runs the four invariant checks (beat length, equal
// measure length, in-range, kempyung) over a built score, each producing
// remaining-invalid/corrected/ignored reports and optionally
// autocorrecting: four standalone functions returning a shared Result
// shape, small pure functions over the model types with the immutable
// *model.NoteTable threaded in.
package validator

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// Result is the three-list report every check produces: beats still
// failing the check, beats the autocorrector fixed, and beats where a
// VALIDATION override suppressed the check.
type Result struct {
	Invalid   []string
	Corrected []string
	Ignored   []string
}

func (r *Result) invalid(format string, args ...any)   { r.Invalid = append(r.Invalid, fmt.Sprintf(format, args...)) }
func (r *Result) corrected(format string, args ...any) { r.Corrected = append(r.Corrected, fmt.Sprintf(format, args...)) }
func (r *Result) ignored(beat *model.Beat)             { r.Ignored = append(r.Ignored, fmt.Sprintf("beat %s skipped due to override", beat.FullID())) }

// PolosSangsih names a pair of positions the kempyung check validates
// against each other.
type PolosSangsih struct {
	Polos   model.Position
	Sangsih model.Position
}

// CheckBeatLength enforces that every beat of a REGULAR gongan has a
// power-of-two duration. There is no autocorrect for this check.
func CheckBeatLength(score *model.Score) Result {
	var r Result
	for _, gongan := range score.Gongans {
		if gongan.Type != model.GonganRegular {
			continue
		}
		for _, beat := range gongan.Beats {
			if beat.ValidationIgnore[model.ValidationBeatDuration] {
				r.ignored(beat)
				continue
			}
			if !isPowerOfTwo(beat.Duration) {
				r.invalid("beat %s: duration %.3f is not a power of two", beat.FullID(), beat.Duration)
			}
		}
	}
	return r
}

func isPowerOfTwo(d float64) bool {
	if d <= 0 || d != math.Trunc(d) {
		return false
	}
	n := uint64(d)
	return bits.OnesCount64(n) == 1
}

// CheckEqualMeasureLength enforces that every measure within a beat sums
// to the beat's duration. When autocorrect is set, measures for positions
// in shorthandPositions are padded with EXTENSION rests, whole rests first
// and then one fractional rest to cover any remainder, prepended when
// beatAtEnd is set and appended otherwise.
func CheckEqualMeasureLength(score *model.Score, table *model.NoteTable, shorthandPositions map[model.Position]bool, beatAtEnd, autocorrect bool) Result {
	var r Result
	for _, gongan := range score.Gongans {
		for _, beat := range gongan.Beats {
			if beat.ValidationIgnore[model.ValidationStaveLength] {
				r.ignored(beat)
				continue
			}
			for position, measure := range beat.Measures {
				have := measure.TotalDuration(model.DefaultPass)
				if have == beat.Duration {
					continue
				}
				if autocorrect && shorthandPositions[position] {
					padMeasure(measure, position, beat.Duration, beatAtEnd, table)
					have = measure.TotalDuration(model.DefaultPass)
					if have == beat.Duration {
						r.corrected("beat %s %s: padded to duration %.3f", beat.FullID(), position, beat.Duration)
						continue
					}
				}
				r.invalid("beat %s %s: total duration %.3f != beat duration %.3f", beat.FullID(), position, have, beat.Duration)
			}
		}
	}
	return r
}

func padMeasure(measure *model.Measure, position model.Position, target float64, beatAtEnd bool, table *model.NoteTable) {
	content, ok := measure.Passes[model.DefaultPass]
	if !ok {
		return
	}
	remaining := target - totalDuration(content.Notes)
	if remaining <= 0 {
		return
	}
	var fill []model.Note
	if whole, ok := table.WholeRestNote(position, model.StrokeExtension); ok {
		for remaining >= 1 {
			fill = append(fill, whole)
			remaining -= 1
		}
	}
	if remaining > 0 {
		if rest, ok := table.RestNote(position, model.StrokeExtension, remaining); ok {
			fill = append(fill, rest)
		}
	}
	if beatAtEnd {
		content.Notes = append(append([]model.Note{}, fill...), content.Notes...)
	} else {
		content.Notes = append(content.Notes, fill...)
	}
}

func totalDuration(notes []model.Note) float64 {
	var d float64
	for _, n := range notes {
		d += n.TotalDuration()
	}
	return d
}

// CheckInRange enforces that every note's (pitch, octave, stroke) appears
// in its position's valid-note set. There is no autocorrect for this
// check.
func CheckInRange(score *model.Score, table *model.NoteTable) Result {
	var r Result
	for _, gongan := range score.Gongans {
		for _, beat := range gongan.Beats {
			if beat.ValidationIgnore[model.ValidationInstrumentRange] {
				r.ignored(beat)
				continue
			}
			for position, measure := range beat.Measures {
				for _, n := range measure.ForPass(model.DefaultPass) {
					if n.Tone.Pitch == model.PitchNone {
						continue
					}
					if !table.InRange(position, n.Tone, n.Stroke) {
						r.invalid("beat %s %s: %s/%s out of range", beat.FullID(), position, n.Tone, n.Stroke)
					}
				}
			}
		}
	}
	return r
}

// CheckKempyung enforces that, for each configured polos/sangsih pair,
// a homophonic sangsih measure (same stroke/duration/rest_after sequence
// as polos) carries the canonical kempyung tone of the matching polos
// note. When autocorrect is set, the sangsih note is replaced by the
// canonical kempyung note and the check is re-run once to confirm the
// correction itself validates.
func CheckKempyung(score *model.Score, pairs []PolosSangsih, table *model.NoteTable, autocorrect bool) Result {
	var r Result
	for _, gongan := range score.Gongans {
		for _, beat := range gongan.Beats {
			if beat.ValidationIgnore[model.ValidationKempyung] {
				r.ignored(beat)
				continue
			}
			for _, pair := range pairs {
				checkKempyungPair(beat, pair, table, autocorrect, &r)
			}
		}
	}
	return r
}

func checkKempyungPair(beat *model.Beat, pair PolosSangsih, table *model.NoteTable, autocorrect bool, r *Result) {
	polosMeasure, ok1 := beat.Measures[pair.Polos]
	sangsihMeasure, ok2 := beat.Measures[pair.Sangsih]
	if !ok1 || !ok2 {
		return
	}
	polosNotes := polosMeasure.ForPass(model.DefaultPass)
	sangsihNotes := sangsihMeasure.ForPass(model.DefaultPass)
	if len(polosNotes) != len(sangsihNotes) {
		return
	}
	if !isHomophonic(polosNotes, sangsihNotes) {
		return
	}

	kempyungOf := kempyungTable(pair.Polos, table)

	iterations := 1
	if autocorrect {
		iterations = 2
	}
	var mismatch bool
	changed := false
	for iter := 1; iter <= iterations; iter++ {
		mismatch = false
		for i, polos := range polosNotes {
			if polos.Tone.Pitch == model.PitchNone || polos.Tone.Octave == nil {
				continue
			}
			want, ok := kempyungOf[toneStep{polos.Tone.Pitch, *polos.Tone.Octave}]
			if !ok {
				continue
			}
			sangsih := sangsihNotes[i]
			if sangsih.Tone.Equal(want) {
				continue
			}
			if autocorrect && iter == 1 {
				if corrected, ok := table.LookupTone(pair.Sangsih, want, sangsih.Stroke, sangsih.Duration, sangsih.RestAfter); ok {
					sangsihNotes[i] = corrected
					changed = true
					continue
				}
			}
			mismatch = true
		}
	}
	sangsihMeasure.Passes[model.DefaultPass].Notes = sangsihNotes
	if mismatch {
		r.invalid("beat %s %s/%s: kempyung mismatch", beat.FullID(), pair.Polos, pair.Sangsih)
	} else if changed {
		r.corrected("beat %s %s/%s: corrected to canonical kempyung", beat.FullID(), pair.Polos, pair.Sangsih)
	}
}

func isHomophonic(a, b []model.Note) bool {
	for i := range a {
		if a[i].Stroke != b[i].Stroke || a[i].Duration != b[i].Duration || a[i].RestAfter != b[i].RestAfter {
			return false
		}
	}
	return true
}

// toneStep flattens a melodic tone to a comparable map key.
type toneStep struct {
	Pitch  model.Pitch
	Octave int
}

// kempyungTable builds the polos-tone -> kempyung-tone map for position's
// OPEN-stroke range: tones ordered by (octave, scale step), each paired
// with the tone three steps higher, the top three pairing with
// themselves.
func kempyungTable(position model.Position, table *model.NoteTable) map[toneStep]model.Tone {
	var ordered []model.Tone
	seen := map[toneStep]bool{}
	for _, t := range table.Range(position, model.StrokeOpen) {
		if t.Octave == nil || !t.Pitch.IsMelodic() {
			continue
		}
		s := toneStep{t.Pitch, *t.Octave}
		if seen[s] {
			continue
		}
		seen[s] = true
		ordered = append(ordered, t)
	}
	sortByStep(ordered)
	n := len(ordered)
	out := make(map[toneStep]model.Tone, n)
	for i, t := range ordered {
		key := toneStep{t.Pitch, *t.Octave}
		if i < n-3 {
			out[key] = ordered[i+3]
		} else {
			out[key] = t
		}
	}
	return out
}

func sortByStep(tones []model.Tone) {
	for i := 1; i < len(tones); i++ {
		for j := i; j > 0; j-- {
			si := tones[j].Pitch.ScaleStep() + 100*(*tones[j].Octave)
			sj := tones[j-1].Pitch.ScaleStep() + 100*(*tones[j-1].Octave)
			if si >= sj {
				break
			}
			tones[j], tones[j-1] = tones[j-1], tones[j]
		}
	}
}

// Report bundles every check's Result plus an overall error count, which
// the pipeline Agent uses to decide whether to abort.
type Report struct {
	BeatLength    Result
	MeasureLength Result
	InRange       Result
	Kempyung      Result
}

// ErrorCount totals the remaining-invalid entries across all four checks.
func (rpt Report) ErrorCount() int {
	return len(rpt.BeatLength.Invalid) + len(rpt.MeasureLength.Invalid) + len(rpt.InRange.Invalid) + len(rpt.Kempyung.Invalid)
}

// Config carries the per-run parameters the four checks need beyond the
// score and note table itself.
type Config struct {
	ShorthandPositions map[model.Position]bool
	BeatAtEnd          bool
	KempyungPairs      []PolosSangsih
	Autocorrect        bool
}

// Validate runs all four checks in order, honoring Config.Autocorrect.
func Validate(score *model.Score, table *model.NoteTable, cfg Config) Report {
	return Report{
		BeatLength:    CheckBeatLength(score),
		MeasureLength: CheckEqualMeasureLength(score, table, cfg.ShorthandPositions, cfg.BeatAtEnd, cfg.Autocorrect),
		InRange:       CheckInRange(score, table),
		Kempyung:      CheckKempyung(score, cfg.KempyungPairs, table, cfg.Autocorrect),
	}
}
