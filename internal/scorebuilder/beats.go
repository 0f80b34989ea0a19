package scorebuilder

import (
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tagresolver"
)

// BuildConfig carries the per-run parameters BuildGongan needs beyond the
// note table itself (see settings.Notation and settings.Midi).
type BuildConfig struct {
	Table              *model.NoteTable
	ShorthandPositions map[model.Position]bool
	Tremolo            TremoloConfig
	KempliPosition     model.Position
	HasKempliBeat      bool
}

// staveGroup collects every resolved stave for one position within a
// gongan: ordinarily one, but several when different pass ranges carry
// different content.
type staveGroup struct {
	position model.Position
	staves   []tagresolver.ResolvedStave
}

// BuildGongan transposes a gongan's resolved staves into its Beats: one
// Measure per active position per beat, symbol casting, tremolo expansion,
// shorthand pokok padding, and missing-measure defaults.
// activePositions is the full set of positions that sound anywhere in the
// score, used to decide which positions absent from a beat get a default
// rest measure. prev is the gongan built immediately before this one
// (nil for the first): a grace note opening this gongan's first beat
// steals its duration from prev's last note.
func BuildGongan(id int, resolved []tagresolver.ResolvedStave, cfg BuildConfig, activePositions map[model.Position]bool, prev *model.Gongan) (*model.Gongan, error) {
	groups := groupByPosition(resolved)
	beatCount := 0
	for _, g := range groups {
		for _, s := range g.staves {
			if len(s.Measures) > beatCount {
				beatCount = len(s.Measures)
			}
		}
	}

	gongan := &model.Gongan{ID: id, Type: model.GonganRegular}
	soundedThisGongan := map[model.Position]bool{}

	for beatIdx := 0; beatIdx < beatCount; beatIdx++ {
		beat := model.NewBeat(beatIdx+1, id)
		beat.HasKempliBeat = cfg.HasKempliBeat

		var primaryDurations []float64
		castByPosition := map[model.Position]map[int][]model.Note{}

		for _, g := range groups {
			for _, stave := range g.staves {
				if beatIdx >= len(stave.Measures) {
					continue
				}
				notes, err := CastMeasure(stave.Measures[beatIdx], g.position, cfg.Table)
				if err != nil {
					return nil, fmt.Errorf("gongan %d beat %d: %w", id, beatIdx+1, err)
				}
				notes = ExpandTremolo(notes, cfg.Tremolo, cfg.Table)
				notes = PlaceGraceNotes(notes, lastNoteBefore(gongan, prev, g.position), cfg.Table)

				if castByPosition[g.position] == nil {
					castByPosition[g.position] = map[int][]model.Note{}
				}
				passKeys := stave.Passes
				if len(passKeys) == 0 {
					passKeys = []int{model.DefaultPass}
				}
				for _, pk := range passKeys {
					castByPosition[g.position][pk] = notes
				}
				soundedThisGongan[g.position] = true

				if !cfg.ShorthandPositions[g.position] {
					primaryDurations = append(primaryDurations, totalDuration(notes))
				}
			}
		}

		target := modeOf(primaryDurations)
		if target == 0 {
			target = 4
		}

		for position, byPass := range castByPosition {
			measure := &model.Measure{Position: position, Passes: map[model.Pass]*model.PassContent{}}
			for pass, notes := range byPass {
				if cfg.ShorthandPositions[position] {
					notes = padShorthand(notes, target, cfg.Table, position)
				}
				measure.Passes[model.Pass(pass)] = &model.PassContent{Notes: notes}
			}
			beat.Measures[position] = measure
		}

		fillMissingMeasures(beat, activePositions, soundedThisGongan, cfg, target, gongan)

		beat.Duration = beatDuration(beat, target)
		linkBeat(gongan, beat)
	}

	gongan.Notated = soundedThisGongan
	return gongan, nil
}

func groupByPosition(resolved []tagresolver.ResolvedStave) []staveGroup {
	index := map[model.Position]int{}
	var groups []staveGroup
	for _, r := range resolved {
		if i, ok := index[r.Position]; ok {
			groups[i].staves = append(groups[i].staves, r)
			continue
		}
		index[r.Position] = len(groups)
		groups = append(groups, staveGroup{position: r.Position, staves: []tagresolver.ResolvedStave{r}})
	}
	return groups
}

func totalDuration(notes []model.Note) float64 {
	var d float64
	for _, n := range notes {
		d += n.TotalDuration()
	}
	return d
}

// modeOf returns the most frequently occurring value, preferring the
// largest value on ties (a beat's duration is set by its longest-agreeing
// voices).
func modeOf(values []float64) float64 {
	counts := map[float64]int{}
	for _, v := range values {
		counts[v]++
	}
	best := 0.0
	bestCount := 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v > best) {
			best = v
			bestCount = c
		}
	}
	return best
}

func padShorthand(notes []model.Note, target float64, table *model.NoteTable, position model.Position) []model.Note {
	have := totalDuration(notes)
	remaining := target - have
	if remaining <= 0 {
		return notes
	}
	whole, ok := table.WholeRestNote(position, model.StrokeExtension)
	if !ok {
		return notes
	}
	for remaining >= 1 {
		notes = append(notes, whole)
		remaining -= 1
	}
	if remaining > 0 {
		if rest, ok := table.RestNote(position, model.StrokeExtension, remaining); ok {
			notes = append(notes, rest)
		}
	}
	return notes
}

// fillMissingMeasures installs a default measure for every position that
// sounds somewhere in the score but was not notated for this beat. Kempli
// defaulting happens separately, in InjectKempliBeats, once gongan types
// are final.
func fillMissingMeasures(beat *model.Beat, activePositions, soundedThisGongan map[model.Position]bool, cfg BuildConfig, target float64, gongan *model.Gongan) {
	for position := range activePositions {
		if position == cfg.KempliPosition {
			continue
		}
		if _, present := beat.Measures[position]; present {
			continue
		}
		stroke := model.StrokeExtension
		if !soundedThisGongan[position] || lastNoteWasSilence(gongan, position) {
			stroke = model.StrokeSilence
		}
		rest, ok := cfg.Table.RestNote(position, stroke, target)
		if !ok {
			continue
		}
		beat.Measures[position] = model.NewMeasure(position, []model.Note{rest}, 0)
	}
}

// kempliMeasure builds the default kempli stroke: a muted strike at beat
// offset 0 followed by EXTENSIONs covering the remaining duration.
func kempliMeasure(cfg BuildConfig, target float64) *model.Measure {
	var notes []model.Note
	if strike, ok := cfg.Table.LookupTone(cfg.KempliPosition, model.NewTonelessTone(model.PitchNone), model.StrokeMuted, 1, 0); ok {
		notes = append(notes, strike)
	}
	remaining := target - 1
	if whole, ok := cfg.Table.WholeRestNote(cfg.KempliPosition, model.StrokeExtension); ok {
		for remaining >= 1 {
			notes = append(notes, whole)
			remaining -= 1
		}
	}
	if remaining > 0 {
		if rest, ok := cfg.Table.RestNote(cfg.KempliPosition, model.StrokeExtension, remaining); ok {
			notes = append(notes, rest)
		}
	}
	return model.NewMeasure(cfg.KempliPosition, notes, 0)
}

// lastNoteBefore finds the note logically preceding the beat currently
// being built for position: the last note of the gongan's own previous
// beat, or of prev's last beat when this gongan has no beats yet. The
// returned pointer aliases the owning pass content, so callers can mutate
// the note in place (grace-note stealing does).
func lastNoteBefore(gongan, prev *model.Gongan, position model.Position) *model.Note {
	source := gongan
	if len(gongan.Beats) == 0 {
		source = prev
	}
	if source == nil || len(source.Beats) == 0 {
		return nil
	}
	prevBeat := source.Beats[len(source.Beats)-1]
	measure, ok := prevBeat.Measures[position]
	if !ok {
		return nil
	}
	notes := measure.ForPass(model.DefaultPass)
	if len(notes) == 0 {
		return nil
	}
	return &notes[len(notes)-1]
}

func lastNoteWasSilence(gongan *model.Gongan, position model.Position) bool {
	n := lastNoteBefore(gongan, nil, position)
	return n != nil && n.Stroke == model.StrokeSilence
}

func beatDuration(beat *model.Beat, fallback float64) float64 {
	var durations []float64
	for _, m := range beat.Measures {
		durations = append(durations, m.TotalDuration(model.DefaultPass))
	}
	d := modeOf(durations)
	if d == 0 {
		return fallback
	}
	return d
}

func linkBeat(gongan *model.Gongan, beat *model.Beat) {
	if n := len(gongan.Beats); n > 0 {
		gongan.Beats[n-1].Next = beat
		beat.Prev = gongan.Beats[n-1]
	}
	gongan.Beats = append(gongan.Beats, beat)
}
