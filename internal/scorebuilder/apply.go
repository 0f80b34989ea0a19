package scorebuilder

import "github.com/marcpaelinck/gamelan-notation-sub000/internal/model"

// ApplyGonganMetadata installs the beat-affecting metadata already bound to
// a gongan (GONGAN, OCTAVATE, SUPPRESS, WAIT, REPEAT, TEMPO, DYNAMICS,
// VALIDATION) onto its beats. LABEL/GOTO were already resolved into the
// score's flow graph by internal/metadata; SEQUENCE is resolved at the
// score level once every gongan has beats (see ResolveSequences).
func ApplyGonganMetadata(gongan *model.Gongan, table *model.NoteTable) error {
	for _, md := range gongan.Metadata {
		switch m := md.(type) {
		case model.GonganMeta:
			gongan.Type = m.Type
		case model.OctavateMeta:
			if err := octavate(gongan, m, table); err != nil {
				return err
			}
		case model.SuppressMeta:
			suppress(gongan, m, table)
		case model.WaitMeta:
			applyWait(gongan, m, table)
		case model.RepeatMeta:
			applyRepeat(gongan, m)
		case model.TempoMeta:
			applyTempo(gongan, m)
		case model.DynamicsMeta:
			applyDynamics(gongan, m)
		case model.ValidationMeta:
			applyValidationIgnore(gongan, m)
		case model.KempliMeta:
			targets := gongan.Beats
			if len(m.Beats) > 0 {
				targets = nil
				for _, idx := range m.Beats {
					if idx >= 1 && idx <= len(gongan.Beats) {
						targets = append(targets, gongan.Beats[idx-1])
					}
				}
			}
			for _, beat := range targets {
				beat.HasKempliBeat = m.Status
			}
		}
	}
	return nil
}

// octavate shifts every melodic note of one position, across every beat and
// pass of the gongan, by a whole number of octaves, re-resolving each
// against the note table so stroke/duration-dependent fields stay correct.
func octavate(gongan *model.Gongan, m model.OctavateMeta, table *model.NoteTable) error {
	for _, beat := range gongan.Beats {
		measure, ok := beat.Measures[m.Position]
		if !ok {
			continue
		}
		for pass, content := range measure.Passes {
			shifted := make([]model.Note, len(content.Notes))
			for i, n := range content.Notes {
				if n.Tone.Octave == nil {
					shifted[i] = n
					continue
				}
				octave := *n.Tone.Octave + m.Octaves
				resolved, ok := table.LookupTone(m.Position, model.NewTone(n.Tone.Pitch, octave), n.Stroke, n.Duration, n.RestAfter)
				if !ok {
					return &RangeError{
						Position: string(m.Position),
						Gongan:   gongan.ID,
						Beat:     beat.ID,
						Detail:   n.Tone.String(),
					}
				}
				shifted[i] = resolved
			}
			measure.Passes[pass] = &model.PassContent{Notes: shifted, Line: content.Line}
		}
	}
	return nil
}

// suppress replaces the listed positions' measures with EXTENSION rests
// spanning the beat's duration, restricted to the listed beats and passes;
// an empty Beats/Passes list means every beat/pass of the gongan.
func suppress(gongan *model.Gongan, m model.SuppressMeta, table *model.NoteTable) {
	suppressed := map[model.Position]bool{}
	for _, p := range m.Positions {
		suppressed[p] = true
	}
	targets := gongan.Beats
	if len(m.Beats) > 0 {
		targets = nil
		for _, idx := range m.Beats {
			if idx >= 1 && idx <= len(gongan.Beats) {
				targets = append(targets, gongan.Beats[idx-1])
			}
		}
	}
	for _, beat := range targets {
		for position, measure := range beat.Measures {
			if !suppressed[position] {
				continue
			}
			rest, ok := table.RestNote(position, model.StrokeExtension, beat.Duration)
			if !ok {
				continue
			}
			if len(m.Passes) == 0 {
				beat.Measures[position] = model.NewMeasure(position, []model.Note{rest}, 0)
				continue
			}
			for _, pass := range m.Passes {
				measure.SetPass(pass, []model.Note{rest}, 0)
			}
		}
	}
}

// applyWait appends a trailing beat of round(4*seconds) duration, filled
// with EXTENSION rests for every position already present in the gongan,
// with its kempli pulse and beat-length check both switched off.
func applyWait(gongan *model.Gongan, m model.WaitMeta, table *model.NoteTable) {
	duration := roundHalfAwayFromZero(4 * m.Seconds)
	if duration <= 0 || len(gongan.Beats) == 0 {
		return
	}
	last := gongan.Beats[len(gongan.Beats)-1]

	newBeat := model.NewBeat(last.ID+1, gongan.ID)
	newBeat.HasKempliBeat = false
	newBeat.Duration = duration
	newBeat.ValidationIgnore[model.ValidationBeatDuration] = true
	for position := range last.Measures {
		rest, ok := wholeDurationRest(table, position, duration)
		if !ok {
			continue
		}
		newBeat.Measures[position] = model.NewMeasure(position, rest, 0)
	}
	newBeat.Prev = last
	newBeat.Next = last.Next
	if last.Next != nil {
		last.Next.Prev = newBeat
	}
	last.Next = newBeat
	gongan.Beats = append(gongan.Beats, newBeat)
}

// wholeDurationRest builds the EXTENSION rest sequence spanning duration
// beats, a whole rest per unit plus a final fractional rest if needed.
func wholeDurationRest(table *model.NoteTable, position model.Position, duration float64) ([]model.Note, bool) {
	var notes []model.Note
	remaining := duration
	if whole, ok := table.WholeRestNote(position, model.StrokeExtension); ok {
		for remaining >= 1 {
			notes = append(notes, whole)
			remaining -= 1
		}
	}
	if remaining > 0 {
		if rest, ok := table.RestNote(position, model.StrokeExtension, remaining); ok {
			notes = append(notes, rest)
		}
	}
	return notes, len(notes) > 0
}

// applyRepeat attaches a Repeat record to the gongan's last beat, looping
// back to its first beat a fixed number of times.
func applyRepeat(gongan *model.Gongan, m model.RepeatMeta) {
	if len(gongan.Beats) == 0 {
		return
	}
	last := gongan.Beats[len(gongan.Beats)-1]
	last.Repeat = &model.Repeat{Goto: gongan.Beats[0], Countdown: m.Count}
}

// applyTempo schedules a tempo change at the configured first beat.
func applyTempo(gongan *model.Gongan, m model.TempoMeta) {
	first := m.FirstBeat
	if first < 1 {
		first = 1
	}
	if first > len(gongan.Beats) {
		return
	}
	beat := gongan.Beats[first-1]
	beat.ScheduleChange(model.ChangeTempo, model.DefaultPass, &model.Change{
		Kind:     model.ChangeTempo,
		NewValue: m.BPM,
		Steps:    m.Steps,
	})
}

// applyDynamics schedules a velocity change for the listed positions
// starting at the configured first beat.
func applyDynamics(gongan *model.Gongan, m model.DynamicsMeta) {
	first := m.FirstBeat
	if first < 1 {
		first = 1
	}
	if first > len(gongan.Beats) {
		return
	}
	beat := gongan.Beats[first-1]
	beat.ScheduleChange(model.ChangeDynamics, model.DefaultPass, &model.Change{
		Kind:      model.ChangeDynamics,
		NewValue:  m.Level.Velocity(),
		Steps:     m.Steps,
		Positions: m.Positions,
	})
}

// applyValidationIgnore marks the checks to skip on the listed beats (or
// every beat of the gongan, if none were listed).
func applyValidationIgnore(gongan *model.Gongan, m model.ValidationMeta) {
	targets := gongan.Beats
	if len(m.Beats) > 0 {
		targets = nil
		for _, idx := range m.Beats {
			if idx >= 1 && idx <= len(gongan.Beats) {
				targets = append(targets, gongan.Beats[idx-1])
			}
		}
	}
	for _, beat := range targets {
		for _, prop := range m.Properties {
			beat.ValidationIgnore[prop] = true
		}
	}
}

// InjectKempliBeats installs the default kempli stroke on every beat of a
// regular gongan that still lacks one. It runs after metadata application
// and SEQUENCE resolution so a gongan retyped to KEBYAR/GINEMAN is
// correctly excluded.
func InjectKempliBeats(score *model.Score, cfg BuildConfig) {
	if cfg.KempliPosition == "" {
		return
	}
	for _, gongan := range score.Gongans {
		if gongan.Type != model.GonganRegular {
			continue
		}
		for _, beat := range gongan.Beats {
			if !beat.HasKempliBeat {
				continue
			}
			if _, present := beat.Measures[cfg.KempliPosition]; present {
				continue
			}
			beat.Measures[cfg.KempliPosition] = kempliMeasure(cfg, beat.Duration)
		}
	}
}
