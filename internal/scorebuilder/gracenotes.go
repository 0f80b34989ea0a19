package scorebuilder

import "github.com/marcpaelinck/gamelan-notation-sub000/internal/model"

// PlaceGraceNotes resolves grace-note octaves and duration stealing within
// a single measure's note list. A grace note contributes
// zero to total beat duration: it subtracts its own duration first from
// the preceding note's rest_after, then from its duration, clamped at
// zero. Its octave is chosen to minimize the scale-step distance to the
// following melodic note, trying octaves -1, 0, +1 relative to the
// follower.
//
// If the grace note is the first symbol of the measure, previous is the
// measure's logically preceding note (the last note of the prior beat, or
// of the prior gongan's last beat); it may be nil if there is none, in
// which case the grace note instead shortens the note that follows it.
func PlaceGraceNotes(notes []model.Note, previous *model.Note, table *model.NoteTable) []model.Note {
	out := make([]model.Note, len(notes))
	copy(out, notes)

	for i := range out {
		if out[i].Stroke != model.StrokeGraceNote {
			continue
		}
		out[i] = resolveGraceOctave(out[i], out, i, table)

		if i > 0 {
			stealFrom(&out[i-1], out[i].Duration)
		} else if previous != nil {
			stealFrom(previous, out[i].Duration)
		} else if i+1 < len(out) {
			stealFrom(&out[i+1], out[i].Duration)
		}
	}
	return out
}

// stealFrom removes d from n's rest_after first, then its duration,
// clamped at zero.
func stealFrom(n *model.Note, d float64) {
	if n.RestAfter >= d {
		n.RestAfter -= d
		return
	}
	remaining := d - n.RestAfter
	n.RestAfter = 0
	n.Duration -= remaining
	if n.Duration < 0 {
		n.Duration = 0
	}
}

// followingMelodicNote finds the next note in notes after index i whose
// pitch is melodic, skipping further grace notes.
func followingMelodicNote(notes []model.Note, i int) (model.Note, bool) {
	for j := i + 1; j < len(notes); j++ {
		if notes[j].Tone.Pitch.IsMelodic() {
			return notes[j], true
		}
	}
	return model.Note{}, false
}

// resolveGraceOctave picks the octave (among the follower's octave -1, 0,
// +1) that minimizes scale-step distance to the following melodic note,
// re-resolving the grace note against the note table at that octave.
func resolveGraceOctave(grace model.Note, notes []model.Note, i int, table *model.NoteTable) model.Note {
	follower, ok := followingMelodicNote(notes, i)
	if !ok || follower.Tone.Octave == nil || !grace.Tone.Pitch.IsMelodic() {
		return grace
	}
	baseOctave := *follower.Tone.Octave
	bestDist := -1
	bestOctave := baseOctave
	for _, delta := range []int{0, -1, 1} {
		octave := baseOctave + delta
		if _, ok := table.LookupTone(grace.Position, model.NewTone(grace.Tone.Pitch, octave), model.StrokeGraceNote, grace.Duration, grace.RestAfter); !ok {
			continue
		}
		dist := scaleStepDistance(grace.Tone.Pitch, octave, follower.Tone.Pitch, follower.Tone.Octave != nil, baseOctave)
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			bestOctave = octave
		}
	}
	if resolved, ok := table.LookupTone(grace.Position, model.NewTone(grace.Tone.Pitch, bestOctave), model.StrokeGraceNote, grace.Duration, grace.RestAfter); ok {
		return resolved
	}
	return grace
}

// scaleStepDistance measures scale-step distance between two tones,
// counting a full octave as the length of the melodic sequence.
func scaleStepDistance(p1 model.Pitch, oct1 int, p2 model.Pitch, p2HasOctave bool, oct2 int) int {
	const stepsPerOctave = 7 // len(melodicSequence) in internal/model/enums.go
	s1 := p1.ScaleStep() + oct1*stepsPerOctave
	s2 := p2.ScaleStep()
	if p2HasOctave {
		s2 += oct2 * stepsPerOctave
	}
	d := s1 - s2
	if d < 0 {
		d = -d
	}
	return d
}
