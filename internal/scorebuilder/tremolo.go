package scorebuilder

import "github.com/marcpaelinck/gamelan-notation-sub000/internal/model"

// TremoloConfig carries the settings tremolo expansion needs: how many
// equal subdivisions a plain tremolo note produces per quarter note, and
// the fixed duration/velocity pattern an accelerating tremolo follows.
type TremoloConfig struct {
	NotesPerQuarter      int
	AcceleratingPattern  []float64
	AcceleratingVelocity []int
}

// ExpandTremolo replaces a single TREMOLO or TREMOLO_ACCELERATING note
// with its subdivided sequence, in place within a measure's note list.
// Plain TREMOLO subdivides the parent duration into N equal parts, N =
// round(duration * notes_per_quarter). TREMOLO_ACCELERATING follows the
// configured duration/velocity pattern; when the following note in the
// measure is also accelerating-tremolo-marked, the two alternate pitches
// across the pattern.
func ExpandTremolo(notes []model.Note, cfg TremoloConfig, table *model.NoteTable) []model.Note {
	var out []model.Note
	i := 0
	for i < len(notes) {
		n := notes[i]
		switch n.Stroke {
		case model.StrokeTremolo:
			out = append(out, expandPlainTremolo(n, cfg, table)...)
			i++
		case model.StrokeTremoloAccelerating:
			if i+1 < len(notes) && notes[i+1].Stroke == model.StrokeTremoloAccelerating {
				out = append(out, expandAlternatingTremolo(n, notes[i+1], cfg, table)...)
				i += 2
			} else {
				out = append(out, expandAcceleratingTremolo(n, cfg, table)...)
				i++
			}
		default:
			out = append(out, n)
			i++
		}
	}
	return out
}

func expandPlainTremolo(n model.Note, cfg TremoloConfig, table *model.NoteTable) []model.Note {
	count := int(roundHalfAwayFromZero(n.Duration * float64(cfg.NotesPerQuarter)))
	if count < 1 {
		count = 1
	}
	sub := n.Duration / float64(count)
	result := make([]model.Note, count)
	for i := range result {
		note := n
		note.Stroke = model.StrokeOpen
		note.Duration = sub
		note.RestAfter = 0
		if resolved, ok := table.LookupTone(n.Position, n.Tone, model.StrokeOpen, sub, 0); ok {
			note = resolved
		}
		result[i] = note
	}
	result[count-1].RestAfter = n.RestAfter
	return result
}

func expandAcceleratingTremolo(n model.Note, cfg TremoloConfig, table *model.NoteTable) []model.Note {
	if len(cfg.AcceleratingPattern) == 0 {
		return []model.Note{n}
	}
	result := make([]model.Note, len(cfg.AcceleratingPattern))
	for i, dur := range cfg.AcceleratingPattern {
		note := n
		note.Stroke = model.StrokeOpen
		note.Duration = dur
		note.RestAfter = 0
		if i < len(cfg.AcceleratingVelocity) {
			note.Velocity = cfg.AcceleratingVelocity[i]
		}
		if resolved, ok := table.LookupTone(n.Position, n.Tone, model.StrokeOpen, dur, 0); ok {
			resolved.Velocity = note.Velocity
			note = resolved
		}
		result[i] = note
	}
	result[len(result)-1].RestAfter = n.RestAfter
	return result
}

func expandAlternatingTremolo(a, b model.Note, cfg TremoloConfig, table *model.NoteTable) []model.Note {
	if len(cfg.AcceleratingPattern) == 0 {
		return []model.Note{a, b}
	}
	result := make([]model.Note, len(cfg.AcceleratingPattern))
	for i, dur := range cfg.AcceleratingPattern {
		src := a
		if i%2 == 1 {
			src = b
		}
		note := src
		note.Stroke = model.StrokeOpen
		note.Duration = dur
		note.RestAfter = 0
		if i < len(cfg.AcceleratingVelocity) {
			note.Velocity = cfg.AcceleratingVelocity[i]
		}
		if resolved, ok := table.LookupTone(src.Position, src.Tone, model.StrokeOpen, dur, 0); ok {
			resolved.Velocity = note.Velocity
			note = resolved
		}
		result[i] = note
	}
	result[len(result)-1].RestAfter = b.RestAfter
	return result
}

func roundHalfAwayFromZero(f float64) float64 {
	if f < 0 {
		return -roundHalfAwayFromZero(-f)
	}
	i := float64(int64(f))
	if f-i >= 0.5 {
		return i + 1
	}
	return i
}
