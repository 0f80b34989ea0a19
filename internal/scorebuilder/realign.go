package scorebuilder

import "github.com/marcpaelinck/gamelan-notation-sub000/internal/model"

// LinkScore threads Prev/Next across gongan boundaries so the whole score
// is one continuous beat chain, not just one chain per gongan (BuildGongan
// only links beats within the gongan it is building).
func LinkScore(score *model.Score) {
	var prev *model.Beat
	for _, g := range score.Gongans {
		for _, b := range g.Beats {
			b.Prev = prev
			if prev != nil {
				prev.Next = b
			}
			prev = b
		}
	}
}

// MoveBeatToStart implements the "beat at end" realignment: when the
// source notation places a phrase's pickup content at the end of a beat
// rather than the start of the next one, shift one duration unit from the
// tail of every beat into the head of its successor, cascading from the
// end of the score back to the start. If the score's last gongan still
// carries a kempli beat, an extra trailing gongan/beat is appended first
// so the final shifted unit has somewhere to land. The score's very first
// beat, which has nothing before it to borrow from, gains a leading
// SILENCE note per position instead, and its Duration is recomputed
// afterward.
//
// Runs once, globally, before gongan metadata (GONGAN/OCTAVATE/SUPPRESS/
// TEMPO/DYNAMICS) is applied and before SEQUENCE gotos are installed.
func MoveBeatToStart(score *model.Score, table *model.NoteTable) {
	if len(score.Gongans) == 0 {
		return
	}
	last := score.Gongans[len(score.Gongans)-1]
	if hasKempliBeatMeta(last) && len(last.Beats) > 0 {
		newGongan := &model.Gongan{ID: last.ID + 1, Type: model.GonganRegular}
		lastBeat := last.Beats[len(last.Beats)-1]
		newBeat := model.NewBeat(1, newGongan.ID)
		newBeat.Duration = 0
		newBeat.Prev = lastBeat
		lastBeat.Next = newBeat
		newGongan.Beats = append(newGongan.Beats, newBeat)
		score.Gongans = append(score.Gongans, newGongan)
	}

	beats := score.AllBeats()
	if len(beats) == 0 {
		return
	}
	beat := beats[len(beats)-1]
	for beat.Prev != nil {
		prevBeat := beat.Prev
		for position, measure := range prevBeat.Measures {
			content, ok := measure.Passes[model.DefaultPass]
			if !ok || len(content.Notes) == 0 {
				continue
			}
			moved := popTailUnit(content)
			if len(moved) == 0 {
				continue
			}
			target, ok := beat.Measures[position]
			if !ok {
				target = &model.Measure{Position: position, Passes: map[model.Pass]*model.PassContent{}}
				beat.Measures[position] = target
			}
			tc, ok := target.Passes[model.DefaultPass]
			if !ok {
				tc = &model.PassContent{}
				target.Passes[model.DefaultPass] = tc
			}
			tc.Notes = append(append([]model.Note{}, moved...), tc.Notes...)
		}
		beat.Duration = beatDuration(beat, beat.Duration)
		beat = beat.Prev
	}

	first := beats[0]
	for position, measure := range first.Measures {
		content, ok := measure.Passes[model.DefaultPass]
		if !ok {
			continue
		}
		silence, ok := table.WholeRestNote(position, model.StrokeSilence)
		if !ok {
			continue
		}
		content.Notes = append([]model.Note{silence}, content.Notes...)
	}
	first.Duration = beatDuration(first, first.Duration)
}

// popTailUnit removes and returns notes from the end of content, stopping
// once their combined total_duration reaches one unit.
func popTailUnit(content *model.PassContent) []model.Note {
	var moved []model.Note
	var sum float64
	for sum < 1 && len(content.Notes) > 0 {
		n := content.Notes[len(content.Notes)-1]
		content.Notes = content.Notes[:len(content.Notes)-1]
		moved = append([]model.Note{n}, moved...)
		sum += n.TotalDuration()
	}
	return moved
}

// hasKempliBeatMeta reads a gongan's still-unapplied metadata directly
// (GonganMeta/KempliMeta), since MoveBeatToStart runs before
// ApplyGonganMetadata has had a chance to set Beat.HasKempliBeat or
// Gongan.Type.
func hasKempliBeatMeta(g *model.Gongan) bool {
	status := true
	gType := g.Type
	for _, md := range g.Metadata {
		switch m := md.(type) {
		case model.KempliMeta:
			status = m.Status
		case model.GonganMeta:
			gType = m.Type
		}
	}
	return status && gType != model.GonganKebyar && gType != model.GonganGineman
}
