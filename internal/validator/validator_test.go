package validator

import (
	"testing"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

func gangsaTable() *model.NoteTable {
	var notes []model.Note
	for _, pos := range []model.Position{model.PositionPemadePolos, model.PositionPemadeSangsih} {
		for _, t := range []struct {
			pitch  model.Pitch
			octave int
		}{
			{model.PitchDing, 1}, {model.PitchDong, 1}, {model.PitchDeng, 1},
			{model.PitchDung, 1}, {model.PitchDang, 1},
			{model.PitchDing, 2}, {model.PitchDong, 2}, {model.PitchDeng, 2},
		} {
			notes = append(notes, model.Note{
				Position: pos,
				Tone:     model.NewTone(t.pitch, t.octave),
				Stroke:   model.StrokeOpen,
				Duration: 1,
			})
		}
		notes = append(notes, model.Note{
			Position: pos,
			Tone:     model.NewTonelessTone(model.PitchNone),
			Stroke:   model.StrokeExtension,
			Duration: 1,
		})
	}
	return model.NewNoteTable(notes)
}

func openNote(pos model.Position, pitch model.Pitch, octave int) model.Note {
	return model.Note{Position: pos, Tone: model.NewTone(pitch, octave), Stroke: model.StrokeOpen, Duration: 1}
}

func scoreWithBeat(beat *model.Beat, gonganType model.GonganType) *model.Score {
	gongan := &model.Gongan{ID: beat.GonganID, Type: gonganType, Beats: []*model.Beat{beat}}
	score := model.NewScore("test")
	score.Gongans = []*model.Gongan{gongan}
	return score
}

func TestCheckBeatLengthRejectsNonPowerOfTwo(t *testing.T) {
	beat := model.NewBeat(1, 1)
	beat.Duration = 3
	r := CheckBeatLength(scoreWithBeat(beat, model.GonganRegular))
	if len(r.Invalid) != 1 {
		t.Fatalf("expected 1 invalid beat, got %v", r.Invalid)
	}
}

func TestCheckBeatLengthSkipsKebyarGongan(t *testing.T) {
	beat := model.NewBeat(1, 1)
	beat.Duration = 3
	r := CheckBeatLength(scoreWithBeat(beat, model.GonganKebyar))
	if len(r.Invalid) != 0 {
		t.Fatalf("expected kebyar gongan exempt, got %v", r.Invalid)
	}
}

func TestCheckBeatLengthHonorsIgnoreOverride(t *testing.T) {
	beat := model.NewBeat(1, 1)
	beat.Duration = 3
	beat.ValidationIgnore[model.ValidationBeatDuration] = true
	r := CheckBeatLength(scoreWithBeat(beat, model.GonganRegular))
	if len(r.Invalid) != 0 || len(r.Ignored) != 1 {
		t.Fatalf("expected override to suppress the check, got %+v", r)
	}
}

func TestCheckEqualMeasureLengthAutocorrectsShorthand(t *testing.T) {
	table := gangsaTable()
	pos := model.PositionPemadePolos
	beat := model.NewBeat(1, 1)
	beat.Duration = 4
	beat.Measures[pos] = model.NewMeasure(pos, []model.Note{openNote(pos, model.PitchDong, 1)}, 1)

	shorthand := map[model.Position]bool{pos: true}
	r := CheckEqualMeasureLength(scoreWithBeat(beat, model.GonganRegular), table, shorthand, false, true)
	if len(r.Invalid) != 0 {
		t.Fatalf("expected autocorrect to fix the measure, got %v", r.Invalid)
	}
	if len(r.Corrected) != 1 {
		t.Fatalf("expected 1 corrected entry, got %v", r.Corrected)
	}
	if got := beat.Measures[pos].TotalDuration(model.DefaultPass); got != 4 {
		t.Fatalf("padded measure duration = %v, want 4", got)
	}
}

func TestCheckEqualMeasureLengthReportsNonShorthand(t *testing.T) {
	table := gangsaTable()
	pos := model.PositionPemadePolos
	beat := model.NewBeat(1, 1)
	beat.Duration = 4
	beat.Measures[pos] = model.NewMeasure(pos, []model.Note{openNote(pos, model.PitchDong, 1)}, 1)

	r := CheckEqualMeasureLength(scoreWithBeat(beat, model.GonganRegular), table, map[model.Position]bool{}, false, true)
	if len(r.Invalid) != 1 {
		t.Fatalf("expected 1 invalid measure, got %v", r.Invalid)
	}
}

func TestCheckInRangeReportsUnknownTone(t *testing.T) {
	table := gangsaTable()
	pos := model.PositionPemadePolos
	beat := model.NewBeat(1, 1)
	beat.Duration = 1
	beat.Measures[pos] = model.NewMeasure(pos, []model.Note{openNote(pos, model.PitchDang, 3)}, 1)

	r := CheckInRange(scoreWithBeat(beat, model.GonganRegular), table)
	if len(r.Invalid) != 1 {
		t.Fatalf("expected 1 out-of-range note, got %v", r.Invalid)
	}
}

func TestCheckKempyungAutocorrectsUnison(t *testing.T) {
	table := gangsaTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih

	beat := model.NewBeat(1, 1)
	beat.Duration = 2
	beat.Measures[polos] = model.NewMeasure(polos, []model.Note{
		openNote(polos, model.PitchDong, 1), openNote(polos, model.PitchDeng, 1),
	}, 1)
	beat.Measures[sangsih] = model.NewMeasure(sangsih, []model.Note{
		openNote(sangsih, model.PitchDong, 1), openNote(sangsih, model.PitchDeng, 1),
	}, 2)

	pairs := []PolosSangsih{{Polos: polos, Sangsih: sangsih}}
	r := CheckKempyung(scoreWithBeat(beat, model.GonganRegular), pairs, table, true)
	if len(r.Invalid) != 0 {
		t.Fatalf("expected autocorrect to fix kempyung, got %v", r.Invalid)
	}
	got := beat.Measures[sangsih].ForPass(model.DefaultPass)
	if !got[0].Tone.Equal(model.NewTone(model.PitchDang, 1)) {
		t.Errorf("kempyung of DONG1 = %s, want DANG1", got[0].Tone)
	}
	if !got[1].Tone.Equal(model.NewTone(model.PitchDing, 2)) {
		t.Errorf("kempyung of DENG1 = %s, want DING2", got[1].Tone)
	}

	// Autocorrected form validates clean on a second run.
	r2 := CheckKempyung(scoreWithBeat(beat, model.GonganRegular), pairs, table, false)
	if len(r2.Invalid) != 0 {
		t.Fatalf("expected corrected score to re-validate, got %v", r2.Invalid)
	}
}

func TestCheckKempyungReportsMismatchWithoutAutocorrect(t *testing.T) {
	table := gangsaTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih

	beat := model.NewBeat(1, 1)
	beat.Duration = 1
	beat.Measures[polos] = model.NewMeasure(polos, []model.Note{openNote(polos, model.PitchDong, 1)}, 1)
	beat.Measures[sangsih] = model.NewMeasure(sangsih, []model.Note{openNote(sangsih, model.PitchDong, 1)}, 2)

	pairs := []PolosSangsih{{Polos: polos, Sangsih: sangsih}}
	r := CheckKempyung(scoreWithBeat(beat, model.GonganRegular), pairs, table, false)
	if len(r.Invalid) != 1 {
		t.Fatalf("expected 1 kempyung mismatch, got %v", r.Invalid)
	}
}

func TestCheckKempyungSkipsPolyphonicMeasures(t *testing.T) {
	table := gangsaTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih

	polosNote := openNote(polos, model.PitchDong, 1)
	sangsihNote := openNote(sangsih, model.PitchDing, 1)
	sangsihNote.Duration = 0.5
	sangsihNote.RestAfter = 0.5

	beat := model.NewBeat(1, 1)
	beat.Duration = 1
	beat.Measures[polos] = model.NewMeasure(polos, []model.Note{polosNote}, 1)
	beat.Measures[sangsih] = model.NewMeasure(sangsih, []model.Note{sangsihNote}, 2)

	pairs := []PolosSangsih{{Polos: polos, Sangsih: sangsih}}
	r := CheckKempyung(scoreWithBeat(beat, model.GonganRegular), pairs, table, false)
	if len(r.Invalid) != 0 {
		t.Fatalf("expected non-homophonic pair skipped, got %v", r.Invalid)
	}
}

func TestValidateRunsAllFourChecks(t *testing.T) {
	table := gangsaTable()
	pos := model.PositionPemadePolos
	beat := model.NewBeat(1, 1)
	beat.Duration = 4
	beat.Measures[pos] = model.NewMeasure(pos, []model.Note{openNote(pos, model.PitchDong, 1)}, 1)

	report := Validate(scoreWithBeat(beat, model.GonganRegular), table, Config{
		ShorthandPositions: map[model.Position]bool{pos: true},
		Autocorrect:        true,
	})
	if report.ErrorCount() != 0 {
		t.Fatalf("expected a clean report after autocorrect, got %d errors", report.ErrorCount())
	}
	if len(report.MeasureLength.Corrected) != 1 {
		t.Fatalf("expected measure-length autocorrection recorded, got %+v", report.MeasureLength)
	}
}
