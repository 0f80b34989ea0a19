package scorebuilder

import (
	"testing"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tagresolver"
)

func octave(o int) *int { return &o }

func fixtureTable() *model.NoteTable {
	pos := model.PositionPemadePolos
	notes := []model.Note{
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(0)}, Stroke: model.StrokeOpen, Duration: 1, Symbol: "i"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDong, Octave: octave(0)}, Stroke: model.StrokeOpen, Duration: 1, Symbol: "o"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(1)}, Stroke: model.StrokeOpen, Duration: 1, Symbol: "I"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(-1)}, Stroke: model.StrokeOpen, Duration: 1, Symbol: "e"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(0)}, Stroke: model.StrokeOpen, Duration: 0.5, Symbol: "i,"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(1)}, Stroke: model.StrokeGraceNote, Duration: 0.25, Symbol: "xI"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(-1)}, Stroke: model.StrokeGraceNote, Duration: 0.25, Symbol: "xe"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(0)}, Stroke: model.StrokeGraceNote, Duration: 0.25, Symbol: "xi"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchDing, Octave: octave(0)}, Stroke: model.StrokeMuted, Duration: 0.5, Symbol: "i?_"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchNone}, Stroke: model.StrokeExtension, Duration: 1, Symbol: "-"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchNone}, Stroke: model.StrokeExtension, Duration: 0.5, Symbol: "-,"},
		{Position: pos, Tone: model.Tone{Pitch: model.PitchNone}, Stroke: model.StrokeSilence, Duration: 1, Symbol: "."},
	}
	return model.NewNoteTable(notes)
}

func TestCastTokenGreedyMatch(t *testing.T) {
	table := fixtureTable()
	notes, err := CastToken("iI", model.PositionPemadePolos, table)
	if err != nil {
		t.Fatalf("CastToken: %v", err)
	}
	if len(notes) != 2 || notes[0].Symbol != "i" || notes[1].Symbol != "I" {
		t.Fatalf("unexpected cast result: %+v", notes)
	}
}

func TestCastTokenCanonicalizesModifierOrder(t *testing.T) {
	table := fixtureTable()
	for _, token := range []string{"i?_", "i_?"} {
		notes, err := CastToken(token, model.PositionPemadePolos, table)
		if err != nil {
			t.Fatalf("CastToken(%q): %v", token, err)
		}
		if len(notes) != 1 {
			t.Fatalf("CastToken(%q): expected 1 note, got %d", token, len(notes))
		}
		if notes[0].Stroke != model.StrokeMuted || notes[0].Duration != 0.5 {
			t.Errorf("CastToken(%q) = %+v, want the muted half-note row", token, notes[0])
		}
	}
}

func TestCastTokenUnrecognizedSymbol(t *testing.T) {
	table := fixtureTable()
	if _, err := CastToken("q", model.PositionPemadePolos, table); err == nil {
		t.Fatal("expected error for unrecognized symbol")
	}
}

func TestExpandTremoloPlain(t *testing.T) {
	table := fixtureTable()
	n := model.Note{Position: model.PositionPemadePolos, Tone: model.NewTone(model.PitchDing, 0), Stroke: model.StrokeTremolo, Duration: 1, RestAfter: 0}
	out := ExpandTremolo([]model.Note{n}, TremoloConfig{NotesPerQuarter: 2}, table)
	if len(out) != 2 {
		t.Fatalf("expected 2 subdivisions, got %d", len(out))
	}
	for _, note := range out {
		if note.Stroke != model.StrokeOpen {
			t.Errorf("expected expanded tremolo notes to be OPEN, got %s", note.Stroke)
		}
		if note.Duration != 0.5 {
			t.Errorf("expected duration 0.5, got %v", note.Duration)
		}
	}
}

func TestPlaceGraceNotesStealsFromPrevious(t *testing.T) {
	table := fixtureTable()
	prev := model.Note{Position: model.PositionPemadePolos, Tone: model.NewTone(model.PitchDong, 0), Stroke: model.StrokeOpen, Duration: 1, RestAfter: 0.5}
	grace := model.Note{Position: model.PositionPemadePolos, Tone: model.NewTone(model.PitchDing, 0), Stroke: model.StrokeGraceNote, Duration: 0.25}
	follower := model.Note{Position: model.PositionPemadePolos, Tone: model.NewTone(model.PitchDing, 1), Stroke: model.StrokeOpen, Duration: 1}

	out := PlaceGraceNotes([]model.Note{grace, follower}, &prev, table)
	if len(out) != 2 {
		t.Fatalf("expected grace note preserved in output, got %d notes", len(out))
	}
	if prev.RestAfter != 0.25 {
		t.Errorf("expected prev.RestAfter reduced to 0.25, got %v", prev.RestAfter)
	}
	if out[0].Tone.Octave == nil || *out[0].Tone.Octave != 1 {
		t.Errorf("expected grace note re-resolved to octave 1 (closest to follower), got %+v", out[0].Tone)
	}
}

func TestPlaceGraceNotesStealsFromFollowingWhenFirstOfScore(t *testing.T) {
	table := fixtureTable()
	grace := model.Note{Position: model.PositionPemadePolos, Tone: model.NewTone(model.PitchDing, 0), Stroke: model.StrokeGraceNote, Duration: 0.25}
	follower := model.Note{Position: model.PositionPemadePolos, Tone: model.NewTone(model.PitchDing, 0), Stroke: model.StrokeOpen, Duration: 1}

	out := PlaceGraceNotes([]model.Note{grace, follower}, nil, table)
	if out[1].Duration != 0.75 {
		t.Errorf("expected following note shortened to 0.75, got %v", out[1].Duration)
	}
}

func TestBuildGonganGraceNoteStealsFromPreviousGongan(t *testing.T) {
	table := fixtureTable()
	pos := model.PositionPemadePolos

	prev := &model.Gongan{ID: 1, Type: model.GonganRegular}
	prevBeat := model.NewBeat(1, 1)
	prevBeat.Measures[pos] = model.NewMeasure(pos, []model.Note{
		{Position: pos, Tone: model.NewTone(model.PitchDong, 0), Stroke: model.StrokeOpen, Duration: 1, RestAfter: 0.5, Symbol: "o"},
	}, 1)
	prev.Beats = []*model.Beat{prevBeat}

	resolved := []tagresolver.ResolvedStave{
		{Position: pos, Measures: [][]string{{"xi", "i"}}, Line: 3},
	}
	cfg := BuildConfig{Table: table, ShorthandPositions: map[model.Position]bool{}}
	if _, err := BuildGongan(2, resolved, cfg, map[model.Position]bool{pos: true}, prev); err != nil {
		t.Fatalf("BuildGongan: %v", err)
	}

	got := prevBeat.Measures[pos].ForPass(model.DefaultPass)
	if got[0].RestAfter != 0.25 {
		t.Errorf("previous gongan's last note rest_after = %v, want 0.25 (0.5 minus the grace duration)", got[0].RestAfter)
	}
}

func TestBuildGonganWithoutStavesHasNoBeats(t *testing.T) {
	table := fixtureTable()
	cfg := BuildConfig{Table: table, ShorthandPositions: map[model.Position]bool{}}
	active := map[model.Position]bool{model.PositionPemadePolos: true, model.PositionKantilanPolos: true}

	gongan, err := BuildGongan(1, nil, cfg, active, nil)
	if err != nil {
		t.Fatalf("BuildGongan: %v", err)
	}
	if len(gongan.Beats) != 0 {
		t.Fatalf("expected no beats for a gongan with no staves, got %d", len(gongan.Beats))
	}
}

func TestModeOfPrefersMostFrequent(t *testing.T) {
	if got := modeOf([]float64{1, 1, 2}); got != 1 {
		t.Errorf("expected mode 1, got %v", got)
	}
	if got := modeOf([]float64{1, 2, 2}); got != 2 {
		t.Errorf("expected mode 2, got %v", got)
	}
}

func TestNextUnusedPassSkipsClaimed(t *testing.T) {
	beat := model.NewBeat(1, 1)
	beat.Goto[model.Pass(1)] = model.NewBeat(2, 1)
	if got := nextUnusedPass(beat); got != model.Pass(2) {
		t.Errorf("expected next unused pass 2, got %v", got)
	}
}
