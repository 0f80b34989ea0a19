package ruleengine

import (
	"testing"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

func pairTable() *model.NoteTable {
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

func TestSelectRule(t *testing.T) {
	cases := []struct {
		primary, secondary model.Position
		want               Rule
	}{
		{model.PositionPemadePolos, model.PositionPemadeSangsih, ExactKempyung},
		{model.PositionKantilanPolos, model.PositionKantilanSangsih, ExactKempyung},
		{model.PositionReyong1, model.PositionReyong3, Kempyung},
		{model.PositionCalung, model.PositionCalung, SameTone},
		{model.PositionUgal, model.PositionPemadePolos, SamePitchExtendedRange},
	}
	for _, c := range cases {
		if got := SelectRule(c.primary, c.secondary); got != c.want {
			t.Errorf("SelectRule(%s, %s) = %s, want %s", c.primary, c.secondary, got, c.want)
		}
	}
}

func TestApplyExactKempyung(t *testing.T) {
	table := pairTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih
	in := []model.Note{
		{Position: polos, Tone: model.NewTone(model.PitchDong, 1), Stroke: model.StrokeOpen, Duration: 1},
		{Position: polos, Tone: model.NewTone(model.PitchDeng, 1), Stroke: model.StrokeOpen, Duration: 1},
	}
	out, err := Apply(ExactKempyung, polos, sangsih, in, table)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out[0].Tone.Equal(model.NewTone(model.PitchDang, 1)) {
		t.Errorf("kempyung of DONG1 = %s, want DANG1", out[0].Tone)
	}
	if !out[1].Tone.Equal(model.NewTone(model.PitchDing, 2)) {
		t.Errorf("kempyung of DENG1 = %s, want DING2", out[1].Tone)
	}
	if out[0].Position != sangsih {
		t.Errorf("derived note bound to %s, want %s", out[0].Position, sangsih)
	}
}

func TestApplyExactKempyungIsIdentityOnTopTones(t *testing.T) {
	table := pairTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih
	in := []model.Note{
		{Position: polos, Tone: model.NewTone(model.PitchDeng, 2), Stroke: model.StrokeOpen, Duration: 1},
	}
	out, err := Apply(ExactKempyung, polos, sangsih, in, table)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out[0].Tone.Equal(model.NewTone(model.PitchDeng, 2)) {
		t.Errorf("top-of-range tone pairs with itself, got %s", out[0].Tone)
	}
}

func TestApplyCarriesRestsUnchanged(t *testing.T) {
	table := pairTable()
	in := []model.Note{
		{Position: model.PositionPemadePolos, Tone: model.NewTonelessTone(model.PitchNone), Stroke: model.StrokeExtension, Duration: 1},
	}
	out, err := Apply(ExactKempyung, model.PositionPemadePolos, model.PositionPemadeSangsih, in, table)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out[0].Stroke != model.StrokeExtension || out[0].Position != model.PositionPemadeSangsih {
		t.Errorf("rest not carried over: %+v", out[0])
	}
}

func TestDeriveMeasuresFillsUnnotatedSecondary(t *testing.T) {
	table := pairTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih

	beat := model.NewBeat(1, 1)
	beat.Duration = 1
	beat.Measures[polos] = model.NewMeasure(polos, []model.Note{
		{Position: polos, Tone: model.NewTone(model.PitchDong, 1), Stroke: model.StrokeOpen, Duration: 1},
	}, 1)

	gongan := &model.Gongan{
		ID:      1,
		Type:    model.GonganRegular,
		Beats:   []*model.Beat{beat},
		Notated: map[model.Position]bool{polos: true},
	}
	score := model.NewScore("test")
	score.Gongans = []*model.Gongan{gongan}

	pairs := []RulePair{{Primary: polos, Secondary: sangsih}}
	if err := DeriveMeasures(score, pairs, table); err != nil {
		t.Fatalf("DeriveMeasures: %v", err)
	}
	m, ok := beat.Measures[sangsih]
	if !ok {
		t.Fatal("expected a derived sangsih measure")
	}
	notes := m.ForPass(model.DefaultPass)
	if len(notes) != 1 || !notes[0].Tone.Equal(model.NewTone(model.PitchDang, 1)) {
		t.Fatalf("derived measure = %+v, want one DANG1", notes)
	}
}

func TestDeriveMeasuresLeavesNotatedSecondaryAlone(t *testing.T) {
	table := pairTable()
	polos := model.PositionPemadePolos
	sangsih := model.PositionPemadeSangsih

	beat := model.NewBeat(1, 1)
	beat.Duration = 1
	beat.Measures[polos] = model.NewMeasure(polos, []model.Note{
		{Position: polos, Tone: model.NewTone(model.PitchDong, 1), Stroke: model.StrokeOpen, Duration: 1},
	}, 1)
	beat.Measures[sangsih] = model.NewMeasure(sangsih, []model.Note{
		{Position: sangsih, Tone: model.NewTone(model.PitchDing, 1), Stroke: model.StrokeOpen, Duration: 1},
	}, 2)

	gongan := &model.Gongan{
		ID:      1,
		Type:    model.GonganRegular,
		Beats:   []*model.Beat{beat},
		Notated: map[model.Position]bool{polos: true, sangsih: true},
	}
	score := model.NewScore("test")
	score.Gongans = []*model.Gongan{gongan}

	pairs := []RulePair{{Primary: polos, Secondary: sangsih}}
	if err := DeriveMeasures(score, pairs, table); err != nil {
		t.Fatalf("DeriveMeasures: %v", err)
	}
	notes := beat.Measures[sangsih].ForPass(model.DefaultPass)
	if !notes[0].Tone.Equal(model.NewTone(model.PitchDing, 1)) {
		t.Fatalf("notated sangsih measure was overwritten: %+v", notes)
	}
}
