package notationout

import (
	"strings"
	"testing"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/grammar"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

func twoGonganScore() *model.Score {
	pos := model.PositionPemadePolos
	score := model.NewScore("test")
	for g := 1; g <= 2; g++ {
		gongan := &model.Gongan{ID: g, Type: model.GonganRegular}
		beat := model.NewBeat(1, g)
		beat.Duration = 2
		beat.Measures[pos] = model.NewMeasure(pos, []model.Note{
			{Position: pos, Tone: model.NewTone(model.PitchDing, 1), Stroke: model.StrokeOpen, Duration: 1, Symbol: "i"},
			{Position: pos, Tone: model.NewTone(model.PitchDong, 1), Stroke: model.StrokeOpen, Duration: 1, Symbol: "o"},
		}, 1)
		gongan.Beats = []*model.Beat{beat}
		score.Gongans = append(score.Gongans, gongan)
	}
	score.InstrumentPositions[pos] = true
	return score
}

func TestWriteEmitsStaveLinesPerGongan(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, twoGonganScore()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := sb.String()
	want := "pemade_p\ti o\n\npemade_p\ti o\n"
	if got != want {
		t.Fatalf("Write output = %q, want %q", got, want)
	}
}

func TestWriteEmitsMetadataAndComments(t *testing.T) {
	score := twoGonganScore()
	score.Gongans[0].Metadata = []model.MetaData{
		model.TempoMeta{BPM: 60, FirstBeat: 1},
	}
	score.Gongans[0].Comments = []string{"first phrase"}

	var sb strings.Builder
	if err := Write(&sb, score); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := sb.String()
	if !strings.Contains(got, "metadata\t{TEMPO value=60}\n") {
		t.Errorf("missing tempo metadata line in %q", got)
	}
	if !strings.Contains(got, "comment\tfirst phrase\n") {
		t.Errorf("missing comment line in %q", got)
	}
}

func TestWriteSkipsScoreScopedMetadataAfterFirstGongan(t *testing.T) {
	score := twoGonganScore()
	meta := model.GonganMeta{Base: model.Base{Scope: model.ScopeScore}, Type: model.GonganKebyar}
	score.Gongans[0].Metadata = []model.MetaData{meta}
	score.Gongans[1].Metadata = []model.MetaData{meta}

	var sb strings.Builder
	if err := Write(&sb, score); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := sb.String()
	if n := strings.Count(got, "{GONGAN type=KEBYAR, scope=score}"); n != 1 {
		t.Fatalf("score-scoped metadata written %d times, want 1:\n%s", n, got)
	}
}

func TestWriteEmitsPassOverrideLines(t *testing.T) {
	score := twoGonganScore()
	pos := model.PositionPemadePolos
	beat := score.Gongans[0].Beats[0]
	beat.Measures[pos].SetPass(2, []model.Note{
		{Position: pos, Tone: model.NewTone(model.PitchDing, 1), Stroke: model.StrokeOpen, Duration: 1, Symbol: "i"},
	}, 1)

	var sb strings.Builder
	if err := Write(&sb, score); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := sb.String()
	if !strings.Contains(got, "pemade_p\ti o\n") {
		t.Errorf("missing default-pass stave line in %q", got)
	}
	if !strings.Contains(got, "pemade_p:2\ti\n") {
		t.Errorf("missing pass-2 stave line in %q", got)
	}
}

func TestWriteRoundTripsThroughParser(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, twoGonganScore()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, errs := grammar.Parse(sb.String())
	if len(errs) != 0 {
		t.Fatalf("re-parsing emitted notation: %v", errs)
	}
	if len(parsed.Gongans) != 2 {
		t.Fatalf("expected 2 gongans after round trip, got %d", len(parsed.Gongans))
	}
	for _, g := range parsed.Gongans {
		if len(g.Staves) != 1 {
			t.Fatalf("expected 1 stave, got %d", len(g.Staves))
		}
		stave := g.Staves[0]
		if stave.PositionTag != "pemade_p" {
			t.Errorf("unexpected tag %q", stave.PositionTag)
		}
		if len(stave.Measures) != 1 || len(stave.Measures[0]) != 2 ||
			stave.Measures[0][0] != "i" || stave.Measures[0][1] != "o" {
			t.Errorf("unexpected measures after round trip: %v", stave.Measures)
		}
	}
}
