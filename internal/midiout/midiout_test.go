package midiout

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

func twoBeatScore() *model.Score {
	beat1 := model.NewBeat(1, 1)
	beat1.Measures[model.PositionPemadePolos] = model.NewMeasure(model.PositionPemadePolos, []model.Note{
		{Position: model.PositionPemadePolos, Stroke: model.StrokeOpen, Duration: 1, MidiNotes: []int{60}, Symbol: "i"},
	}, 1)
	beat1.Duration = 1

	beat2 := model.NewBeat(2, 1)
	beat2.Measures[model.PositionPemadePolos] = model.NewMeasure(model.PositionPemadePolos, []model.Note{
		{Position: model.PositionPemadePolos, Stroke: model.StrokeSilence, Duration: 1, Symbol: "."},
	}, 2)
	beat2.Duration = 1

	beat1.Next = beat2

	gongan := &model.Gongan{ID: 1, Beats: []*model.Beat{beat1, beat2}}
	score := model.NewScore("test")
	score.Gongans = []*model.Gongan{gongan}
	score.InstrumentPositions[model.PositionPemadePolos] = true
	return score
}

func testConfig() Config {
	return Config{
		PPQ:                    96,
		BaseNoteTime:           96,
		InitialTempoBPM:        60,
		InitialVelocity:        90,
		GraceNoteDuration:      0.25,
		GraceNoteTimeThreshold: 0.5,
	}
}

func TestBuildTrackAdvancesTickPastRest(t *testing.T) {
	score := twoBeatScore()
	preset := PresetEntry{Position: model.PositionPemadePolos, Channel: 0, Program: 10}
	tr, err := buildTrack(score, model.PositionPemadePolos, preset, testConfig(), nil)
	if err != nil {
		t.Fatalf("buildTrack: %v", err)
	}
	if tr.endTick != 192 {
		t.Fatalf("endTick = %d, want 192 (one sounding beat + one rest beat at 96 ticks each)", tr.endTick)
	}
	if !tr.haveLastNoteOff {
		t.Fatalf("expected a note-off to have been recorded")
	}
}

func TestBuildTrackSkipsInactivePosition(t *testing.T) {
	score := twoBeatScore()
	preset := PresetEntry{Position: model.PositionGongs}
	tr, err := buildTrack(score, model.PositionGongs, preset, testConfig(), nil)
	if err != nil {
		t.Fatalf("buildTrack: %v", err)
	}
	if tr.endTick != 192 {
		t.Fatalf("endTick = %d, want 192 (silent track still advances by beat duration)", tr.endTick)
	}
	if tr.haveLastNoteOff {
		t.Fatalf("expected no note-off on a position with no measures")
	}
}

func TestEmitOrdersTracksAndSucceeds(t *testing.T) {
	score := twoBeatScore()
	presets := NewPresetTable([]PresetEntry{
		{Position: model.PositionPemadePolos, Channel: 0, Program: 10},
	})
	file, err := Emit(score, presets, testConfig(), nil)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(file.Tracks) != 1 {
		t.Fatalf("len(Tracks) = %d, want 1", len(file.Tracks))
	}
}

func TestEmitRejectsScoreWithNoActivePositions(t *testing.T) {
	score := model.NewScore("empty")
	if _, err := Emit(score, NewPresetTable(nil), testConfig(), nil); err == nil {
		t.Fatalf("expected an error for a score with no active positions")
	}
}

func TestOrderPositionsFollowsCanonicalSequence(t *testing.T) {
	active := map[model.Position]bool{
		model.PositionGongs:       true,
		model.PositionPemadePolos: true,
	}
	ordered := OrderPositions(active)
	if len(ordered) != 2 || ordered[0] != model.PositionPemadePolos || ordered[1] != model.PositionGongs {
		t.Fatalf("unexpected order: %v", ordered)
	}
}

func TestEventRankPutsNoteOffBeforeNoteOn(t *testing.T) {
	off := smf.Message(midi.NoteOff(0, 60))
	on := smf.Message(midi.NoteOn(0, 61, 100))
	if eventRank(off) >= eventRank(on) {
		t.Fatalf("expected note-off to rank before note-on")
	}
}
