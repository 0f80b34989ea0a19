package metadata

import (
	"errors"
	"testing"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/grammar"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

func TestBindTempo(t *testing.T) {
	raw := []grammar.RawMetadata{
		{Keyword: "TEMPO", Params: map[string]string{"value": "60"}, ListParams: map[string][]string{}},
	}
	out, err := Bind(1, raw, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
	tm, ok := out[0].(model.TempoMeta)
	if !ok {
		t.Fatalf("expected TempoMeta, got %T", out[0])
	}
	if tm.BPM != 60 {
		t.Errorf("unexpected bpm: %d", tm.BPM)
	}
	if tm.FirstBeat != 1 {
		t.Errorf("expected default first_beat 1, got %d", tm.FirstBeat)
	}
}

func TestBindOrdersLabelBeforeGoto(t *testing.T) {
	raw := []grammar.RawMetadata{
		{Keyword: "GOTO", Params: map[string]string{"label": "A"}, ListParams: map[string][]string{}},
		{Keyword: "LABEL", Params: map[string]string{"name": "A"}, ListParams: map[string][]string{}},
	}
	out, err := Bind(1, raw, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, ok := out[0].(model.LabelMeta); !ok {
		t.Fatalf("expected LABEL first, got %T", out[0])
	}
	if _, ok := out[1].(model.GotoMeta); !ok {
		t.Fatalf("expected GOTO second, got %T", out[1])
	}
}

func TestBindScoreScope(t *testing.T) {
	raw := []grammar.RawMetadata{
		{Keyword: "GONGAN", Params: map[string]string{"type": "kebyar", "scope": "score"}, ListParams: map[string][]string{}},
	}
	out, err := Bind(1, raw, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if out[0].GetScope() != model.ScopeScore {
		t.Errorf("expected score scope")
	}
}

func TestResolveFlowBacklinksForwardGoto(t *testing.T) {
	flow := model.NewFlowInfo()
	g1 := &model.Gongan{ID: 1, Beats: []*model.Beat{model.NewBeat(1, 1)}, Metadata: []model.MetaData{
		model.GotoMeta{Label: "A", Passes: []model.Pass{2}},
	}}
	g2 := &model.Gongan{ID: 2, Beats: []*model.Beat{model.NewBeat(1, 2)}, Metadata: []model.MetaData{
		model.LabelMeta{Name: "A"},
	}}
	if err := ResolveFlow(flow, g1); err != nil {
		t.Fatalf("ResolveFlow g1: %v", err)
	}
	if len(flow.Gotos) != 1 {
		t.Fatalf("expected goto queued, got %d pending", len(flow.Gotos))
	}
	if err := ResolveFlow(flow, g2); err != nil {
		t.Fatalf("ResolveFlow g2: %v", err)
	}
	if len(flow.Gotos) != 0 {
		t.Fatalf("expected goto resolved, got %d still pending", len(flow.Gotos))
	}
	if g1.Beats[0].Goto[2] != g2.Beats[0] {
		t.Errorf("expected beat 1 of gongan 1 to goto beat 1 of gongan 2 on pass 2")
	}
	if err := FinalizeFlow(flow); err != nil {
		t.Errorf("FinalizeFlow: %v", err)
	}
}

func TestFinalizeFlowReportsUnresolvedLabel(t *testing.T) {
	flow := model.NewFlowInfo()
	g1 := &model.Gongan{ID: 1, Beats: []*model.Beat{model.NewBeat(1, 1)}, Metadata: []model.MetaData{
		model.GotoMeta{Label: "missing"},
	}}
	if err := ResolveFlow(flow, g1); err != nil {
		t.Fatalf("ResolveFlow: %v", err)
	}
	if err := FinalizeFlow(flow); err == nil {
		t.Fatal("expected error for unresolved label")
	}
}

func TestBindUnknownKeywordReturnsGrammarError(t *testing.T) {
	raw := []grammar.RawMetadata{
		{Keyword: "FROBNICATE", Line: 7, Params: map[string]string{}, ListParams: map[string][]string{}},
	}
	_, err := Bind(3, raw, nil)
	if err == nil {
		t.Fatal("expected an error for unknown keyword")
	}
	var ge *grammar.Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *grammar.Error, got %T", err)
	}
	if ge.Kind != grammar.KindUnknownKeyword {
		t.Errorf("Kind = %s, want %s", ge.Kind, grammar.KindUnknownKeyword)
	}
	if ge.Line != 7 || ge.Gongan != 3 {
		t.Errorf("unexpected error location: line %d gongan %d", ge.Line, ge.Gongan)
	}
}
