package metadata

import (
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// ResolveFlow implements the two-pass label/goto scheme:
// labels register in order as their owning gongan's beats are walked;
// forward gotos (those whose label has not yet registered) are queued and
// resolved the moment their label appears. Call this once per gongan, in
// score order, after ScoreBuilder has installed that gongan's beats.
func ResolveFlow(flow *model.FlowInfo, gongan *model.Gongan) error {
	for _, meta := range gongan.Metadata {
		switch t := meta.(type) {
		case model.LabelMeta:
			if len(gongan.Beats) == 0 {
				return fmt.Errorf("gongan %d: LABEL %q on a gongan with no beats", gongan.ID, t.Name)
			}
			if _, dup := flow.Labels[t.Name]; dup {
				return fmt.Errorf("gongan %d: label %q redefined", gongan.ID, t.Name)
			}
			flow.Labels[t.Name] = gongan.Beats[0]
		case model.GotoMeta:
			from := gongan.Beats[len(gongan.Beats)-1]
			if t.FromBeat > 0 && t.FromBeat <= len(gongan.Beats) {
				from = gongan.Beats[t.FromBeat-1]
			}
			flow.Gotos = append(flow.Gotos, model.PendingGoto{From: from, Meta: t})
		}
	}
	return resolveReady(flow)
}

// resolveReady installs a Goto pointer on every pending goto whose label
// has registered, leaving the rest queued for a later gongan's labels.
func resolveReady(flow *model.FlowInfo) error {
	var remaining []model.PendingGoto
	for _, pending := range flow.Gotos {
		target, ok := flow.Labels[pending.Meta.Label]
		if !ok {
			remaining = append(remaining, pending)
			continue
		}
		installGoto(pending.From, target, pending.Meta)
	}
	flow.Gotos = remaining
	return nil
}

func installGoto(from, to *model.Beat, meta model.GotoMeta) {
	if len(meta.Passes) == 0 {
		from.Goto[model.DefaultPass] = to
		return
	}
	for _, p := range meta.Passes {
		from.Goto[model.Pass(p)] = to
	}
}

// FinalizeFlow is called once the whole score has been walked: any goto
// still queued names a label that was never defined, which is an error.
func FinalizeFlow(flow *model.FlowInfo) error {
	if len(flow.Gotos) == 0 {
		return nil
	}
	var unresolved []string
	for _, pending := range flow.Gotos {
		unresolved = append(unresolved, pending.Meta.Label)
	}
	return fmt.Errorf("unresolved GOTO label(s): %v", unresolved)
}
