package scorebuilder

import (
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// CollectSequences extracts a gongan's SEQUENCE metadata into the score-wide
// list ResolveSequences later consumes; called once per gongan as it is
// built, after Bind has produced its typed metadata.
func CollectSequences(gongan *model.Gongan) []model.Sequence {
	var out []model.Sequence
	for _, md := range gongan.Metadata {
		if seq, ok := md.(model.SequenceMeta); ok {
			out = append(out, model.Sequence{GonganID: gongan.ID, Labels: seq.Labels})
		}
	}
	return out
}

// ResolveSequences installs the trailing gotos a SEQUENCE directive
// describes: starting from the gongan that declared it, walk its label
// list and link the last beat of each referenced gongan to the first beat
// of the next, using the next pass id not already claimed on that beat.
func ResolveSequences(score *model.Score) error {
	for _, seq := range score.Sequences {
		owner := score.GonganByID(seq.GonganID)
		if owner == nil || len(owner.Beats) == 0 {
			continue
		}
		from := owner.Beats[len(owner.Beats)-1]
		for _, label := range seq.Labels {
			to, ok := score.Flow.Labels[label]
			if !ok {
				return fmt.Errorf("SEQUENCE in gongan %d: undefined label %q", seq.GonganID, label)
			}
			from.Goto[nextUnusedPass(from)] = to

			toGongan := score.GonganByID(to.GonganID)
			if toGongan == nil || len(toGongan.Beats) == 0 {
				break
			}
			from = toGongan.Beats[len(toGongan.Beats)-1]
		}
	}
	return nil
}

// nextUnusedPass finds the lowest positive pass id not already claimed by
// one of beat's gotos.
func nextUnusedPass(beat *model.Beat) model.Pass {
	p := model.Pass(1)
	for {
		if _, taken := beat.Goto[p]; !taken {
			return p
		}
		p++
	}
}
