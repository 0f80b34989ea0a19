// Package ruleengine derives a secondary position's notation from a
// co-occurring primary position's already-cast notes, for positions the
// source notation never explicitly staved (e.g. a PEMADE_SANGSIH part
// left to be auto-generated from PEMADE_POLOS). It follows the same
// immutable-lookup, pure-selection-function shape as internal/tagresolver.
package ruleengine

import (
	"fmt"
	"sort"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// Rule names one of the five derivation strategies.
type Rule string

const (
	SameTone              Rule = "SAME_TONE"
	SamePitch             Rule = "SAME_PITCH"
	SamePitchExtendedRange Rule = "SAME_PITCH_EXTENDED_RANGE"
	ExactKempyung          Rule = "EXACT_KEMPYUNG"
	Kempyung               Rule = "KEMPYUNG"
)

// priority orders the rules from most to least specific, so a tie in rule
// applicability always resolves the same way (SelectRule itself is a
// deterministic switch, so ties cannot arise there).
var priority = map[Rule]int{
	ExactKempyung:          0,
	Kempyung:               1,
	SamePitchExtendedRange: 2,
	SamePitch:              3,
	SameTone:               4,
}

// Priority returns the rule's tie-break rank; lower is more specific.
func (r Rule) Priority() int { return priority[r] }

// RulePair names a primary/secondary position relationship RuleEngine may
// derive when the secondary was never explicitly notated.
type RulePair struct {
	Primary   model.Position
	Secondary model.Position
}

// SelectRule deterministically returns the rule governing how a secondary
// position is derived from a co-occurring primary.
//
//   - identical suffix (same Position role repeated, e.g. a tag expanding
//     to two copies of the same seat) -> SAME_TONE
//   - PEMADE, KANTILAN or GENDERWAYANG polos/sangsih pairs -> EXACT_KEMPYUNG
//   - any two REYONG positions -> KEMPYUNG
//   - same InstrumentType, any other pairing -> SAME_PITCH
//   - different InstrumentType -> SAME_PITCH_EXTENDED_RANGE
func SelectRule(primary, secondary model.Position) Rule {
	if primary == secondary {
		return SameTone
	}
	pt, st := primary.InstrumentType(), secondary.InstrumentType()
	if pt != st {
		return SamePitchExtendedRange
	}
	switch pt {
	case model.InstrumentReyong:
		return Kempyung
	case model.InstrumentPemade, model.InstrumentKantilan, model.InstrumentGenderWayang:
		return ExactKempyung
	default:
		return SamePitch
	}
}

// DeriveMeasures walks every gongan and beat of score and, for each
// configured RulePair whose Secondary position was never explicitly
// notated in that gongan (model.Gongan.Notated), overwrites Secondary's
// default-pass measure with notes derived from Primary's via the rule
// SelectRule(pair.Primary, pair.Secondary) picks. Beats where Primary
// itself was not notated, or has no measure, are left untouched.
func DeriveMeasures(score *model.Score, pairs []RulePair, table *model.NoteTable) error {
	for _, gongan := range score.Gongans {
		for _, pair := range pairs {
			if gongan.Notated == nil || gongan.Notated[pair.Secondary] {
				continue
			}
			if !gongan.Notated[pair.Primary] {
				continue
			}
			rule := SelectRule(pair.Primary, pair.Secondary)
			for _, beat := range gongan.Beats {
				primaryMeasure, ok := beat.Measures[pair.Primary]
				if !ok {
					continue
				}
				notes := primaryMeasure.ForPass(model.DefaultPass)
				derived, err := Apply(rule, pair.Primary, pair.Secondary, notes, table)
				if err != nil {
					return fmt.Errorf("gongan %d beat %d: deriving %s from %s: %w", gongan.ID, beat.ID, pair.Secondary, pair.Primary, err)
				}
				beat.Measures[pair.Secondary] = model.NewMeasure(pair.Secondary, derived, primaryMeasure.Passes[model.DefaultPass].Line)
			}
		}
	}
	return nil
}

// Apply derives one measure's worth of notes for secondary from primary's
// already-cast notes, following rule.
func Apply(rule Rule, primary, secondary model.Position, notes []model.Note, table *model.NoteTable) ([]model.Note, error) {
	out := make([]model.Note, len(notes))
	for i, n := range notes {
		derived, err := applyOne(rule, primary, secondary, n, table)
		if err != nil {
			return nil, err
		}
		out[i] = derived
	}
	return out, nil
}

func applyOne(rule Rule, primary, secondary model.Position, n model.Note, table *model.NoteTable) (model.Note, error) {
	if n.IsRest() || n.Tone.Octave == nil || !n.Tone.Pitch.IsMelodic() {
		// Rests and non-melodic strikes carry over unchanged (same stroke
		// shape exists per position in the valid-note table).
		if resolved, ok := table.LookupTone(secondary, n.Tone, n.Stroke, n.Duration, n.RestAfter); ok {
			return resolved, nil
		}
		return n, nil
	}

	switch rule {
	case SameTone:
		if resolved, ok := table.LookupTone(secondary, n.Tone, n.Stroke, n.Duration, n.RestAfter); ok {
			return resolved, nil
		}
		return model.Note{}, fmt.Errorf("%s: no tone matching %s at %s", secondary, n.Tone, n.Stroke)

	case SamePitch, SamePitchExtendedRange:
		return nearestOctave(secondary, n, rule == SamePitchExtendedRange, table)

	case ExactKempyung, Kempyung:
		partner, ok := kempyungPartner(primary, n.Tone, table)
		if ok {
			if resolved, ok := table.LookupTone(secondary, partner, n.Stroke, n.Duration, n.RestAfter); ok {
				return resolved, nil
			}
		}
		if rule == ExactKempyung {
			return model.Note{}, fmt.Errorf("%s: kempyung partner of %s is out of range", secondary, n.Tone)
		}
		return nearestOctave(secondary, n, false, table)
	}
	return n, nil
}

// nearestOctave picks, among secondary's valid tones at n's pitch and
// stroke, the octave closest to n's own: the full range when extended is
// true, otherwise only octaves within 1 of n's own. The note table holds
// one range per position, so the extended/standard distinction is a
// search radius rather than two distinct tables.
func nearestOctave(secondary model.Position, n model.Note, extended bool, table *model.NoteTable) (model.Note, error) {
	candidates := table.Range(secondary, n.Stroke)
	baseOctave := *n.Tone.Octave
	best := -1
	var bestTone model.Tone
	for _, t := range candidates {
		if t.Pitch != n.Tone.Pitch || t.Octave == nil {
			continue
		}
		delta := *t.Octave - baseOctave
		if delta < 0 {
			delta = -delta
		}
		if !extended && delta > 1 {
			continue
		}
		if best < 0 || delta < best {
			best = delta
			bestTone = t
		}
	}
	if best < 0 {
		return model.Note{}, fmt.Errorf("%s: no octave of %s within range", secondary, n.Tone.Pitch)
	}
	resolved, ok := table.LookupTone(secondary, bestTone, n.Stroke, n.Duration, n.RestAfter)
	if !ok {
		return model.Note{}, fmt.Errorf("%s: %s not valid at duration %.3f", secondary, bestTone, n.Duration)
	}
	return resolved, nil
}

// kempyungPartner maps tone to its kempyung partner within primary's own
// OPEN-stroke range: three scale steps up the melodic sequence, ordered by
// (Octave, ScaleStep). The three highest tones in range pair with
// themselves, since no tone lies three steps further up.
func kempyungPartner(primary model.Position, tone model.Tone, table *model.NoteTable) (model.Tone, bool) {
	if tone.Octave == nil {
		return model.Tone{}, false
	}
	ordered := orderedMelodicRange(primary, table)
	n := len(ordered)
	if n == 0 {
		return model.Tone{}, false
	}
	for i, t := range ordered {
		if !t.Equal(tone) {
			continue
		}
		if i < n-3 {
			return ordered[i+3], true
		}
		return t, true
	}
	return model.Tone{}, false
}

// orderedMelodicRange returns primary's OPEN-stroke melodic tones,
// deduped and sorted by ascending octave and scale step.
func orderedMelodicRange(primary model.Position, table *model.NoteTable) []model.Tone {
	type step struct {
		Pitch  model.Pitch
		Octave int
	}
	seen := map[step]bool{}
	var ordered []model.Tone
	for _, t := range table.Range(primary, model.StrokeOpen) {
		if t.Octave == nil || !t.Pitch.IsMelodic() {
			continue
		}
		s := step{t.Pitch, *t.Octave}
		if seen[s] {
			continue
		}
		seen[s] = true
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		si := ordered[i].Pitch.ScaleStep() + 100*(*ordered[i].Octave)
		sj := ordered[j].Pitch.ScaleStep() + 100*(*ordered[j].Octave)
		return si < sj
	})
	return ordered
}

// DefaultPairs returns the standard polos/sangsih and reyong kempyung
// pairs for a gong kebyar ensemble; a deployment with a different
// instrument group supplies its own list from its rule table instead.
func DefaultPairs(group model.InstrumentGroup) []RulePair {
	pairs := []RulePair{
		{Primary: model.PositionPemadePolos, Secondary: model.PositionPemadeSangsih},
		{Primary: model.PositionKantilanPolos, Secondary: model.PositionKantilanSangsih},
		{Primary: model.PositionReyong1, Secondary: model.PositionReyong2},
		{Primary: model.PositionReyong1, Secondary: model.PositionReyong3},
		{Primary: model.PositionReyong1, Secondary: model.PositionReyong4},
	}
	if group == model.GroupGenderWayang {
		pairs = append(pairs, RulePair{Primary: model.PositionGenderWayangPolos, Secondary: model.PositionGenderWayangSangsih})
	}
	return pairs
}
