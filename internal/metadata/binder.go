// Package metadata converts grammar.RawMetadata records into the
// model.MetaData tagged union, applying the per-keyword default-parameter
// binding and processing-order priority, and, once ScoreBuilder has
// installed a gongan's beats, resolving LABEL/GOTO into the score's
// FlowInfo via a two-pass scheme.
package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/grammar"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tagresolver"
)

// priority orders metadata processing within a gongan so that structural
// items land before beat-scoped ones, labels before gotos, and tempo/
// dynamics ramps after every other directive except the inert PART and
// COMMENT.
func priority(keyword string) int {
	switch keyword {
	case "GONGAN":
		return 0
	case "KEMPLI":
		return 1
	case "LABEL":
		return 2
	case "GOTO":
		return 3
	case "REPEAT":
		return 4
	case "SEQUENCE":
		return 5
	case "OCTAVATE":
		return 6
	case "SUPPRESS":
		return 7
	case "VALIDATION":
		return 8
	case "WAIT":
		return 9
	case "TEMPO":
		return 10
	case "DYNAMICS":
		return 11
	case "PART", "COMMENT":
		return 12
	default:
		return 100
	}
}

// Bind converts every raw metadata record of a gongan into its typed
// model.MetaData variant, in processing-priority order. gonganID tags any
// error with the gongan it came from; tagTable resolves any embedded
// position lists (DYNAMICS, SUPPRESS, OCTAVATE).
func Bind(gonganID int, raw []grammar.RawMetadata, tagTable *tagresolver.Table) ([]model.MetaData, error) {
	ordered := make([]grammar.RawMetadata, len(raw))
	copy(ordered, raw)
	sortByPriority(ordered)

	out := make([]model.MetaData, 0, len(ordered))
	for _, item := range ordered {
		m, err := bindOne(gonganID, item, tagTable)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func sortByPriority(items []grammar.RawMetadata) {
	// Stable insertion sort: the list is short (a handful of metadata items
	// per gongan) and stability preserves declaration order among items of
	// equal priority.
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && priority(items[j-1].Keyword) > priority(items[j].Keyword) {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

func scopeOf(m grammar.RawMetadata) model.Scope {
	if strings.EqualFold(m.Params["scope"], "score") {
		return model.ScopeScore
	}
	return model.ScopeGongan
}

func bindOne(gonganID int, m grammar.RawMetadata, tagTable *tagresolver.Table) (model.MetaData, error) {
	switch m.Keyword {
	case "PART":
		return model.PartMeta{Base: mkBase(m), Name: firstOf(m.Default, m.Params["name"])}, nil
	case "COMMENT":
		return model.CommentMeta{Base: mkBase(m), Text: firstOf(m.Default, m.Params["text"])}, nil
	case "LABEL":
		return model.LabelMeta{Base: mkBase(m), Name: firstOf(m.Default, m.Params["name"])}, nil
	case "GOTO":
		passInts, err := intList(m.ListParams["passes"])
		if err != nil {
			return nil, fmt.Errorf("line %d: GOTO passes: %w", m.Line, err)
		}
		passes := make([]model.Pass, len(passInts))
		for i, p := range passInts {
			passes[i] = model.Pass(p)
		}
		fromBeat, err := optInt(m.Params["from_beat"])
		if err != nil {
			return nil, fmt.Errorf("line %d: GOTO from_beat: %w", m.Line, err)
		}
		return model.GotoMeta{Base: mkBase(m), Label: firstOf(m.Default, m.Params["label"]), Passes: passes, FromBeat: fromBeat}, nil
	case "REPEAT":
		count, err := reqInt(firstOf(m.Default, m.Params["count"]), m.Line, "REPEAT count")
		if err != nil {
			return nil, err
		}
		return model.RepeatMeta{Base: mkBase(m), Count: count}, nil
	case "SEQUENCE":
		labels := m.ListParams["value"]
		if labels == nil {
			labels = m.ListParams["labels"]
		}
		if labels == nil && m.Default != "" {
			labels = []string{m.Default}
		}
		return model.SequenceMeta{Base: mkBase(m), Labels: labels}, nil
	case "TEMPO":
		bpm, err := reqInt(firstOf(m.Default, m.Params["value"]), m.Line, "TEMPO value")
		if err != nil {
			return nil, err
		}
		steps, _ := optInt(m.Params["beat_count"])
		firstBeat, _ := optInt(m.Params["first_beat"])
		if firstBeat == 0 {
			firstBeat = 1
		}
		return model.TempoMeta{Base: mkBase(m), BPM: bpm, Steps: steps, FirstBeat: firstBeat}, nil
	case "DYNAMICS":
		level := model.DynamicLevel(firstOf(m.Default, m.Params["value"]))
		steps, _ := optInt(m.Params["beat_count"])
		firstBeat, _ := optInt(m.Params["first_beat"])
		if firstBeat == 0 {
			firstBeat = 1
		}
		var positions []model.Position
		if tags, ok := m.ListParams["positions"]; ok && tagTable != nil {
			var err error
			positions, err = tagTable.ResolvePositionList(tags, m.Line)
			if err != nil {
				return nil, err
			}
		}
		return model.DynamicsMeta{Base: mkBase(m), Level: level, Steps: steps, Positions: positions, FirstBeat: firstBeat}, nil
	case "KEMPLI":
		status := !strings.EqualFold(firstOf(m.Default, m.Params["status"]), "off")
		beats, err := intList(m.ListParams["beats"])
		if err != nil {
			return nil, fmt.Errorf("line %d: KEMPLI beats: %w", m.Line, err)
		}
		return model.KempliMeta{Base: mkBase(m), Status: status, Beats: beats}, nil
	case "SUPPRESS":
		var positions []model.Position
		if tags, ok := m.ListParams["positions"]; ok && tagTable != nil {
			var err error
			positions, err = tagTable.ResolvePositionList(tags, m.Line)
			if err != nil {
				return nil, err
			}
		}
		beats, err := intList(m.ListParams["beats"])
		if err != nil {
			return nil, fmt.Errorf("line %d: SUPPRESS beats: %w", m.Line, err)
		}
		passInts, err := intList(m.ListParams["passes"])
		if err != nil {
			return nil, fmt.Errorf("line %d: SUPPRESS passes: %w", m.Line, err)
		}
		passes := make([]model.Pass, len(passInts))
		for i, p := range passInts {
			passes[i] = model.Pass(p)
		}
		return model.SuppressMeta{Base: mkBase(m), Positions: positions, Beats: beats, Passes: passes}, nil
	case "GONGAN":
		return model.GonganMeta{Base: mkBase(m), Type: model.GonganType(strings.ToUpper(firstOf(m.Default, m.Params["type"])))}, nil
	case "OCTAVATE":
		octaves, err := reqInt(firstOf(m.Default, m.Params["octaves"]), m.Line, "OCTAVATE octaves")
		if err != nil {
			return nil, err
		}
		var position model.Position
		if tag, ok := m.Params["position"]; ok && tagTable != nil {
			positions, err := tagTable.ResolvePositionList([]string{tag}, m.Line)
			if err != nil {
				return nil, err
			}
			if len(positions) > 0 {
				position = positions[0]
			}
		}
		return model.OctavateMeta{Base: mkBase(m), Position: position, Octaves: octaves}, nil
	case "WAIT":
		seconds, err := reqFloat(firstOf(m.Default, m.Params["seconds"]), m.Line, "WAIT seconds")
		if err != nil {
			return nil, err
		}
		return model.WaitMeta{Base: mkBase(m), Seconds: seconds}, nil
	case "VALIDATION":
		props := m.ListParams["ignore"]
		if props == nil && m.Default != "" {
			props = []string{m.Default}
		}
		var properties []model.ValidationProperty
		for _, p := range props {
			properties = append(properties, model.ValidationProperty(p))
		}
		beats, err := intList(m.ListParams["beats"])
		if err != nil {
			return nil, fmt.Errorf("line %d: VALIDATION beats: %w", m.Line, err)
		}
		return model.ValidationMeta{Base: mkBase(m), Properties: properties, Beats: beats}, nil
	default:
		return nil, &grammar.Error{
			Kind:    grammar.KindUnknownKeyword,
			Line:    m.Line,
			Column:  1,
			Gongan:  gonganID,
			Message: fmt.Sprintf("unknown metadata keyword %q", m.Keyword),
		}
	}
}

func mkBase(m grammar.RawMetadata) model.Base {
	return model.Base{Scope: scopeOf(m), Pass: model.DefaultPass}
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func reqInt(s string, line int, what string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("line %d: %s is required", line, what)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", line, what, err)
	}
	return n, nil
}

func reqFloat(s string, line int, what string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("line %d: %s is required", line, what)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", line, what, err)
	}
	return f, nil
}

func optInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

func intList(vals []string) ([]int, error) {
	if vals == nil {
		return nil, nil
	}
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
