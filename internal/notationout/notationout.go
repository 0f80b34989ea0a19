// Package notationout serializes a built score back into the tab-separated
// notation format, the inverse of internal/grammar's parse: one block of
// lines per gongan separated by blank lines, metadata in braces, stave
// lines keyed by position short code. Used to save the autocorrected
// version of a composition alongside its MIDI output, so the corrected
// file can be parsed again and yields the same score up to rest padding.
package notationout

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/atomicfile"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// Write renders score as notation text.
func Write(w io.Writer, score *model.Score) error {
	for i, gongan := range score.Gongans {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := writeGongan(w, gongan, i == 0); err != nil {
			return err
		}
	}
	return nil
}

// SaveTo writes the score to path using the write-to-temp-then-rename
// discipline every output artifact goes through.
func SaveTo(path string, score *model.Score) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return Write(w, score)
	})
}

// writeGongan emits one gongan's block: metadata lines first, then
// comments, then one stave line per (position, pass). Score-scoped
// metadata was copied onto every gongan when the score was built, so it is
// written back only once, from the first gongan.
func writeGongan(w io.Writer, gongan *model.Gongan, includeScoreScoped bool) error {
	for _, md := range gongan.Metadata {
		if md.GetScope() == model.ScopeScore && !includeScoreScoped {
			continue
		}
		if _, err := fmt.Fprintf(w, "metadata\t%s\n", formatMeta(md)); err != nil {
			return err
		}
	}
	for _, c := range gongan.Comments {
		if _, err := fmt.Fprintf(w, "comment\t%s\n", c); err != nil {
			return err
		}
	}

	present := map[model.Position]bool{}
	for _, beat := range gongan.Beats {
		for p := range beat.Measures {
			present[p] = true
		}
	}
	for _, position := range model.OrderPositions(present) {
		if err := writeStaves(w, gongan, position); err != nil {
			return err
		}
	}
	return nil
}

// writeStaves emits position's stave line(s) for the gongan: the default
// pass as a plain tagged line, then one "tag:N" line per explicit pass
// override, ascending.
func writeStaves(w io.Writer, gongan *model.Gongan, position model.Position) error {
	passSet := map[model.Pass]bool{}
	for _, beat := range gongan.Beats {
		if m, ok := beat.Measures[position]; ok {
			for p := range m.Passes {
				passSet[p] = true
			}
		}
	}
	var passes []model.Pass
	for p := range passSet {
		passes = append(passes, p)
	}
	sort.Slice(passes, func(i, j int) bool { return passes[i] < passes[j] })

	for _, pass := range passes {
		tag := strings.ToLower(position.ShortCode())
		if pass != model.DefaultPass {
			tag = fmt.Sprintf("%s:%d", tag, pass)
		}
		cells := make([]string, 0, len(gongan.Beats))
		for _, beat := range gongan.Beats {
			cells = append(cells, cellFor(beat, position, pass))
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", tag, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// cellFor renders one beat's measure for (position, pass) as its notes'
// source symbols, space-separated so the parser can split them back into
// tokens without consulting the font table.
func cellFor(beat *model.Beat, position model.Position, pass model.Pass) string {
	measure, ok := beat.Measures[position]
	if !ok {
		return ""
	}
	var symbols []string
	for _, n := range measure.ForPass(pass) {
		if n.Symbol != "" {
			symbols = append(symbols, n.Symbol)
		}
	}
	return strings.Join(symbols, " ")
}

// formatMeta renders one typed metadata variant back into its braced
// source form.
func formatMeta(md model.MetaData) string {
	var keyword string
	var params []string
	switch m := md.(type) {
	case model.PartMeta:
		keyword = "PART"
		params = append(params, "name="+quote(m.Name))
	case model.CommentMeta:
		keyword = "COMMENT"
		params = append(params, "text="+quote(m.Text))
	case model.LabelMeta:
		keyword = "LABEL"
		params = append(params, "name="+quote(m.Name))
	case model.GotoMeta:
		keyword = "GOTO"
		params = append(params, "label="+quote(m.Label))
		if m.FromBeat > 0 {
			params = append(params, "from_beat="+strconv.Itoa(m.FromBeat))
		}
		if len(m.Passes) > 0 {
			params = append(params, "passes="+passList(m.Passes))
		}
	case model.RepeatMeta:
		keyword = "REPEAT"
		params = append(params, "count="+strconv.Itoa(m.Count))
	case model.SequenceMeta:
		keyword = "SEQUENCE"
		params = append(params, "value="+stringList(m.Labels))
	case model.TempoMeta:
		keyword = "TEMPO"
		params = append(params, "value="+strconv.Itoa(m.BPM))
		if m.FirstBeat > 1 {
			params = append(params, "first_beat="+strconv.Itoa(m.FirstBeat))
		}
		if m.Steps > 0 {
			params = append(params, "beat_count="+strconv.Itoa(m.Steps))
		}
	case model.DynamicsMeta:
		keyword = "DYNAMICS"
		params = append(params, "value="+string(m.Level))
		if len(m.Positions) > 0 {
			params = append(params, "positions="+positionList(m.Positions))
		}
		if m.FirstBeat > 1 {
			params = append(params, "first_beat="+strconv.Itoa(m.FirstBeat))
		}
		if m.Steps > 0 {
			params = append(params, "beat_count="+strconv.Itoa(m.Steps))
		}
	case model.KempliMeta:
		keyword = "KEMPLI"
		status := "on"
		if !m.Status {
			status = "off"
		}
		params = append(params, "status="+status)
		if len(m.Beats) > 0 {
			params = append(params, "beats="+intList(m.Beats))
		}
	case model.SuppressMeta:
		keyword = "SUPPRESS"
		if len(m.Positions) > 0 {
			params = append(params, "positions="+positionList(m.Positions))
		}
		if len(m.Beats) > 0 {
			params = append(params, "beats="+intList(m.Beats))
		}
		if len(m.Passes) > 0 {
			params = append(params, "passes="+passList(m.Passes))
		}
	case model.GonganMeta:
		keyword = "GONGAN"
		params = append(params, "type="+string(m.Type))
	case model.OctavateMeta:
		keyword = "OCTAVATE"
		params = append(params, "position="+strings.ToLower(string(m.Position)))
		params = append(params, "octaves="+strconv.Itoa(m.Octaves))
	case model.WaitMeta:
		keyword = "WAIT"
		params = append(params, "seconds="+strconv.FormatFloat(m.Seconds, 'g', -1, 64))
	case model.ValidationMeta:
		keyword = "VALIDATION"
		if len(m.Properties) > 0 {
			props := make([]string, len(m.Properties))
			for i, p := range m.Properties {
				props[i] = string(p)
			}
			params = append(params, "ignore="+stringList(props))
		}
		if len(m.Beats) > 0 {
			params = append(params, "beats="+intList(m.Beats))
		}
	default:
		return ""
	}
	if md.GetScope() == model.ScopeScore {
		params = append(params, "scope=score")
	}
	if len(params) == 0 {
		return "{" + keyword + "}"
	}
	return "{" + keyword + " " + strings.Join(params, ", ") + "}"
}

// quote wraps v in double quotes when it contains characters the metadata
// tokenizer would otherwise split on.
func quote(v string) string {
	if strings.ContainsAny(v, " \t,") {
		return `"` + v + `"`
	}
	return v
}

func stringList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

func intList(items []int) string {
	strs := make([]string, len(items))
	for i, v := range items {
		strs[i] = strconv.Itoa(v)
	}
	return stringList(strs)
}

func passList(items []model.Pass) string {
	strs := make([]string, len(items))
	for i, v := range items {
		strs[i] = strconv.Itoa(int(v))
	}
	return stringList(strs)
}

func positionList(items []model.Position) string {
	strs := make([]string, len(items))
	for i, p := range items {
		strs[i] = strings.ToLower(string(p))
	}
	return stringList(strs)
}
