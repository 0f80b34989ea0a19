package grammar

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Parse tokenizes the full notation text into a ParseResult, collecting
// as many errors as it can rather than stopping at the first one: a bad
// line is consumed up to the next newline and parsing resumes, so one run
// surfaces every problem.
//
// Measure cells are split into symbol-groups on whitespace: the grammar
// stage does not consult the font table, so it cannot split a bare run of
// characters into individual notes on its own (modifiers attach directly
// to their pitch character with no separator). Source notation is written
// with a space between notes for this reason; ScoreBuilder resolves each
// whitespace-delimited token against the font table.
func Parse(text string) (*ParseResult, []error) {
	var errs []error
	result := &ParseResult{ScoreLevel: RawGongan{ID: ScoreLevelGongan}}

	blocks := splitBlocks(text)
	nextID := 1
	for _, block := range blocks {
		gongan := RawGongan{ID: nextID}
		for _, ln := range block {
			if err := parseLine(&gongan, result, ln.text, ln.num); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if len(gongan.Staves) == 0 && len(gongan.Metadata) == 0 && len(gongan.Comments) == 0 {
			continue
		}
		result.Gongans = append(result.Gongans, gongan)
		nextID++
	}
	return result, errs
}

type numberedLine struct {
	text string
	num  int
}

// splitBlocks groups the source's lines into blank-line-delimited blocks,
// dropping blocks that contain only blank/whitespace content.
func splitBlocks(text string) [][]numberedLine {
	var blocks [][]numberedLine
	var current []numberedLine
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, numberedLine{text: raw, num: lineNum})
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// parseLine dispatches one non-blank line of a block to the stave,
// metadata, or comment handler based on its first tab-separated field.
func parseLine(gongan *RawGongan, result *ParseResult, line string, lineNum int) error {
	fields := strings.Split(line, "\t")
	first := strings.TrimSpace(fields[0])
	rest := fields[1:]

	switch strings.ToLower(first) {
	case "metadata":
		if len(rest) == 0 {
			return newError(KindMissingKeyword, lineNum, len(first)+1, gongan.ID, "metadata line has no payload")
		}
		meta, err := parseMetadataPayload(strings.TrimSpace(rest[0]), lineNum, gongan.ID)
		if err != nil {
			return err
		}
		if strings.EqualFold(meta.Keyword, "") {
			return newError(KindMissingKeyword, lineNum, 1, gongan.ID, "empty metadata keyword")
		}
		target := gongan
		if isScoreScoped(meta) {
			target = &result.ScoreLevel
		}
		target.Metadata = append(target.Metadata, *meta)
		return nil
	case "comment":
		text := ""
		if len(rest) > 0 {
			text = rest[0]
		}
		gongan.Comments = append(gongan.Comments, text)
		return nil
	default:
		stave, err := parseStaveLine(first, rest, lineNum)
		if err != nil {
			return err
		}
		gongan.Staves = append(gongan.Staves, *stave)
		return nil
	}
}

// isScoreScoped reports whether a raw metadata record's scope parameter
// (if any) names the score-wide scope, used to route it to the synthetic
// ScoreLevelGongan.
func isScoreScoped(m *RawMetadata) bool {
	v, ok := m.Params["scope"]
	return ok && strings.EqualFold(v, "score")
}

// parseStaveLine splits a POSITION[:passes] line into its tag, pass spec,
// and measures, each measure further split into whitespace-delimited
// symbol groups.
func parseStaveLine(tagField string, cells []string, lineNum int) (*RawStave, error) {
	if tagField == "" {
		return nil, newError(KindUnexpectedToken, lineNum, 1, 0, "expected a position tag or 'metadata'/'comment'")
	}
	tag := tagField
	passSpec := ""
	if idx := strings.IndexByte(tagField, ':'); idx >= 0 {
		tag = tagField[:idx]
		passSpec = tagField[idx+1:]
	}
	stave := &RawStave{PositionTag: tag, PassSpec: passSpec, Line: lineNum}
	for _, cell := range cells {
		symbols := strings.Fields(cell)
		stave.Measures = append(stave.Measures, symbols)
	}
	return stave, nil
}

// ExpandPassSpec turns "2-3" into {2,3}, "2" into {2}, and "" into nil
// (meaning "default pass", handled by the caller). It is exported so
// internal/tagresolver can reuse the exact same parsing for each stave's
// pass selector.
func ExpandPassSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if idx := strings.IndexByte(spec, '-'); idx >= 0 {
		lo, err := strconv.Atoi(strings.TrimSpace(spec[:idx]))
		if err != nil {
			return nil, fmt.Errorf("invalid pass range %q: %w", spec, err)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(spec[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid pass range %q: %w", spec, err)
		}
		if hi < lo {
			return nil, fmt.Errorf("invalid pass range %q: end before start", spec)
		}
		passes := make([]int, 0, hi-lo+1)
		for p := lo; p <= hi; p++ {
			passes = append(passes, p)
		}
		return passes, nil
	}
	p, err := strconv.Atoi(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid pass selector %q: %w", spec, err)
	}
	return []int{p}, nil
}
