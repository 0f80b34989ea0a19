package scorebuilder

import (
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/grammar"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/metadata"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tagresolver"
)

// BuildScore turns GrammarParser's output into a fully elaborated
// model.Score: build every gongan's beats, pad shorthand pokok staves and
// default missing ones, optionally realign "beat at end" notation, apply
// gongan-scoped metadata, resolve SEQUENCE gotos, then inject default
// kempli beats. The ordering matters: realignment and metadata both
// assume fully linked beat chains, and kempli injection must see final
// gongan types.
func BuildScore(title string, parsed *grammar.ParseResult, tagTable *tagresolver.Table, cfg BuildConfig, beatAtEnd bool) (*model.Score, error) {
	score := model.NewScore(title)

	scoreMeta, err := metadata.Bind(grammar.ScoreLevelGongan, parsed.ScoreLevel.Metadata, tagTable)
	if err != nil {
		return nil, fmt.Errorf("score-level metadata: %w", err)
	}

	resolvedByGongan := make([][]tagresolver.ResolvedStave, len(parsed.Gongans))
	activePositions := map[model.Position]bool{}
	for i, raw := range parsed.Gongans {
		var resolved []tagresolver.ResolvedStave
		for _, stave := range raw.Staves {
			rs, err := tagTable.ResolveStave(stave)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, rs...)
		}
		resolvedByGongan[i] = resolved
		for _, r := range resolved {
			activePositions[r.Position] = true
		}
	}
	if cfg.KempliPosition != "" {
		activePositions[cfg.KempliPosition] = true
	}
	score.InstrumentPositions = activePositions

	var prevGongan *model.Gongan
	for i, raw := range parsed.Gongans {
		gongan, err := BuildGongan(raw.ID, resolvedByGongan[i], cfg, activePositions, prevGongan)
		if err != nil {
			return nil, err
		}
		prevGongan = gongan
		gongan.Comments = raw.Comments

		bound, err := metadata.Bind(raw.ID, raw.Metadata, tagTable)
		if err != nil {
			return nil, fmt.Errorf("gongan %d metadata: %w", raw.ID, err)
		}
		gongan.Metadata = append(append([]model.MetaData{}, scoreMeta...), bound...)

		score.Gongans = append(score.Gongans, gongan)

		if err := metadata.ResolveFlow(score.Flow, gongan); err != nil {
			return nil, err
		}
		score.Sequences = append(score.Sequences, CollectSequences(gongan)...)
	}

	if err := metadata.FinalizeFlow(score.Flow); err != nil {
		return nil, err
	}

	LinkScore(score)

	if beatAtEnd {
		MoveBeatToStart(score, cfg.Table)
	}

	for _, gongan := range score.Gongans {
		if err := ApplyGonganMetadata(gongan, cfg.Table); err != nil {
			return nil, err
		}
	}

	if err := ResolveSequences(score); err != nil {
		return nil, err
	}

	InjectKempliBeats(score, cfg)

	return score, nil
}
