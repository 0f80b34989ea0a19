// Package scorebuilder transposes staves into beats, casts raw symbols to
// instrument-bound Notes, defaults missing measures, and elaborates
// shorthand notation (pokok extension, beat-at-end realignment,
// grace-note placement, tremolo expansion, SEQUENCE/OCTAVATE/SUPPRESS
// resolution).
package scorebuilder

import (
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// maxSymbolLength bounds the greedy symbol match below; no notated symbol
// in the font combines more than this many characters (pitch + up to
// three modifiers).
const maxSymbolLength = 4

// CastToken splits one whitespace-delimited measure token into its
// constituent Notes: each run of modifier characters is first sorted into
// canonical order (model.CanonicalizeSymbol), then the longest prefix that
// exists in the position's valid-note table is greedily matched, advanced
// past, and the match repeated. Sorting both the token and the table keys
// means a note's modifiers may be written in any order in the source.
//
// The font table that maps individual characters to (pitch, modifier)
// pairs is loaded outside this module; model.NoteTable is the abstraction
// over it, already keyed by complete symbol strings (e.g. "o" for DONG,
// with modifier characters attached), so casting proceeds by matching
// against whole symbols rather than decomposing a token character by
// character against a separate modifier grammar.
func CastToken(token string, position model.Position, table *model.NoteTable) ([]model.Note, error) {
	runes := []rune(model.CanonicalizeSymbol(token))
	var notes []model.Note
	for i := 0; i < len(runes); {
		matched := false
		maxLen := maxSymbolLength
		if i+maxLen > len(runes) {
			maxLen = len(runes) - i
		}
		for l := maxLen; l >= 1; l-- {
			candidate := string(runes[i : i+l])
			if note, ok := table.LookupSymbol(position, candidate); ok {
				notes = append(notes, note)
				i += l
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("position %s: unrecognized symbol %q at offset %d in token %q", position, runes[i], i, token)
		}
	}
	return notes, nil
}

// CastMeasure casts every token of a raw measure cell in source order.
func CastMeasure(tokens []string, position model.Position, table *model.NoteTable) ([]model.Note, error) {
	var notes []model.Note
	for _, tok := range tokens {
		cast, err := CastToken(tok, position, table)
		if err != nil {
			return nil, err
		}
		notes = append(notes, cast...)
	}
	return notes, nil
}
