package midiout

import "github.com/marcpaelinck/gamelan-notation-sub000/internal/model"

// HelpingHandCue is the JSON payload carried by a marker meta event, read
// by the companion player to highlight which hand/mallet plays a note.
type HelpingHandCue struct {
	Position model.Position `json:"position"`
	Hand     string         `json:"hand"`
	Beat     string         `json:"beat"` // model.Beat.FullID(), "<gongan>-<beat>"
}

// groupByBeat indexes position's cues by the beat id they attach to, so the
// track walk can emit any cues due at the beat it is currently visiting in
// one lookup.
func groupByBeat(cues []HelpingHandCue, position model.Position) map[string][]HelpingHandCue {
	grouped := map[string][]HelpingHandCue{}
	for _, c := range cues {
		if c.Position != position {
			continue
		}
		grouped[c.Beat] = append(grouped[c.Beat], c)
	}
	return grouped
}
