// Package midiout is the flow interpreter and MIDI emitter: it walks the
// resolved score once per active position, following the same flow graph
// the player will, and produces a Standard MIDI File using
// gitlab.com/gomidi/midi/v2 and its smf sub-package.
package midiout

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/atomicfile"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// Emit builds one SMF1 Standard MIDI File carrying one track per active
// position, in canonical position order. cues may be nil.
func Emit(score *model.Score, presets *PresetTable, cfg Config, cues []HelpingHandCue) (*smf.SMF, error) {
	positions := OrderPositions(score.InstrumentPositions)
	if len(positions) == 0 {
		return nil, fmt.Errorf("midiout: score has no active positions")
	}

	// Each track starts from the repeat countdowns the score was built with,
	// since NextInFlow consumes them during a walk.
	countdowns := map[*model.Repeat]int{}
	for _, beat := range score.AllBeats() {
		if beat.Repeat != nil {
			countdowns[beat.Repeat] = beat.Repeat.Countdown
		}
	}

	results := make([]trackResult, 0, len(positions))
	for _, position := range positions {
		score.ResetPasses()
		for r, c := range countdowns {
			r.Reset(c)
		}
		tr, err := buildTrack(score, position, presets.Lookup(position), cfg, cues)
		if err != nil {
			return nil, fmt.Errorf("building track for %s: %w", position, err)
		}
		results = append(results, tr)
	}

	longest := 0
	for i, tr := range results {
		if tr.endTick > results[longest].endTick {
			longest = i
		}
	}
	extendLongestTrack(&results[longest], cfg)

	file := smf.NewSMF1()
	file.TimeFormat = smf.MetricTicks(cfg.PPQ)
	for i, tr := range results {
		trailing := uint32(0)
		if i == longest {
			trailing = secondsToTicks(cfg.SilenceSecondsAfterEnd, float64(cfg.InitialTempoBPM), cfg.PPQ)
		}
		file.Add(finalize(tr.events, trailing))
	}
	return file, nil
}

// extendLongestTrack stretches the longest track's final note-off event
// (and its chord-mates) by SilenceSecondsAfterMusicEnd, using
// Config.InitialTempoBPM as a documented simplification rather than
// tracking which tempo was active at the very end of that particular
// track.
func extendLongestTrack(tr *trackResult, cfg Config) {
	if cfg.SilenceSecondsAfterMusicEnd <= 0 || !tr.haveLastNoteOff {
		return
	}
	extra := secondsToTicks(cfg.SilenceSecondsAfterMusicEnd, float64(cfg.InitialTempoBPM), cfg.PPQ)
	for i := 0; i < tr.lastNoteOffCount; i++ {
		tr.events[tr.lastNoteOffAt+i].Time += extra
	}
	if tr.endTick < tr.events[tr.lastNoteOffAt].Time {
		tr.endTick = tr.events[tr.lastNoteOffAt].Time
	}
}

// finalize sorts a track's absolute-time events, converts them to
// relative deltas and appends an end-of-track meta event carrying
// trailingTicks of final silence. Events at equal time sort note-off
// before note-on, so a note that ends exactly when another starts doesn't
// cut the new one off.
func finalize(events []timedEvent, trailingTicks uint32) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return eventRank(events[i].Message) < eventRank(events[j].Message)
	})

	track := smf.Track{}
	var last uint32
	for _, e := range events {
		track = append(track, smf.Event{Delta: e.Time - last, Message: e.Message})
		last = e.Time
	}
	track = append(track, smf.Event{Delta: trailingTicks, Message: smf.EOT})
	return track
}

// eventRank orders same-tick events: note-off before note-on (so a note
// that ends exactly when another starts doesn't get cut off by it),
// everything else keeps arrival order.
func eventRank(msg smf.Message) int {
	var ch, key, vel uint8
	if msg.GetNoteOff(&ch, &key, &vel) {
		return 0
	}
	if msg.GetNoteOn(&ch, &key, &vel) && vel == 0 {
		return 0
	}
	return 1
}

// SaveTo writes file to path using the write-to-temp-then-rename
// discipline every output artifact goes through.
func SaveTo(path string, file *smf.SMF) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		_, err := file.WriteTo(w)
		return err
	})
}
