package midiout

import (
	"encoding/json"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// timedEvent is a MIDI event at an absolute tick, converted to a relative
// delta only once every event for a track is known.
type timedEvent struct {
	Time    uint32
	Message smf.Message
}

// rampState is an in-progress linear change installed by a TEMPO or
// DYNAMICS schedule. It lives on the track builder, not on the Beat, so a
// goto that revisits beats mid-ramp does not reset it: the Change is
// attached to the installing beat, but the countdown of applying the ramp
// is carried in the walking interpreter.
type rampState struct {
	delta     float64
	remaining int
}

// trackResult is one position's fully walked track, still holding
// unfinalized absolute-time events so Emit can extend the longest track's
// final note and trailing silence before delta-converting everything.
type trackResult struct {
	position model.Position
	events   []timedEvent
	endTick  uint32

	haveLastNoteOff  bool
	lastNoteOffAt    int // index into events of the chord's first note-off
	lastNoteOffCount int // how many note-off events make up that chord
}

// buildTrack walks the score once for position, starting at (gongan 1,
// beat 1) and following NextInFlow() until it returns nil. The score's
// beat pass counters must already be at zero and its repeat countdowns at
// their built values for this call (Emit resets both before each position).
func buildTrack(score *model.Score, position model.Position, preset PresetEntry, cfg Config, cues []HelpingHandCue) (trackResult, error) {
	cuesByBeat := groupByBeat(cues, position)

	tb := &trackResult{position: position}
	tb.events = append(tb.events, timedEvent{0, smf.Message(smf.MetaTrackSequenceName(string(position)))})
	if preset.Bank != 0 {
		tb.events = append(tb.events, timedEvent{0, smf.Message(midi.ControlChange(preset.Channel, 0, preset.Bank))})
	}
	if preset.Channel != 9 { // channel 9 is GM percussion; no program change needed
		tb.events = append(tb.events, timedEvent{0, smf.Message(midi.ProgramChange(preset.Channel, preset.Program))})
	}

	tempoBPM := float64(cfg.InitialTempoBPM)
	if tempoBPM <= 0 {
		tempoBPM = 60
	}
	velocity := cfg.InitialVelocity
	if velocity <= 0 {
		velocity = 90
	}
	var tempoRamp, velocityRamp *rampState

	beat := score.FirstBeat()
	steps := 0
	maxSteps := cfg.maxSteps()
	for beat != nil {
		steps++
		if steps > maxSteps {
			return trackResult{}, fmt.Errorf("position %s: flow did not terminate after %d steps", position, maxSteps)
		}
		pass := beat.EnterPass()

		tempoBPM, tempoRamp = applyChange(beat, model.ChangeTempo, pass, tempoBPM, tempoRamp, true, position, tb)
		var newVelocity float64
		newVelocity, velocityRamp = applyChange(beat, model.ChangeDynamics, pass, float64(velocity), velocityRamp, false, position, tb)
		velocity = int(newVelocity)

		for _, cue := range cuesByBeat[beat.FullID()] {
			payload, err := json.Marshal(cue)
			if err != nil {
				return trackResult{}, fmt.Errorf("beat %s: marshaling helping-hand cue: %w", beat.FullID(), err)
			}
			tb.events = append(tb.events, timedEvent{tb.endTick, smf.Message(smf.MetaMarker(string(payload)))})
		}

		if measure, ok := beat.Measures[position]; ok {
			for _, note := range measure.ForPass(pass) {
				tb.emit(note, velocity, preset.Channel, cfg)
			}
		} else {
			tb.endTick += cfg.ticks(beat.Duration)
		}

		beat = beat.NextInFlow()
	}

	return *tb, nil
}

// applyChange installs a newly-scheduled Change (if beat has one for kind at
// pass) and/or advances an in-progress ramp, emitting a tempo meta event for
// ChangeTempo or nothing for ChangeDynamics (dynamics is emitter-internal
// state, not a MIDI event). It returns the possibly-updated current value
// and ramp state.
func applyChange(beat *model.Beat, kind model.ChangeKind, pass model.Pass, current float64, ramp *rampState, emitTempoEvent bool, position model.Position, tb *trackResult) (float64, *rampState) {
	justInstalled := false
	if change, ok := beat.ChangeFor(kind, pass); ok && appliesToPosition(change, position) {
		if change.Steps <= 0 {
			current = float64(change.NewValue)
			ramp = nil
			if emitTempoEvent {
				tb.events = append(tb.events, timedEvent{tb.endTick, smf.Message(smf.MetaTempo(current))})
			}
		} else {
			ramp = &rampState{
				delta:     (float64(change.NewValue) - current) / float64(change.Steps),
				remaining: change.Steps,
			}
			justInstalled = true
		}
	}
	if !justInstalled && ramp != nil && ramp.remaining > 0 {
		current += ramp.delta
		ramp.remaining--
		if emitTempoEvent {
			tb.events = append(tb.events, timedEvent{tb.endTick, smf.Message(smf.MetaTempo(current))})
		}
		if ramp.remaining == 0 {
			ramp = nil
		}
	}
	return current, ramp
}

// appliesToPosition reports whether a DYNAMICS change's position list
// covers position (an empty list means all positions); always true for
// TEMPO, which applies globally.
func appliesToPosition(change *model.Change, position model.Position) bool {
	if change.Kind != model.ChangeDynamics || len(change.Positions) == 0 {
		return true
	}
	for _, p := range change.Positions {
		if p == position {
			return true
		}
	}
	return false
}

// emit advances the track by one note: a rest only advances the tick
// accumulator, a grace note is reallocated onto its neighbors' time, and
// anything else sounds normally.
func (tb *trackResult) emit(note model.Note, velocity int, channel uint8, cfg Config) {
	durTicks := cfg.ticks(note.Duration)
	restTicks := cfg.ticks(note.RestAfter)

	if note.IsRest() {
		tb.endTick += durTicks + restTicks
		return
	}
	if note.Stroke == model.StrokeGraceNote {
		tb.emitGrace(note, durTicks, restTicks, velocity, channel, cfg)
		return
	}
	tb.emitSounding(note, durTicks, velocity, channel)
	tb.endTick += durTicks + restTicks
}

func noteVelocity(note model.Note, fallback int) uint8 {
	if note.Velocity != 0 {
		return uint8(note.Velocity)
	}
	return uint8(fallback)
}

// emitSounding emits a (possibly multi-key, for chorded positions like
// reyong) note_on/note_off pair starting at the track's current tick.
func (tb *trackResult) emitSounding(note model.Note, durTicks uint32, velocity int, channel uint8) {
	if len(note.MidiNotes) == 0 {
		return
	}
	start := tb.endTick
	vel := noteVelocity(note, velocity)
	for _, key := range note.MidiNotes {
		tb.events = append(tb.events, timedEvent{start, smf.Message(midi.NoteOn(channel, uint8(key), vel))})
	}
	offAt := start + durTicks
	firstOffIdx := len(tb.events)
	for _, key := range note.MidiNotes {
		tb.events = append(tb.events, timedEvent{offAt, smf.Message(midi.NoteOff(channel, uint8(key)))})
	}
	tb.haveLastNoteOff = true
	tb.lastNoteOffAt = firstOffIdx
	tb.lastNoteOffCount = len(note.MidiNotes)
}

// emitGrace reallocates a GRACE_NOTE's onset. The note's own slot in the
// running tick accumulator was already carved out of its neighbor by
// scorebuilder.PlaceGraceNotes, so advancing endTick here exactly as for a
// normal note keeps every later note correctly timed. What this function
// controls is where the grace's own sound actually falls: overlapping the
// silence since the last note ended when there is enough of it, otherwise
// pulled back over the tail of the previous note.
func (tb *trackResult) emitGrace(note model.Note, durTicks, restTicks uint32, velocity int, channel uint8, cfg Config) {
	graceDur := cfg.ticks(cfg.GraceNoteDuration)
	nominalStart := tb.endTick

	var start uint32
	if tb.haveLastNoteOff {
		lastOff := tb.events[tb.lastNoteOffAt].Time
		gap := int64(nominalStart) - int64(lastOff)
		if gap < 0 {
			gap = 0
		}
		threshold := int64(cfg.ticks(cfg.GraceNoteTimeThreshold))
		if threshold > 0 && gap >= threshold {
			stolen := threshold
			if gap < stolen {
				stolen = gap
			}
			start = nominalStart - uint32(stolen)
		} else {
			start = tb.rewindLastNoteOff(graceDur)
		}
	} else if nominalStart > graceDur {
		start = nominalStart - graceDur
	}

	vel := noteVelocity(note, velocity)
	for _, key := range note.MidiNotes {
		tb.events = append(tb.events, timedEvent{start, smf.Message(midi.NoteOn(channel, uint8(key), vel))})
	}
	end := start + graceDur
	firstOffIdx := len(tb.events)
	for _, key := range note.MidiNotes {
		tb.events = append(tb.events, timedEvent{end, smf.Message(midi.NoteOff(channel, uint8(key)))})
	}
	tb.haveLastNoteOff = len(note.MidiNotes) > 0 || tb.haveLastNoteOff
	if len(note.MidiNotes) > 0 {
		tb.lastNoteOffAt = firstOffIdx
		tb.lastNoteOffCount = len(note.MidiNotes)
	}

	tb.endTick = nominalStart + durTicks + restTicks
}

// rewindLastNoteOff pulls the previous note's note_off event (and its
// chord-mates) back by graceDur ticks, so the grace can sound over what
// was its tail. Returns the grace's computed start tick.
func (tb *trackResult) rewindLastNoteOff(graceDur uint32) uint32 {
	old := tb.events[tb.lastNoteOffAt].Time
	newTime := uint32(0)
	if old > graceDur {
		newTime = old - graceDur
	}
	for i := 0; i < tb.lastNoteOffCount; i++ {
		tb.events[tb.lastNoteOffAt+i].Time = newTime
	}
	return newTime
}
