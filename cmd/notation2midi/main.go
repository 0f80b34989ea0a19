// Command notation2midi compiles a tab-separated gamelan notation score
// into a standard MIDI file: a flat, flag-based single-command CLI with a
// plain summary-then-exit failure path.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/agents"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/corelog"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/pdfout"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/pipeline"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/settings"
	"github.com/marcpaelinck/gamelan-notation-sub000/internal/tables"
)

func main() {
	settingsPath := flag.String("settings", "", "Path to the run settings YAML file (required)")
	autocorrect := flag.Bool("autocorrect", false, "Enable validator autocorrection (overrides the settings file)")
	noMidi := flag.Bool("no-midi", false, "Skip MIDI output even if the settings file requests it")
	noPDF := flag.Bool("no-pdf", false, "Skip PDF output even if the settings file requests it")
	jsonSummary := flag.Bool("json", false, "Print the run summary as JSON instead of plain text")
	flag.Parse()

	if *settingsPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -settings <path> [flags]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	rs, err := settings.LoadRunSettings(*settingsPath)
	if err != nil {
		log.Fatalf("loading settings: %v", err)
	}
	if *autocorrect {
		rs.Options.Autocorrect = true
	}
	if *noMidi {
		rs.Options.SaveMIDI = false
	}
	if *noPDF {
		rs.Options.SavePDF = false
	}

	notationBytes, err := os.ReadFile(rs.Composition.NotationFile)
	if err != nil {
		log.Fatalf("reading notation file: %v", err)
	}

	var midiNotes tables.MidiNoteMap
	if rs.Midi.MidiNoteFile != "" {
		midiNotes, err = tables.LoadMidiNoteMap(rs.Midi.MidiNoteFile)
		if err != nil {
			log.Fatalf("loading midi note table: %v", err)
		}
	}
	noteTable, err := tables.LoadNoteTable(rs.Font.TableFile, midiNotes)
	if err != nil {
		log.Fatalf("loading note table: %v", err)
	}
	tagTable, err := tables.LoadTagTable(rs.Instruments.TagFile, rs.Instruments.Group)
	if err != nil {
		log.Fatalf("loading tag table: %v", err)
	}
	presetTable, err := tables.LoadPresetTable(rs.Midi.PresetFile)
	if err != nil {
		log.Fatalf("loading preset table: %v", err)
	}
	rulePairs, kempyungPairs, err := tables.LoadRulePairs(rs.Instruments.RuleFile)
	if err != nil {
		log.Fatalf("loading rule pairs: %v", err)
	}

	midiPath := rs.Composition.ID + ".mid"

	seed := pipeline.Bag{
		agents.KeyNotationText:  string(notationBytes),
		agents.KeySettings:      rs,
		agents.KeyNoteTable:     noteTable,
		agents.KeyTagTable:      tagTable,
		agents.KeyPresetTable:   presetTable,
		agents.KeyRulePairs:     rulePairs,
		agents.KeyKempyungPairs: kempyungPairs,
	}

	p := pipeline.New(agents.Standard(rs, midiPath, pdfout.NotImplemented{}), seed, corelog.NewStandard(os.Stdout))
	if err := p.Validate(); err != nil {
		log.Fatalf("invalid pipeline sequence: %v", err)
	}

	errs := p.Run(context.Background())
	summary := runSummary{
		Composition: rs.Composition.ID,
		Succeeded:   len(errs) == 0,
		ErrorCount:  len(errs),
	}
	for _, e := range errs {
		summary.Errors = append(summary.Errors, e.Error())
	}

	if *jsonSummary {
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("compiled %s: succeeded=%v errors=%d\n", summary.Composition, summary.Succeeded, summary.ErrorCount)
		for _, e := range summary.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if !summary.Succeeded {
		os.Exit(1)
	}
}

// runSummary is the end-of-run report printed before exiting: error
// counts, with details when present.
type runSummary struct {
	Composition string   `json:"composition"`
	Succeeded   bool     `json:"succeeded"`
	ErrorCount  int      `json:"error_count"`
	Errors      []string `json:"errors,omitempty"`
}
