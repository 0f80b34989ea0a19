// Package pipeline drives the compile run as an ordered sequence of
// Agents: each agent declares the data keys it requires and produces, the
// sequence is checked for dataflow feasibility before anything runs, and
// execution aborts the moment an agent reports accumulated errors.
package pipeline

import (
	"context"
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/corelog"
)

// Key names one item of data threaded between agents (e.g. "score",
// "note_table", "midi_file"). Agents declare the keys they read and write so
// Pipeline.Validate can check feasibility without running anything.
type Key string

// Bag is the data threaded between agents, keyed by Key.
type Bag map[Key]any

// Get retrieves a typed value from the bag, reporting whether it was
// present. Callers name the expected type as the type argument T; a value
// of another type is reported as absent.
func Get[T any](b Bag, k Key) (T, bool) {
	v, ok := b[k]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Agent is one stage of the pipeline. RequiredInputs and Produces describe
// the agent's dataflow contract; RunConditionSatisfied lets an agent opt
// out entirely (e.g. the PDF agent when SavePDF is false) without the
// driver needing to know why. Run performs the stage's work, reading its
// inputs from and writing its outputs to bag, and returns the accumulated
// errors for this stage; the pipeline aborts at the stage boundary if any
// occurred.
type Agent interface {
	Name() string
	RequiredInputs() []Key
	Produces() []Key
	RunConditionSatisfied(bag Bag) bool
	Run(ctx context.Context, bag Bag) []error
}

// Pipeline is an ordered list of Agents plus the Bag threaded through them.
type Pipeline struct {
	Agents []Agent
	Bag    Bag
	Log    corelog.Sink
}

// New builds a Pipeline seeded with an initial bag (typically just the run
// settings and note table) and a log sink.
func New(agents []Agent, seed Bag, sink corelog.Sink) *Pipeline {
	bag := Bag{}
	for k, v := range seed {
		bag[k] = v
	}
	if sink == nil {
		sink = corelog.Discard{}
	}
	return &Pipeline{Agents: agents, Bag: bag, Log: sink}
}

// Validate checks that every agent's required inputs will be available by
// the time it runs, given what earlier agents (and the seed bag) produce.
// It does not evaluate RunConditionSatisfied, since that depends on runtime
// bag contents the driver does not have until Run executes prior stages;
// an agent skipped at runtime simply leaves its declared outputs absent,
// which a later agent's own RunConditionSatisfied must account for.
func (p *Pipeline) Validate() error {
	available := map[Key]bool{}
	for k := range p.Bag {
		available[k] = true
	}
	for _, agent := range p.Agents {
		var missing []Key
		for _, k := range agent.RequiredInputs() {
			if !available[k] {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("invalid pipeline sequence: agent %q is missing input(s) %v", agent.Name(), missing)
		}
		for _, k := range agent.Produces() {
			available[k] = true
		}
	}
	return nil
}

// Run executes every agent in order, skipping those whose run condition is
// not satisfied. It stops and returns the stage's errors the moment an
// agent reports any; it does not run later agents in that case.
func (p *Pipeline) Run(ctx context.Context) []error {
	for _, agent := range p.Agents {
		if !agent.RunConditionSatisfied(p.Bag) {
			p.Log.Log(corelog.Entry{Level: corelog.LevelInfo, Message: fmt.Sprintf("skipping %s: run condition not satisfied", agent.Name())})
			continue
		}
		p.Log.Log(corelog.Entry{Level: corelog.LevelInfo, Message: fmt.Sprintf("running %s", agent.Name())})
		if errs := agent.Run(ctx, p.Bag); len(errs) > 0 {
			for _, err := range errs {
				p.Log.Log(corelog.Entry{Level: corelog.LevelError, Message: err.Error()})
			}
			return errs
		}
	}
	return nil
}
