package model

// MetaData is the tagged union of directives that can appear in a gongan's
// metadata line. Each concrete *Meta type implements the
// interface purely as a marker; the MetadataBinder switches on the dynamic
// type to dispatch processing.
type MetaData interface {
	metaTag() string
	GetScope() Scope
}

// Base carries the fields common to every metadata variant: the scope it
// applies at, and the pass(es) it applies to (DefaultPass meaning all).
type Base struct {
	Scope Scope
	Pass  Pass
}

func (b Base) GetScope() Scope { return b.Scope }

// PartMeta names the part of the piece this gongan begins (e.g. "pengawak").
type PartMeta struct {
	Base
	Name string
}

func (PartMeta) metaTag() string { return "PART" }

// CommentMeta is a free-text annotation carried through to the corrected
// notation output but otherwise inert.
type CommentMeta struct {
	Base
	Text string
}

func (CommentMeta) metaTag() string { return "COMMENT" }

// LabelMeta binds a name to the gongan's first beat, resolvable by
// GOTO/SEQUENCE directives regardless of source order.
type LabelMeta struct {
	Base
	Name string
}

func (LabelMeta) metaTag() string { return "LABEL" }

// GotoMeta transfers flow to a labeled beat, either unconditionally or only
// on specific passes, optionally from a beat other than the gongan's last.
type GotoMeta struct {
	Base
	Label      string
	Passes     []Pass
	FromBeat   int // 1-based beat within the owning gongan; 0 means last beat
}

func (GotoMeta) metaTag() string { return "GOTO" }

// RepeatMeta replays the whole gongan, from its last beat back to its first,
// a fixed number of times before falling through.
type RepeatMeta struct {
	Base
	Count int
}

func (RepeatMeta) metaTag() string { return "REPEAT" }

// SequenceMeta splices a named chain of gongans together, end to end, by
// installing trailing gotos.
type SequenceMeta struct {
	Base
	Labels []string
}

func (SequenceMeta) metaTag() string { return "SEQUENCE" }

// TempoMeta schedules a tempo change, instant or ramped, beginning at
// FirstBeat of the owning gongan.
type TempoMeta struct {
	Base
	BPM        int
	Steps      int
	FirstBeat  int
}

func (TempoMeta) metaTag() string { return "TEMPO" }

// DynamicsMeta schedules a velocity-level change for a set of positions
// (all positions in the gongan, if Positions is empty).
type DynamicsMeta struct {
	Base
	Level     DynamicLevel
	Steps     int
	Positions []Position
	FirstBeat int
}

func (DynamicsMeta) metaTag() string { return "DYNAMICS" }

// KempliMeta switches the kempli (timekeeping gong) on or off for the
// owning gongan, or only for the listed beats when Beats is non-empty
// (the optional beats parameter of the KEMPLI directive).
type KempliMeta struct {
	Base
	Status bool
	Beats  []int // 1-based; empty means the whole gongan
}

func (KempliMeta) metaTag() string { return "KEMPLI" }

// SuppressMeta silences specific positions, e.g. to drop an instrument
// from a variation. Beats and Passes narrow which beats/passes are
// affected; empty means every beat/pass of the owning gongan.
type SuppressMeta struct {
	Base
	Positions []Position
	Beats     []int // 1-based; empty means the whole gongan
	Passes    []Pass
}

func (SuppressMeta) metaTag() string { return "SUPPRESS" }

// GonganMeta declares the gongan's type, switching whether the Validator
// enforces power-of-two beat durations and whether ScoreBuilder installs
// default kempli strokes.
type GonganMeta struct {
	Base
	Type GonganType
}

func (GonganMeta) metaTag() string { return "GONGAN" }

// OctavateMeta shifts a position's notes by whole octaves for the gongan,
// used when a shorthand stave was written in a neighboring instrument's
// natural range.
type OctavateMeta struct {
	Base
	Position Position
	Octaves  int
}

func (OctavateMeta) metaTag() string { return "OCTAVATE" }

// WaitMeta appends a trailing rest beat of round(4*Seconds) duration to
// the owning gongan (used for fermatas and staging gaps); the appended
// beat carries no kempli pulse and is exempt from the beat-duration check.
type WaitMeta struct {
	Base
	Seconds float64
}

func (WaitMeta) metaTag() string { return "WAIT" }

// ValidationMeta suppresses one or more Validator checks on specific beats
// of the owning gongan.
type ValidationMeta struct {
	Base
	Properties []ValidationProperty
	Beats      []int // 1-based; empty means the whole gongan
}

func (ValidationMeta) metaTag() string { return "VALIDATION" }
