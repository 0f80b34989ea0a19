// Package pdfout describes the input contract of the PDF score renderer.
// Rendering itself lives outside this module; this package exists so the
// pipeline has a concrete Agent to wire for the SavePDF option, and so a
// real renderer can be dropped in later behind the same interface without
// touching the rest of the core.
package pdfout

import (
	"fmt"

	"github.com/marcpaelinck/gamelan-notation-sub000/internal/model"
)

// Renderer turns a validated score into a PDF at path. The core only ever
// calls this through the interface; the only implementation in this
// package is NotImplemented, which produces no PDF.
type Renderer interface {
	Render(score *model.Score, path string) error
}

// NotImplemented is the Renderer used when no real renderer has been wired
// in: it reports the score it was asked to render so a caller can confirm
// the contract is satisfied up to (but not including) the renderer itself.
type NotImplemented struct{}

// Render always fails; rendering the PDF itself is out of scope here.
func (NotImplemented) Render(score *model.Score, path string) error {
	return fmt.Errorf("pdfout: rendering %q for %q is out of scope of this core", path, score.Title)
}
