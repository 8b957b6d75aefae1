// Package proofread holds the span model for analysis results and the
// machinery that moves spans between coordinate spaces: validation against a
// text buffer, mapping from plain-text offsets to document offsets, and
// rendering document spans into editor decorations.
//
// Two coordinate spaces are in play and must never be mixed: plain-text
// offsets (rune indices into the flattened projection the analysis service
// saw) and document offsets (positions in the rich document, where block
// boundaries and non-text leaves also count). A Span is always interpreted
// relative to the buffer it was computed against.
package proofread

import (
	"encoding/json"
	"fmt"
)

// Kind categorizes an issue found by the analysis service.
type Kind string

const (
	KindGrammar  Kind = "grammar"
	KindSpelling Kind = "spelling"
	KindStyle    Kind = "style"
	KindClarity  Kind = "clarity"
)

// Valid reports whether k is one of the known categories.
func (k Kind) Valid() bool {
	switch k {
	case KindGrammar, KindSpelling, KindStyle, KindClarity:
		return true
	}
	return false
}

// Span is a half-open character range [Start, End) tagged with an issue
// category and a suggested replacement.
type Span struct {
	Kind        Kind   `json:"type"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
}

// UnmarshalJSON rejects spans with an unknown category so malformed service
// output is dropped at decode time instead of leaking into rendering.
func (s *Span) UnmarshalJSON(data []byte) error {
	type plain Span
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if !Kind(p.Kind).Valid() {
		return fmt.Errorf("unknown issue type %q", p.Kind)
	}
	*s = Span(p)
	return nil
}
