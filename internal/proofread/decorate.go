package proofread

// Decoration is one inline marker over a document-coordinate range. From/To
// are document offsets; IssueIndex points back into the span list so the
// client can wire hover and click to the right suggestion card.
type Decoration struct {
	From       int    `json:"from"`
	To         int    `json:"to"`
	Class      string `json:"class"`
	Style      string `json:"style"`
	IssueIndex int    `json:"issueIndex"`
}

// NoSelection marks the absence of an active span.
const NoSelection = -1

// Border colors by category; spelling and grammar share red, style is blue,
// clarity yellow.
var borderColors = map[Kind]string{
	KindGrammar:  "rgba(239, 68, 68, 0.7)",
	KindSpelling: "rgba(239, 68, 68, 0.7)",
	KindStyle:    "rgba(59, 130, 246, 0.7)",
	KindClarity:  "rgba(253, 224, 71, 0.7)",
}

// Highlight fills used when a span is selected.
var highlightColors = map[Kind]string{
	KindGrammar:  "rgba(239, 68, 68, 0.2)",
	KindSpelling: "rgba(239, 68, 68, 0.2)",
	KindStyle:    "rgba(59, 130, 246, 0.2)",
	KindClarity:  "rgba(253, 224, 71, 0.2)",
}

// Decorate renders document-coordinate spans into markers. selected is the
// index of the active span or NoSelection. Spans whose range is out of
// bounds for docSize are skipped: the document may have mutated again after
// mapping, so this re-checks what the validator already checked upstream.
//
// Decorate is a pure function of its inputs and never touches the document;
// calling it twice with the same arguments yields the same markers.
func Decorate(spans []Span, selected int, docSize int) []Decoration {
	decorations := make([]Decoration, 0, len(spans))
	for i, s := range spans {
		if s.Start >= s.End || s.Start < 0 || s.End > docSize {
			continue
		}
		style := "border-bottom: 2px solid " + borderColors[s.Kind] + ";"
		if i == selected {
			style += "background: " + highlightColors[s.Kind] + ";"
		}
		decorations = append(decorations, Decoration{
			From:       s.Start,
			To:         s.End,
			Class:      "proof-mark",
			Style:      style,
			IssueIndex: i,
		})
	}
	return decorations
}
