package proofread

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"inkwell/api/internal/richtext"
)

func mustParse(t *testing.T, raw string) *richtext.Doc {
	t.Helper()
	doc, err := richtext.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func paragraphDoc(texts ...string) string {
	var blocks []string
	for _, text := range texts {
		blocks = append(blocks, `{"type":"paragraph","content":[{"type":"text","text":"`+text+`"}]}`)
	}
	return `{"type":"doc","content":[` + strings.Join(blocks, ",") + `]}`
}

func TestValidateSpans(t *testing.T) {
	const textLen = 20
	cases := []struct {
		name string
		span Span
		keep bool
	}{
		{"in range", Span{Kind: KindGrammar, Start: 5, End: 10}, true},
		{"full buffer", Span{Kind: KindSpelling, Start: 0, End: 20}, true},
		{"empty range", Span{Kind: KindGrammar, Start: 5, End: 5}, false},
		{"inverted range", Span{Kind: KindGrammar, Start: 10, End: 5}, false},
		{"negative start", Span{Kind: KindStyle, Start: -1, End: 5}, false},
		{"end past buffer", Span{Kind: KindClarity, Start: 5, End: 25}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kept, dropped := ValidateSpans([]Span{tc.span}, textLen)
			if tc.keep && (len(kept) != 1 || dropped != 0) {
				t.Fatalf("kept=%d dropped=%d, want span kept", len(kept), dropped)
			}
			if !tc.keep && (len(kept) != 0 || dropped != 1) {
				t.Fatalf("kept=%d dropped=%d, want span dropped", len(kept), dropped)
			}
		})
	}
}

func TestValidateSpansKeepsOrder(t *testing.T) {
	spans := []Span{
		{Kind: KindGrammar, Start: 0, End: 3, Suggestion: "a"},
		{Kind: KindSpelling, Start: 9, End: 9},
		{Kind: KindStyle, Start: 4, End: 8, Suggestion: "b"},
	}
	kept, dropped := ValidateSpans(spans, 10)
	if dropped != 1 || len(kept) != 2 {
		t.Fatalf("kept=%d dropped=%d", len(kept), dropped)
	}
	if kept[0].Suggestion != "a" || kept[1].Suggestion != "b" {
		t.Fatalf("order not preserved: %+v", kept)
	}
}

func TestSpanDecodeRejectsUnknownKind(t *testing.T) {
	var s Span
	err := json.Unmarshal([]byte(`{"type":"syntax","start":0,"end":4}`), &s)
	if err == nil {
		t.Fatal("expected error for unknown issue type")
	}
	if err := json.Unmarshal([]byte(`{"type":"spelling","start":0,"end":4,"suggestion":"went"}`), &s); err != nil {
		t.Fatalf("decode valid span: %v", err)
	}
	if s.Kind != KindSpelling || s.Suggestion != "went" {
		t.Fatalf("decoded span = %+v", s)
	}
}

func TestMapToDocIdentityForSingleParagraph(t *testing.T) {
	doc := mustParse(t, paragraphDoc("He goed to school."))
	text := doc.PlainText()
	spans := []Span{{Kind: KindGrammar, Start: 3, End: 8, Suggestion: "went "}}

	res := MapToDoc(doc, text, spans)
	if len(res.Spans) != 1 {
		t.Fatalf("mapped %d spans, want 1", len(res.Spans))
	}
	got := res.Spans[0]
	if got.Start != 3 || got.End != 8 {
		t.Fatalf("mapped to [%d,%d), want [3,8)", got.Start, got.End)
	}
	if got.Suggestion != "went " {
		t.Fatalf("suggestion lost: %+v", got)
	}
	if res.Drifted != 0 || res.Recovered != 0 || res.Discarded != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res)
	}
}

func TestMapToDocOffsetsPastObjectLeaf(t *testing.T) {
	doc := mustParse(t, `{"type":"doc","content":[
		{"type":"paragraph","content":[{"type":"text","text":"ab"}]},
		{"type":"horizontalRule"},
		{"type":"paragraph","content":[{"type":"text","text":"cd"}]}
	]}`)
	text := doc.PlainText() // "ab\ncd"
	spans := []Span{{Kind: KindStyle, Start: 3, End: 5}}

	res := MapToDoc(doc, text, spans)
	if len(res.Spans) != 1 {
		t.Fatalf("mapped %d spans, want 1", len(res.Spans))
	}
	got := res.Spans[0]
	// The rule sits at document offset 3, so "cd" lives at [4,6).
	if got.Start != 4 || got.End != 6 {
		t.Fatalf("mapped to [%d,%d), want [4,6)", got.Start, got.End)
	}
	if doc.TextBetween(got.Start, got.End) != "cd" {
		t.Fatalf("mapped range reads %q", doc.TextBetween(got.Start, got.End))
	}
}

func TestMapToDocSpanEndingAtBuffer(t *testing.T) {
	doc := mustParse(t, paragraphDoc("first", "second"))
	text := doc.PlainText()
	spans := []Span{{Kind: KindClarity, Start: 6, End: 12}}

	res := MapToDoc(doc, text, spans)
	if len(res.Spans) != 1 {
		t.Fatalf("mapped %d spans, want 1", len(res.Spans))
	}
	if got := res.Spans[0]; got.Start != 6 || got.End != 12 {
		t.Fatalf("mapped to [%d,%d), want [6,12)", got.Start, got.End)
	}
}

func TestMapToDocRealignsAfterPrefixInsertion(t *testing.T) {
	// Analysis ran against the old projection; the user then typed a prefix.
	doc := mustParse(t, paragraphDoc("Oh! He goed to school."))
	stale := "He goed to school."
	spans := []Span{{Kind: KindGrammar, Start: 3, End: 8, Suggestion: "went "}}

	res := MapToDoc(doc, stale, spans)
	if len(res.Spans) != 1 {
		t.Fatalf("mapped %d spans, want 1: %+v", len(res.Spans), res)
	}
	got := res.Spans[0]
	if got.Start != 7 || got.End != 12 {
		t.Fatalf("mapped to [%d,%d), want [7,12)", got.Start, got.End)
	}
	if doc.TextBetween(got.Start, got.End) != "goed " {
		t.Fatalf("mapped range reads %q", doc.TextBetween(got.Start, got.End))
	}
	if res.Drifted == 0 {
		t.Fatal("expected drift to be reported")
	}
}

func TestMapToDocFallbackSubstringSearch(t *testing.T) {
	doc := mustParse(t, paragraphDoc("He goed to school."))
	// Projection so far out of date that the position walk finds no
	// alignment at all; only the substring search can place the span.
	stale := "zz goed"
	spans := []Span{{Kind: KindSpelling, Start: 3, End: 7}}

	res := MapToDoc(doc, stale, spans)
	if len(res.Spans) != 1 {
		t.Fatalf("mapped %d spans, want 1: %+v", len(res.Spans), res)
	}
	got := res.Spans[0]
	if got.Start != 3 || got.End != 7 {
		t.Fatalf("mapped to [%d,%d), want [3,7)", got.Start, got.End)
	}
	if res.Recovered != 1 {
		t.Fatalf("recovered = %d, want 1", res.Recovered)
	}
}

func TestMapToDocDiscardsUnlocatableSpan(t *testing.T) {
	doc := mustParse(t, paragraphDoc("He goed to school."))
	stale := "zz qqqq"
	spans := []Span{{Kind: KindSpelling, Start: 3, End: 7}}

	res := MapToDoc(doc, stale, spans)
	if len(res.Spans) != 0 {
		t.Fatalf("mapped %d spans, want none", len(res.Spans))
	}
	if res.Discarded != 1 {
		t.Fatalf("discarded = %d, want 1", res.Discarded)
	}
}

func TestMapToDocEmptyInput(t *testing.T) {
	doc := mustParse(t, paragraphDoc("anything"))
	res := MapToDoc(doc, "anything", nil)
	if res.Spans == nil || len(res.Spans) != 0 {
		t.Fatalf("want empty non-nil span slice, got %#v", res.Spans)
	}
}

func TestDecorate(t *testing.T) {
	spans := []Span{
		{Kind: KindGrammar, Start: 3, End: 8},
		{Kind: KindStyle, Start: 10, End: 14},
	}
	decos := Decorate(spans, NoSelection, 20)
	if len(decos) != 2 {
		t.Fatalf("got %d decorations, want 2", len(decos))
	}
	if decos[0].From != 3 || decos[0].To != 8 || decos[0].IssueIndex != 0 {
		t.Fatalf("decoration 0 = %+v", decos[0])
	}
	if !strings.Contains(decos[0].Style, "rgba(239, 68, 68, 0.7)") {
		t.Fatalf("grammar border missing: %q", decos[0].Style)
	}
	if !strings.Contains(decos[1].Style, "rgba(59, 130, 246, 0.7)") {
		t.Fatalf("style border missing: %q", decos[1].Style)
	}
	for _, d := range decos {
		if strings.Contains(d.Style, "background") {
			t.Fatalf("unselected span got a highlight: %q", d.Style)
		}
		if d.Class != "proof-mark" {
			t.Fatalf("class = %q", d.Class)
		}
	}

	// rendering is a pure function of its inputs
	if again := Decorate(spans, NoSelection, 20); !reflect.DeepEqual(decos, again) {
		t.Fatalf("repeated render differs:\n%+v\n%+v", decos, again)
	}
}

func TestDecorateSelectedHighlight(t *testing.T) {
	spans := []Span{
		{Kind: KindClarity, Start: 0, End: 4},
		{Kind: KindSpelling, Start: 6, End: 9},
	}
	decos := Decorate(spans, 1, 20)
	if strings.Contains(decos[0].Style, "background") {
		t.Fatalf("unselected span highlighted: %q", decos[0].Style)
	}
	if !strings.Contains(decos[1].Style, "background: rgba(239, 68, 68, 0.2)") {
		t.Fatalf("selected span missing highlight: %q", decos[1].Style)
	}
}

func TestDecorateSkipsOutOfBounds(t *testing.T) {
	spans := []Span{
		{Kind: KindGrammar, Start: 5, End: 5},
		{Kind: KindGrammar, Start: -1, End: 4},
		{Kind: KindGrammar, Start: 18, End: 25},
		{Kind: KindGrammar, Start: 2, End: 6},
	}
	decos := Decorate(spans, NoSelection, 20)
	if len(decos) != 1 {
		t.Fatalf("got %d decorations, want 1", len(decos))
	}
	// IssueIndex refers to the original slice, not the filtered output.
	if decos[0].IssueIndex != 3 {
		t.Fatalf("issue index = %d, want 3", decos[0].IssueIndex)
	}
}

// The full pipeline on the canonical correction example: analysis output in
// plain-text offsets becomes renderable document decorations.
func TestPipelineEndToEnd(t *testing.T) {
	doc := mustParse(t, paragraphDoc("He goed to school."))
	text := doc.PlainText()

	raw := `[{"type":"grammar","start":3,"end":7,"suggestion":"went","explanation":"past tense of go"}]`
	var spans []Span
	if err := json.Unmarshal([]byte(raw), &spans); err != nil {
		t.Fatalf("decode spans: %v", err)
	}

	kept, dropped := ValidateSpans(spans, len([]rune(text)))
	if dropped != 0 || len(kept) != 1 {
		t.Fatalf("validation kept=%d dropped=%d", len(kept), dropped)
	}

	res := MapToDoc(doc, text, kept)
	if len(res.Spans) != 1 {
		t.Fatalf("mapped %d spans", len(res.Spans))
	}
	if got := doc.TextBetween(res.Spans[0].Start, res.Spans[0].End); got != "goed" {
		t.Fatalf("mapped range reads %q, want %q", got, "goed")
	}

	decos := Decorate(res.Spans, 0, doc.Size())
	if len(decos) != 1 {
		t.Fatalf("got %d decorations", len(decos))
	}
	if decos[0].From != 3 || decos[0].To != 7 {
		t.Fatalf("decoration range [%d,%d), want [3,7)", decos[0].From, decos[0].To)
	}
	if !strings.Contains(decos[0].Style, "border-bottom") || !strings.Contains(decos[0].Style, "background") {
		t.Fatalf("decoration style = %q", decos[0].Style)
	}
}
