package proofread

import (
	"log"
	"strings"

	"inkwell/api/internal/richtext"
)

// MapResult is the outcome of translating one batch of plain-text spans into
// document coordinates.
type MapResult struct {
	Spans []Span // document-coordinate spans, original order and metadata
	// Sources[i] is the index into the input slice that produced Spans[i],
	// so callers holding the plain-text spans can correlate the two lists.
	Sources []int
	// Diagnostics; never surfaced to end users.
	Drifted    int // projection characters that no longer lined up
	Recovered  int // spans rescued by the fallback substring search
	Discarded  int // spans dropped after both lookup and fallback failed
	Mismatched int // spans dropped by the verification pass
}

// MapToDoc translates validated plain-text spans into document-coordinate
// spans against the document's current state.
//
// text must be the plain-text projection the spans were computed against,
// which may be stale relative to doc. The mapping is rebuilt from scratch on
// every call; it is never cached because any document mutation invalidates it.
func MapToDoc(doc *richtext.Doc, text string, spans []Span) MapResult {
	var res MapResult
	res.Spans = []Span{}
	if len(spans) == 0 {
		return res
	}

	projection := []rune(text)
	posMap, drifted := buildPositionMap(doc, projection)
	res.Drifted = drifted
	if drifted > 0 {
		log.Printf("proofread: position map drift, %d characters skipped", drifted)
	}

	// Document text sequence for the fallback search; rune index == offset.
	docRunes := doc.DocText()
	docText := string(docRunes)

	for i, s := range spans {
		// Spans were validated against the projection, so s.End <= len(projection).
		target := string(projection[s.Start:s.End])

		docStart, okStart := posMap[s.Start]
		docEndBase, okEnd := posMap[s.End-1]
		if okStart && okEnd {
			mapped := s
			mapped.Start = docStart
			// End is exclusive: resolve via the last covered character,
			// never via posMap[s.End], which is out of range when the span
			// touches the end of the buffer.
			mapped.End = docEndBase + 1
			if verify(doc, mapped, target) {
				res.Spans = append(res.Spans, mapped)
				res.Sources = append(res.Sources, i)
				continue
			}
			res.Mismatched++
			// fall through to the substring search; the document may have
			// shifted underneath the direct mapping
		}

		// Fallback: first occurrence of the exact substring in document
		// order. When the same substring occurs more than once this picks
		// the earliest match, which may not be the span the service meant;
		// there is no way to disambiguate from offsets alone.
		if idx := strings.Index(docText, target); idx >= 0 {
			offset := len([]rune(docText[:idx]))
			mapped := s
			mapped.Start = offset
			mapped.End = offset + len([]rune(target))
			if verify(doc, mapped, target) {
				res.Recovered++
				res.Spans = append(res.Spans, mapped)
				res.Sources = append(res.Sources, i)
				continue
			}
			res.Mismatched++
			continue
		}
		res.Discarded++
	}
	return res
}

// buildPositionMap walks the document's text sequence against the (possibly
// stale) projection, recording the document offset of every projection
// character that still lines up. Characters that have drifted are skipped
// rather than aborting the walk, so spans in untouched regions still map.
func buildPositionMap(doc *richtext.Doc, projection []rune) (map[int]int, int) {
	posMap := make(map[int]int, len(projection))
	plainIdx := 0
	drifted := 0
	doc.Walk(func(seg richtext.Segment) bool {
		if seg.Kind == richtext.SegObject {
			return true
		}
		for i, r := range []rune(seg.Text) {
			if plainIdx >= len(projection) {
				return false
			}
			if r == projection[plainIdx] {
				posMap[plainIdx] = seg.Offset + i
				plainIdx++
			} else {
				// drift: this document character has no counterpart at the
				// current projection index; hold the projection position and
				// let later document characters realign
				drifted++
			}
		}
		return true
	})
	return posMap, drifted
}

// verify re-extracts the mapped document range and compares it against the
// original plain-text substring. A mismatch means the document changed
// between projection and mapping; such spans are dropped, not reported,
// because the next analysis cycle supersedes them anyway.
func verify(doc *richtext.Doc, mapped Span, want string) bool {
	return doc.TextBetween(mapped.Start, mapped.End) == want
}
