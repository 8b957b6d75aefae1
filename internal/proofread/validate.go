package proofread

// ValidateSpans filters spans against a text buffer of textLen characters.
// A span is kept iff 0 <= Start < End <= textLen. Rejection is silent toward
// the caller's users; the dropped count is returned so callers can log it.
func ValidateSpans(spans []Span, textLen int) (kept []Span, dropped int) {
	kept = make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > textLen || s.Start >= s.End {
			dropped++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}
