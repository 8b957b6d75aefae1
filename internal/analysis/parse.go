package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"inkwell/api/internal/proofread"
)

// parseSpanList decodes a span list from a completion payload. The model is
// told to return bare JSON but routinely wraps it in prose or code fences,
// so on a failed whole-payload parse the outermost [...] is extracted and
// parsed instead. Entries with an unknown issue type or malformed fields are
// dropped individually; only a list that cannot be decoded at all is an
// error.
func parseSpanList(payload string) ([]proofread.Span, error) {
	trimmed := strings.TrimSpace(payload)
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		inner, ok := extractDelimited(trimmed, '[', ']')
		if !ok {
			return nil, fmt.Errorf("%w: no span list found", ErrMalformedResponse)
		}
		if err := json.Unmarshal([]byte(inner), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	spans := make([]proofread.Span, 0, len(raw))
	for _, entry := range raw {
		var sp proofread.Span
		if err := json.Unmarshal(entry, &sp); err != nil {
			continue
		}
		spans = append(spans, sp)
	}
	return spans, nil
}

// parseMetrics decodes a readability record, with the same fallback for
// payloads that wrap the {...} object in prose.
func parseMetrics(payload string) (Metrics, error) {
	trimmed := strings.TrimSpace(payload)
	var m Metrics
	if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
		return m, nil
	}
	inner, ok := extractDelimited(trimmed, '{', '}')
	if !ok {
		return Metrics{}, fmt.Errorf("%w: no metrics object found", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(inner), &m); err != nil {
		return Metrics{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return m, nil
}

// extractDelimited returns the substring from the first open delimiter to
// the last close delimiter, inclusive.
func extractDelimited(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
