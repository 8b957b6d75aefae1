package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"inkwell/api/internal/proofread"
)

// fakeCompletions serves a chat-completions endpoint that always answers
// with content, and records the last request for assertions.
type fakeCompletions struct {
	content string
	status  int
	lastReq chatRequest
	calls   int
}

func (f *fakeCompletions) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&f.lastReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": f.content}},
			},
		}
		if status != http.StatusOK {
			resp = map[string]any{"error": map[string]any{"message": "model overloaded"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func testClient(t *testing.T, fake *fakeCompletions) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		ProofreadModel:   "gpt-4o-mini",
		ReadabilityModel: "gpt-4o",
		RewriteModel:     "gpt-4o-mini",
		MaxTextBytes:     100 * 1024,
		Timeout:          5 * time.Second,
	})
}

func TestProofreadParsesSpans(t *testing.T) {
	fake := &fakeCompletions{
		content: `[{"type":"grammar","start":3,"end":7,"suggestion":"went","explanation":"irregular verb"}]`,
	}
	c := testClient(t, fake)

	spans, err := c.Proofread(context.Background(), "He goed to school.")
	if err != nil {
		t.Fatalf("proofread: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	if spans[0].Kind != proofread.KindGrammar || spans[0].Start != 3 || spans[0].End != 7 {
		t.Fatalf("span = %+v", spans[0])
	}
	if fake.lastReq.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", fake.lastReq.Model)
	}
	if fake.lastReq.Temperature != 0.1 || fake.lastReq.MaxTokens != 2000 {
		t.Fatalf("sampling = %v/%d", fake.lastReq.Temperature, fake.lastReq.MaxTokens)
	}
	if len(fake.lastReq.Messages) != 2 || fake.lastReq.Messages[1].Content != "He goed to school." {
		t.Fatalf("messages = %+v", fake.lastReq.Messages)
	}
}

func TestProofreadExtractsListFromProse(t *testing.T) {
	fake := &fakeCompletions{
		content: "Here are the issues I found:\n```json\n[{\"type\":\"spelling\",\"start\":0,\"end\":4,\"suggestion\":\"Their\",\"explanation\":\"homophone\"}]\n```\nLet me know if you need more help!",
	}
	c := testClient(t, fake)

	spans, err := c.Proofread(context.Background(), "Thier dog barks all night.")
	if err != nil {
		t.Fatalf("proofread: %v", err)
	}
	if len(spans) != 1 || spans[0].Suggestion != "Their" {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestProofreadDropsUnknownIssueTypes(t *testing.T) {
	fake := &fakeCompletions{
		content: `[{"type":"grammar","start":3,"end":7,"suggestion":"went","explanation":"irregular verb"},{"type":"punctuation","start":17,"end":18,"suggestion":"!"}]`,
	}
	c := testClient(t, fake)

	spans, err := c.Proofread(context.Background(), "He goed to school.")
	if err != nil {
		t.Fatalf("proofread: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want the unrecognized entry dropped", len(spans))
	}
	if spans[0].Kind != proofread.KindGrammar {
		t.Fatalf("kept span = %+v", spans[0])
	}
}

func TestProofreadCleanTextEmptyResult(t *testing.T) {
	fake := &fakeCompletions{content: `[]`}
	c := testClient(t, fake)

	spans, err := c.Proofread(context.Background(), "This sentence is fine.")
	if err != nil {
		t.Fatalf("proofread: %v", err)
	}
	if spans == nil || len(spans) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", spans)
	}
}

func TestProofreadRejectsBadInput(t *testing.T) {
	fake := &fakeCompletions{content: `[]`}
	c := testClient(t, fake)

	if _, err := c.Proofread(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("blank text: %v", err)
	}
	big := make([]byte, 100*1024+1)
	for i := range big {
		big[i] = 'a'
	}
	if _, err := c.Proofread(context.Background(), string(big)); !errors.Is(err, ErrTextTooLarge) {
		t.Fatalf("oversized text: %v", err)
	}
	if fake.calls != 0 {
		t.Fatal("rejected input still reached the service")
	}
}

func TestProofreadMalformedPayload(t *testing.T) {
	fake := &fakeCompletions{content: "I could not find any structured issues, sorry."}
	c := testClient(t, fake)

	if _, err := c.Proofread(context.Background(), "Some text to check here."); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("want ErrMalformedResponse, got %v", err)
	}
}

func TestProofreadServiceError(t *testing.T) {
	fake := &fakeCompletions{status: http.StatusServiceUnavailable}
	c := testClient(t, fake)

	if _, err := c.Proofread(context.Background(), "Some text to check here."); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestReadabilityParsesMetrics(t *testing.T) {
	fake := &fakeCompletions{
		content: "Sure! Here is the analysis: {\"wordCount\":120,\"sentenceCount\":8,\"averageWordLength\":4.7,\"averageSentenceLength\":15,\"fleschReadingEase\":72.5,\"complexity\":\"moderate\"}",
	}
	c := testClient(t, fake)

	m, err := c.Readability(context.Background(), "A reasonably long passage of text.")
	if err != nil {
		t.Fatalf("readability: %v", err)
	}
	if m.WordCount != 120 || m.Complexity != "moderate" || m.FleschReadingEase != 72.5 {
		t.Fatalf("metrics = %+v", m)
	}
	if fake.lastReq.Model != "gpt-4o" || fake.lastReq.MaxTokens != 500 {
		t.Fatalf("request = %+v", fake.lastReq)
	}
}

func TestRewriteReturnsTextAndSkipsParsing(t *testing.T) {
	fake := &fakeCompletions{content: "  A fresh take, in your own voice.  "}
	c := testClient(t, fake)

	got, err := c.Rewrite(context.Background(), "The original passage.", "My writing sample goes here.")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got != "A fresh take, in your own voice." {
		t.Fatalf("rewritten = %q", got)
	}
	if fake.lastReq.Temperature != 0.7 {
		t.Fatalf("temperature = %v", fake.lastReq.Temperature)
	}
	user := fake.lastReq.Messages[1].Content
	if !strings.Contains(user, "Writing Sample:\nMy writing sample goes here.") || !strings.Contains(user, "Text to Rewrite:\nThe original passage.") {
		t.Fatalf("user message = %q", user)
	}

	if _, err := c.Rewrite(context.Background(), "text", ""); err == nil {
		t.Fatal("expected error for missing writing sample")
	}
}

func TestCachedClientProofread(t *testing.T) {
	fake := &fakeCompletions{
		content: `[{"type":"style","start":0,"end":5,"suggestion":"Maybe","explanation":"weak opener"}]`,
	}
	c := testClient(t, fake)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cached := NewCachedClient(c, rdb, time.Minute)

	ctx := context.Background()
	first, err := cached.Proofread(ctx, "Perhaps this could be better.")
	if err != nil {
		t.Fatalf("first proofread: %v", err)
	}
	second, err := cached.Proofread(ctx, "Perhaps this could be better.")
	if err != nil {
		t.Fatalf("second proofread: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("service called %d times, want 1", fake.calls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Suggestion != "Maybe" {
		t.Fatalf("cached result = %+v", second)
	}

	// different text misses the cache
	if _, err := cached.Proofread(ctx, "A different sentence entirely."); err != nil {
		t.Fatalf("third proofread: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("service called %d times, want 2", fake.calls)
	}
}

func TestCachedClientRewriteUncached(t *testing.T) {
	fake := &fakeCompletions{content: "Rewritten once."}
	c := testClient(t, fake)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cached := NewCachedClient(c, rdb, time.Minute)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cached.Rewrite(ctx, "Same text.", "Same sample."); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
	}
	if fake.calls != 2 {
		t.Fatalf("service called %d times, want 2 (rewrite is never cached)", fake.calls)
	}
}
