package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"inkwell/api/internal/proofread"
	"inkwell/api/internal/richtext"
)

var (
	ErrNoSession     = errors.New("no open session for document")
	ErrNotOwner      = errors.New("session belongs to another user")
	ErrSessionClosed = errors.New("session is closed")
	ErrNoSuchIssue   = errors.New("no issue at that index")
)

// NoticeAnalysisFailed is surfaced to the user when the analysis service is
// unreachable or returns garbage. Issues are cleared, never retried.
const NoticeAnalysisFailed = "Analysis is temporarily unavailable."

// Analyzer is the slice of the analysis client a session needs.
type Analyzer interface {
	Proofread(ctx context.Context, text string) ([]proofread.Span, error)
}

// Saver persists a session's content. Implementations re-check ownership.
type Saver interface {
	SaveContent(ctx context.Context, docID, ownerID string, content []byte, wordCount, charCount int) error
}

// SessionConfig carries the timing knobs a session and its scheduler use.
type SessionConfig struct {
	TypingWindow     time.Duration
	BoundaryWindow   time.Duration
	MinAnalyzeLen    int
	AutosaveInterval time.Duration
	AnalysisTimeout  time.Duration
}

// Session is the server-side state of one open document. All content
// mutations go through a single path (setContent) so the plain-text
// projection, the scheduler and the issue set always describe the same
// buffer. Analysis completions arrive on their own goroutines and are
// re-checked for staleness before touching state.
type Session struct {
	DocID   string
	OwnerID string

	analyzer Analyzer
	saver    Saver
	sched    *Scheduler
	cfg      SessionConfig

	mu      sync.Mutex
	doc     *richtext.Doc
	content []byte
	plain   string

	// issue state, always in the coordinates of analyzedText
	analyzedText string
	spans        []proofread.Span
	selected     int
	notice       string

	lastSaved string
	touched   time.Time
	done      chan struct{}
	closed    bool
}

// Issue is one reported problem in document coordinates, ready for display.
type Issue struct {
	Kind        proofread.Kind `json:"type"`
	From        int            `json:"from"`
	To          int            `json:"to"`
	Suggestion  string         `json:"suggestion"`
	Explanation string         `json:"explanation"`
}

// IssuesView is the render-ready issue state of a session.
type IssuesView struct {
	Issues      []Issue                `json:"issues"`
	Decorations []proofread.Decoration `json:"decorations"`
	Selected    int                    `json:"selected"`
	Notice      string                 `json:"notice,omitempty"`
}

func newSession(docID, ownerID string, content []byte, analyzer Analyzer, saver Saver, cfg SessionConfig) (*Session, error) {
	doc, err := richtext.Parse(content)
	if err != nil {
		return nil, err
	}
	s := &Session{
		DocID:     docID,
		OwnerID:   ownerID,
		analyzer:  analyzer,
		saver:     saver,
		cfg:       cfg,
		doc:       doc,
		content:   append([]byte(nil), content...),
		plain:     doc.PlainText(),
		selected:  proofread.NoSelection,
		lastSaved: string(content),
		touched:   time.Now(),
		done:      make(chan struct{}),
	}
	s.sched = NewScheduler(cfg.TypingWindow, cfg.BoundaryWindow, cfg.MinAnalyzeLen, s.runAnalysis, s.clearIssues)
	if cfg.AutosaveInterval > 0 {
		go s.autosaveLoop()
	}
	// initial load analyzes immediately
	s.sched.Trigger(s.plain)
	return s, nil
}

// Edit replaces the session's content with a new editor payload.
func (s *Session) Edit(content []byte) error {
	doc, err := richtext.Parse(content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev := s.setContent(doc, content)
	next := s.plain
	s.mu.Unlock()

	s.sched.Notify(prev, next)
	return nil
}

// setContent is the single mutation path for the document buffer. Callers
// hold s.mu. It returns the previous plain-text projection.
func (s *Session) setContent(doc *richtext.Doc, content []byte) (prevPlain string) {
	prevPlain = s.plain
	s.doc = doc
	s.content = append([]byte(nil), content...)
	s.plain = doc.PlainText()
	s.touched = time.Now()
	return prevPlain
}

// Issues maps the current issue set onto the current document state. The
// mapping is recomputed on every call; spans invalidated by edits since the
// last analysis drop out here via the mapper's verification.
func (s *Session) Issues() IssuesView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issuesLocked()
}

func (s *Session) issuesLocked() IssuesView {
	res := proofread.MapToDoc(s.doc, s.analyzedText, s.spans)
	selected := s.selected
	if selected < 0 || selected >= len(res.Spans) {
		selected = proofread.NoSelection
	}
	issues := make([]Issue, len(res.Spans))
	for i, sp := range res.Spans {
		issues[i] = Issue{
			Kind:        sp.Kind,
			From:        sp.Start,
			To:          sp.End,
			Suggestion:  sp.Suggestion,
			Explanation: sp.Explanation,
		}
	}
	return IssuesView{
		Issues:      issues,
		Decorations: proofread.Decorate(res.Spans, selected, s.doc.Size()),
		Selected:    selected,
		Notice:      s.notice,
	}
}

// Select marks one issue as active for highlight rendering, or clears the
// selection when index is NoSelection.
func (s *Session) Select(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		index = proofread.NoSelection
	}
	s.selected = index
	s.touched = time.Now()
}

// Apply accepts the suggestion of the issue at index (as numbered by the
// current Issues view) and rewrites the document through the normal
// mutation path. It returns the updated content payload.
func (s *Session) Apply(index int) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	res := proofread.MapToDoc(s.doc, s.analyzedText, s.spans)
	if index < 0 || index >= len(res.Spans) {
		s.mu.Unlock()
		return nil, ErrNoSuchIssue
	}
	span := res.Spans[index]
	if err := s.doc.ReplaceRange(span.Start, span.End, span.Suggestion); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("apply suggestion: %w", err)
	}
	content, err := s.doc.JSON()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	prev := s.setContent(s.doc, content)
	next := s.plain
	// drop the consumed span so it cannot be applied twice; the remaining
	// spans keep their plain-text coordinates and re-verify against the
	// mutated document on the next Issues call
	source := res.Sources[index]
	s.spans = append(s.spans[:source], s.spans[source+1:]...)
	if s.selected == index {
		s.selected = proofread.NoSelection
	}
	s.mu.Unlock()

	s.sched.Notify(prev, next)
	return content, nil
}

// Save persists the current content if it differs from the last persisted
// snapshot. Autosave and manual save both funnel through here, so a save
// racing an autosave tick collapses into one write.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if string(s.content) == s.lastSaved {
		s.mu.Unlock()
		return nil
	}
	content := append([]byte(nil), s.content...)
	words := richtext.WordCount(s.plain)
	chars := richtext.CharCount(s.plain)
	s.mu.Unlock()

	if err := s.saver.SaveContent(ctx, s.DocID, s.OwnerID, content, words, chars); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSaved = string(content)
	s.mu.Unlock()
	return nil
}

// Close stops the scheduler and autosave loop and flushes unsaved content.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.sched.Stop()
	return s.Save(ctx)
}

// Content returns the current editor payload.
func (s *Session) Content() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.content...)
}

// PlainText returns the current plain-text projection.
func (s *Session) PlainText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plain
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// runAnalysis is the scheduler's dispatch target. It runs on the
// scheduler's own goroutine, so the service round-trip never blocks
// editing or session open.
func (s *Session) runAnalysis(seq uint64, text string) {
	ctx := context.Background()
	if s.cfg.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
		defer cancel()
	}
	spans, err := s.analyzer.Proofread(ctx, text)
	s.complete(seq, text, spans, err)
}

func (s *Session) complete(seq uint64, text string, spans []proofread.Span, err error) {
	if !s.sched.Latest(seq) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		log.Printf("editor: analysis failed for document %s: %v", s.DocID, err)
		s.spans = nil
		s.analyzedText = ""
		s.notice = NoticeAnalysisFailed
		return
	}
	kept, dropped := proofread.ValidateSpans(spans, richtext.CharCount(text))
	if dropped > 0 {
		log.Printf("editor: dropped %d malformed spans for document %s", dropped, s.DocID)
	}
	s.spans = kept
	s.analyzedText = text
	s.selected = proofread.NoSelection
	s.notice = ""
}

func (s *Session) clearIssues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = nil
	s.analyzedText = ""
	s.selected = proofread.NoSelection
	s.notice = ""
}

func (s *Session) autosaveLoop() {
	ticker := time.NewTicker(s.cfg.AutosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Save(ctx); err != nil {
				log.Printf("editor: autosave failed for document %s: %v", s.DocID, err)
			}
			cancel()
		}
	}
}
