// Package editor holds the server-side editing state for open documents:
// the analysis scheduler that debounces round-trips to the text-analysis
// service, the per-document session that owns the content buffer and the
// current issue set, and the manager that tracks open sessions.
package editor

import (
	"sync"
	"time"
	"unicode"
)

// Debounce windows per trigger class. A word boundary (space, punctuation,
// deletion) means the user just settled a word, so feedback fires sooner;
// mid-word typing waits longer to avoid analyzing half-typed words.
const (
	TypingWindow   = 800 * time.Millisecond
	BoundaryWindow = 300 * time.Millisecond

	// MinAnalyzeLen is the shortest text worth sending out. Below it the
	// dispatch is skipped and existing issues are cleared.
	MinAnalyzeLen = 10
)

// Scheduler coalesces edit notifications into at most one pending analysis
// dispatch. Each edit restarts the timer with the window of its trigger
// class, so only the most recent pending text fires. Every dispatch gets a
// monotonic sequence number; consumers must discard completions whose
// sequence is no longer the latest, which keeps a slow early response from
// overwriting a fresher one.
type Scheduler struct {
	typing   time.Duration
	boundary time.Duration
	minLen   int
	dispatch func(seq uint64, text string)
	skip     func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending string
	seq     uint64
	stopped bool
}

// NewScheduler builds a scheduler. dispatch is called, unlocked, with each
// fired request; skip is called instead when the pending text is below
// minLen. Zero windows are valid and fire on the next timer tick.
func NewScheduler(typing, boundary time.Duration, minLen int, dispatch func(seq uint64, text string), skip func()) *Scheduler {
	return &Scheduler{
		typing:   typing,
		boundary: boundary,
		minLen:   minLen,
		dispatch: dispatch,
		skip:     skip,
	}
}

// Notify records an edit from prev to next and (re)arms the debounce timer
// with the window of the edit's trigger class.
func (s *Scheduler) Notify(prev, next string) {
	window := s.typing
	if atWordBoundary(prev, next) {
		window = s.boundary
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = next
	if s.timer != nil {
		s.timer.Stop()
	}
	// each arming gets a fresh generation; a timer whose Stop raced its own
	// expiry sees a stale generation in fire and bails instead of dispatching
	// the re-armed text a second time
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(window, func() { s.fire(gen) })
}

// Trigger dispatches for text without waiting out a debounce window. Used on
// initial load and when the open document changes. The dispatch runs on its
// own goroutine so callers never wait on the analysis round-trip.
func (s *Scheduler) Trigger(text string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = text
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	go s.fire(gen)
}

// Latest reports whether seq is the most recently dispatched sequence
// number. Completions for older sequences must be dropped.
func (s *Scheduler) Latest(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.seq
}

// Stop cancels any pending dispatch. The scheduler accepts no further
// notifications afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	text := s.pending
	s.timer = nil
	if len([]rune(text)) < s.minLen {
		s.mu.Unlock()
		if s.skip != nil {
			s.skip()
		}
		return
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	s.dispatch(seq, text)
}

// atWordBoundary classifies an edit. Deletions and edits whose last
// inserted character is whitespace or punctuation signal a settled word.
func atWordBoundary(prev, next string) bool {
	nn := []rune(next)
	if len(nn) < len([]rune(prev)) {
		return true
	}
	if len(nn) == 0 {
		return true
	}
	last := nn[len(nn)-1]
	return unicode.IsSpace(last) || unicode.IsPunct(last)
}
