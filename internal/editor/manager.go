package editor

import (
	"context"
	"log"
	"sync"
	"time"
)

// Manager tracks open sessions, one per document. Reopening a document that
// already has a session returns the live session, keeping unsaved edits,
// after verifying the caller owns it.
type Manager struct {
	analyzer Analyzer
	saver    Saver
	cfg      SessionConfig
	idleTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(analyzer Analyzer, saver Saver, cfg SessionConfig, idleTTL time.Duration) *Manager {
	return &Manager{
		analyzer: analyzer,
		saver:    saver,
		cfg:      cfg,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for docID, creating one from content if none is
// live. content is only consulted for a fresh session; an existing session's
// buffer is always newer than what the store holds.
func (m *Manager) Open(docID, ownerID string, content []byte) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[docID]; ok {
		if s.OwnerID != ownerID {
			return nil, ErrNotOwner
		}
		return s, nil
	}
	s, err := newSession(docID, ownerID, content, m.analyzer, m.saver, m.cfg)
	if err != nil {
		return nil, err
	}
	m.sessions[docID] = s
	return s, nil
}

// Get returns the live session for docID.
func (m *Manager) Get(docID, ownerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[docID]
	if !ok {
		return nil, ErrNoSession
	}
	if s.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return s, nil
}

// Close flushes and removes the session for docID. Closing a document with
// no session is not an error.
func (m *Manager) Close(ctx context.Context, docID, ownerID string) error {
	m.mu.Lock()
	s, ok := m.sessions[docID]
	if ok && s.OwnerID != ownerID {
		m.mu.Unlock()
		return ErrNotOwner
	}
	delete(m.sessions, docID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// Run closes idle sessions until ctx is done. Meant to be started once as a
// background goroutine.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(m.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.closeIdle(ctx)
		}
	}
}

func (m *Manager) closeIdle(ctx context.Context) {
	cutoff := time.Now().Add(-m.idleTTL)
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		if err := s.Close(ctx); err != nil {
			log.Printf("editor: closing idle session for document %s: %v", s.DocID, err)
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			log.Printf("editor: closing session for document %s: %v", s.DocID, err)
		}
	}
}
