// Package session keeps short-term, in-memory listening context: the last few
// queries and interactions of one sitting, plus transient hints. Nothing here
// is ever persisted; ending the session discards it.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// Config bounds the per-session windows.
type Config struct {
	QueryWindow       int // last K queries kept
	InteractionWindow int // last M interactions kept
	IdleTimeout       time.Duration
}

// Session is one user's short-term memory. Safe for concurrent use.
type Session struct {
	ID     string
	UserID string

	mu           sync.Mutex
	queries      []string
	interactions []domain.Interaction
	genreHint    domain.Genre
	lastSeen     time.Time

	cfg Config
}

// RecordQuery appends a query, evicting the oldest beyond the window.
func (s *Session) RecordQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if len(s.queries) > s.cfg.QueryWindow {
		s.queries = s.queries[len(s.queries)-s.cfg.QueryWindow:]
	}
	s.lastSeen = time.Now()
}

// RecordInteraction appends an interaction, evicting the oldest beyond the
// window. This is session-local color; durable history lives in the
// interaction log.
func (s *Session) RecordInteraction(in domain.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, in)
	if len(s.interactions) > s.cfg.InteractionWindow {
		s.interactions = s.interactions[len(s.interactions)-s.cfg.InteractionWindow:]
	}
	s.lastSeen = time.Now()
}

// SetGenreHint pins a transient genre filter for subsequent requests.
func (s *Session) SetGenreHint(g domain.Genre) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genreHint = g
	s.lastSeen = time.Now()
}

// GenreHint returns the pinned genre filter, empty when unset.
func (s *Session) GenreHint() domain.Genre {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genreHint
}

// RecentQueries returns the retained queries, oldest first.
func (s *Session) RecentQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// RecentInteractions returns the retained interactions, oldest first.
func (s *Session) RecentInteractions() []domain.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Interaction, len(s.interactions))
	copy(out, s.interactions)
	return out
}

// QueryContext joins recent queries into one retrieval context string; the
// current query carries the most weight by coming last.
func (s *Session) QueryContext(current string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return current
	}
	return strings.Join(append(append([]string{}, s.queries...), current), " ")
}

// Manager owns all live sessions and evicts idle ones.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	now      func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start creates a new session for a user and returns it.
func (m *Manager) Start(userID string) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		lastSeen: m.now(),
		cfg:      m.cfg,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session by id, evicting it instead when idle too long.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	idle := m.now().Sub(s.lastSeen)
	s.mu.Unlock()
	if m.cfg.IdleTimeout > 0 && idle > m.cfg.IdleTimeout {
		delete(m.sessions, id)
		return nil, false
	}
	return s, true
}

// End discards a session.
func (m *Manager) End(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep evicts every session idle past the timeout and reports how many.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := m.now().Sub(s.lastSeen)
		s.mu.Unlock()
		if idle > m.cfg.IdleTimeout {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
