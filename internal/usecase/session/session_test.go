package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/melodex/internal/domain"
)

func testSessionConfig() Config {
	return Config{QueryWindow: 10, InteractionWindow: 20, IdleTimeout: time.Hour}
}

func TestSession_QueryWindowEviction(t *testing.T) {
	m := NewManager(testSessionConfig())
	s := m.Start("u1")

	for i := 0; i < 15; i++ {
		s.RecordQuery(fmt.Sprintf("q%02d", i))
	}

	got := s.RecentQueries()
	if len(got) != 10 {
		t.Fatalf("query window: got %d, want 10", len(got))
	}
	if got[0] != "q05" || got[9] != "q14" {
		t.Errorf("oldest queries must be evicted first, got %v", got)
	}
}

func TestSession_InteractionWindowEviction(t *testing.T) {
	m := NewManager(testSessionConfig())
	s := m.Start("u1")

	for i := 0; i < 25; i++ {
		s.RecordInteraction(domain.Interaction{TrackID: fmt.Sprintf("t%02d", i)})
	}

	got := s.RecentInteractions()
	if len(got) != 20 {
		t.Fatalf("interaction window: got %d, want 20", len(got))
	}
	if got[0].TrackID != "t05" {
		t.Errorf("oldest interactions must be evicted first, got first %s", got[0].TrackID)
	}
}

func TestSession_QueryContext(t *testing.T) {
	m := NewManager(testSessionConfig())
	s := m.Start("u1")

	if got := s.QueryContext("fresh"); got != "fresh" {
		t.Errorf("empty history: got %q", got)
	}

	s.RecordQuery("rainy day jazz")
	s.RecordQuery("mellow piano")
	if got := s.QueryContext("study focus"); got != "rainy day jazz mellow piano study focus" {
		t.Errorf("query context: got %q", got)
	}
}

func TestSession_GenreHint(t *testing.T) {
	m := NewManager(testSessionConfig())
	s := m.Start("u1")

	if s.GenreHint() != "" {
		t.Error("hint must start empty")
	}
	s.SetGenreHint(domain.GenreRock)
	if s.GenreHint() != domain.GenreRock {
		t.Errorf("hint: got %s", s.GenreHint())
	}
}

func TestManager_GetAndEnd(t *testing.T) {
	m := NewManager(testSessionConfig())
	s := m.Start("u1")

	got, ok := m.Get(s.ID)
	if !ok || got.UserID != "u1" {
		t.Fatalf("expected live session, got %v %v", got, ok)
	}

	m.End(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Error("ended session must be gone")
	}
	if _, ok := m.Get("no-such-id"); ok {
		t.Error("unknown id must miss")
	}
}

func TestManager_IdleEviction(t *testing.T) {
	m := NewManager(Config{QueryWindow: 10, InteractionWindow: 20, IdleTimeout: time.Minute})
	s := m.Start("u1")
	fresh := m.Start("u2")

	now := time.Now()
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	fresh.mu.Lock()
	fresh.lastSeen = now.Add(2 * time.Minute)
	fresh.mu.Unlock()

	if _, ok := m.Get(s.ID); ok {
		t.Error("idle session must be evicted on access")
	}
	if n := m.Sweep(); n != 0 {
		t.Errorf("sweep after eviction: got %d, want 0", n)
	}
	if m.Len() != 1 {
		t.Errorf("live sessions: got %d, want 1", m.Len())
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("fresh session must survive the sweep")
	}
}

func TestSession_ConcurrentAccess(t *testing.T) {
	m := NewManager(testSessionConfig())
	s := m.Start("u1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.RecordQuery(fmt.Sprintf("q%d-%d", n, j))
				s.RecordInteraction(domain.Interaction{TrackID: "t"})
				_ = s.RecentQueries()
				_ = s.QueryContext("x")
			}
		}(i)
	}
	wg.Wait()

	if len(s.RecentQueries()) != 10 {
		t.Errorf("window must hold after concurrent writes, got %d", len(s.RecentQueries()))
	}
}
