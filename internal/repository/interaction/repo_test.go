package interaction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kailas-cloud/melodex/internal/domain"
)

type mockStore struct {
	lists map[string][]string
}

func newMockStore() *mockStore {
	return &mockStore{lists: map[string][]string{}}
}

func (m *mockStore) RPush(_ context.Context, key string, values ...string) error {
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *mockStore) LRange(_ context.Context, key string, _, _ int64) ([]string, error) {
	return m.lists[key], nil
}

func (m *mockStore) LLen(_ context.Context, key string) (int64, error) {
	return int64(len(m.lists[key])), nil
}

func TestAppendAndList(t *testing.T) {
	s := newMockStore()
	repo := New(s, "melodex:")

	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	first := domain.Interaction{UserID: "u1", TrackID: "t1", Action: domain.ActionLike, Timestamp: ts}
	second := domain.Interaction{UserID: "u1", TrackID: "t2", Action: domain.ActionRate, Rating: 5, Timestamp: ts.Add(time.Hour)}

	if err := repo.Append(context.Background(), first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(context.Background(), second); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(got))
	}
	if got[0].TrackID != "t1" || got[1].TrackID != "t2" {
		t.Errorf("expected oldest-first ordering, got %v", got)
	}
	if got[1].Rating != 5 {
		t.Errorf("rating lost on round trip: %v", got[1])
	}
}

func TestList_SkipsUndecodableRecords(t *testing.T) {
	s := newMockStore()
	repo := New(s, "melodex:")

	valid, _ := json.Marshal(domain.Interaction{UserID: "u1", TrackID: "t1", Action: domain.ActionPlay})
	s.lists["melodex:interactions:u1"] = []string{"garbage", string(valid)}

	got, err := repo.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].TrackID != "t1" {
		t.Errorf("expected only the valid record, got %v", got)
	}
}

func TestCount(t *testing.T) {
	s := newMockStore()
	repo := New(s, "melodex:")

	for i := 0; i < 3; i++ {
		in := domain.Interaction{UserID: "u1", TrackID: "t1", Action: domain.ActionSkip}
		if err := repo.Append(context.Background(), in); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := repo.Count(context.Background(), "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}
}
