package analyzer

import (
	"context"

	"github.com/kailas-cloud/melodex/internal/domain"
)

type mockLog struct {
	appended []domain.Interaction
	history  []domain.Interaction
	appendFn func(in domain.Interaction) error
}

func (m *mockLog) Append(_ context.Context, in domain.Interaction) error {
	if m.appendFn != nil {
		if err := m.appendFn(in); err != nil {
			return err
		}
	}
	m.appended = append(m.appended, in)
	m.history = append(m.history, in)
	return nil
}

func (m *mockLog) List(_ context.Context, _ string) ([]domain.Interaction, error) {
	return m.history, nil
}

func (m *mockLog) Count(_ context.Context, _ string) (int64, error) {
	return int64(len(m.history)), nil
}

type mockTracks struct {
	tracks map[string]domain.Track
}

func (m *mockTracks) GetMulti(_ context.Context, ids []string) ([]domain.Track, error) {
	out := make([]domain.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockProfiles struct {
	stored   *domain.UserProfile
	getFn    func(userID string) (*domain.UserProfile, error)
	putFn    func(p *domain.UserProfile, expectedRevision int64) error
	putCalls []int64
}

func (m *mockProfiles) Get(_ context.Context, userID string) (*domain.UserProfile, error) {
	if m.getFn != nil {
		return m.getFn(userID)
	}
	if m.stored == nil {
		return nil, domain.ErrProfileNotFound
	}
	return m.stored, nil
}

func (m *mockProfiles) Put(_ context.Context, p *domain.UserProfile, expectedRevision int64) error {
	m.putCalls = append(m.putCalls, expectedRevision)
	if m.putFn != nil {
		if err := m.putFn(p, expectedRevision); err != nil {
			return err
		}
	}
	p.Revision = expectedRevision + 1
	copied := *p
	m.stored = &copied
	return nil
}

type mockSummarizer struct {
	summary string
	err     error
}

func (m *mockSummarizer) Summarize(_ context.Context, _ *domain.UserProfile) (string, error) {
	return m.summary, m.err
}

func testConfig() Config {
	return Config{LikeThreshold: 4, DislikeThreshold: 2, ProfileUpdateEach: 5}
}
