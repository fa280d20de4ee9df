package segment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/content-signals/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu    sync.RWMutex
	store map[string]domain.Segment // keyed by id
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]domain.Segment)}
}

func (m *mockRepo) Create(_ context.Context, s *domain.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.ID] = *s
	return nil
}

func (m *mockRepo) Get(_ context.Context, ownerID, id string) (*domain.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *mockRepo) List(_ context.Context, ownerID string) ([]domain.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Segment
	for _, s := range m.store {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, s *domain.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.store[s.ID]
	if !ok || prev.OwnerID != s.OwnerID {
		return ErrNotFound
	}
	m.store[s.ID] = *s
	return nil
}

func (m *mockRepo) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type mockSignals struct {
	byOwner map[string][]domain.MergedSignal
	dates   *domain.DateRange
	err     error
}

func (m *mockSignals) List(_ context.Context, ownerID string, dates *domain.DateRange) ([]domain.MergedSignal, error) {
	m.dates = dates
	if m.err != nil {
		return nil, m.err
	}
	return m.byOwner[ownerID], nil
}

func newTestService() (*Service, *mockSignals) {
	signals := &mockSignals{byOwner: map[string][]domain.MergedSignal{
		"acme": {
			sig("s1", "ROOT1", "", "2024-01-10", domain.Float(4)),
			sig("s2", "ROOT2", "ROOT1", "2024-01-11", domain.Float(9)),
			sig("s3", "ROOT3", "", "2024-01-12", domain.Float(1)),
		},
	}}
	return NewService(newMockRepo(), signals), signals
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	seg, err := svc.Create(ctx, "acme", "  Sports fans ", domain.RuleSet{
		IncludeCodes: []string{" ROOT1 ", ""}, SortField: "ctr", SortOrder: "DESC",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, seg.ID)
	assert.Equal(t, "Sports fans", seg.Name)
	assert.Equal(t, []string{"ROOT1"}, seg.Rules.IncludeCodes)
	assert.Equal(t, "desc", seg.Rules.SortOrder)
	assert.False(t, seg.CreatedAt.IsZero())

	got, err := svc.Get(ctx, "acme", seg.ID)
	require.NoError(t, err)
	assert.Equal(t, seg.Name, got.Name)

	_, err = svc.Get(ctx, "globex", seg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	f := domain.Float

	tests := []struct {
		name  string
		owner string
		seg   string
		rules domain.RuleSet
	}{
		{"missing owner", "", "x", domain.RuleSet{}},
		{"missing name", "acme", " ", domain.RuleSet{}},
		{"bad date", "acme", "x", domain.RuleSet{DateRange: &domain.DateRange{Start: "last week"}}},
		{"unknown kpi", "acme", "x", domain.RuleSet{KPIFilters: map[string]domain.Threshold{"bounce": {GTE: f(1)}}}},
		{"inverted kpi", "acme", "x", domain.RuleSet{KPIFilters: map[string]domain.Threshold{"ctr": {GTE: f(5), LTE: f(1)}}}},
		{"bad order", "acme", "x", domain.RuleSet{SortOrder: "sideways"}},
		{"negative limit", "acme", "x", domain.RuleSet{Limit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.owner, tt.seg, tt.rules)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestUpdateListDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	first, err := svc.Create(ctx, "acme", "first", domain.RuleSet{})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "acme", "second", domain.RuleSet{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "globex", "other", domain.RuleSet{})
	require.NoError(t, err)

	list, err := svc.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	updated, err := svc.Update(ctx, "acme", first.ID, "renamed", domain.RuleSet{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 5, updated.Rules.Limit)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = svc.Update(ctx, "globex", first.ID, "stolen", domain.RuleSet{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "acme", first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "acme", first.ID), ErrNotFound)
}

func TestPreviewAndEvaluate(t *testing.T) {
	svc, signals := newTestService()
	ctx := context.Background()

	rules := domain.RuleSet{
		DateRange:    &domain.DateRange{Start: "2024-01-10", End: "2024-01-11"},
		IncludeCodes: []string{"ROOT1"},
		SortField:    "ctr",
	}
	seg, err := svc.Create(ctx, "acme", "root1", rules)
	require.NoError(t, err)

	got, err := svc.Preview(ctx, "acme", seg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, ids(got))
	assert.Equal(t, rules.DateRange, signals.dates, "date range is pushed to the reader")

	got, err = svc.Evaluate(ctx, "acme", domain.RuleSet{ExcludeCodes: []string{"ROOT1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids(got))

	_, err = svc.Preview(ctx, "acme", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Evaluate(ctx, "", domain.RuleSet{})
	assert.ErrorIs(t, err, ErrInvalid)

	signals.err = errors.New("store down")
	_, err = svc.Evaluate(ctx, "acme", domain.RuleSet{})
	assert.ErrorContains(t, err, "store down")
}
