package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/service/segment"
	"github.com/ignite/content-signals/internal/store"
)

func TestSegmentRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSegmentRepo(store.NewMemoryStore())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &domain.Segment{ID: "a", OwnerID: "acme", Name: "first", CreatedAt: base,
		Rules: domain.RuleSet{IncludeCodes: []string{"ROOT1"}}}
	second := &domain.Segment{ID: "b", OwnerID: "acme", Name: "second", CreatedAt: base.Add(time.Hour)}
	other := &domain.Segment{ID: "c", OwnerID: "globex", Name: "first", CreatedAt: base}
	for _, s := range []*domain.Segment{first, second, other} {
		require.NoError(t, repo.Create(ctx, s))
	}

	got, err := repo.Get(ctx, "acme", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROOT1"}, got.Rules.IncludeCodes)

	_, err = repo.Get(ctx, "globex", "a")
	assert.ErrorIs(t, err, segment.ErrNotFound)
	_, err = repo.Get(ctx, "acme", "missing")
	assert.ErrorIs(t, err, segment.ErrNotFound)

	list, err := repo.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	dup := &domain.Segment{ID: "d", OwnerID: "acme", Name: "first"}
	assert.ErrorIs(t, repo.Create(ctx, dup), segment.ErrInvalid)

	first.Name = "renamed"
	require.NoError(t, repo.Update(ctx, first))
	got, err = repo.Get(ctx, "acme", "a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	assert.ErrorIs(t, repo.Update(ctx, &domain.Segment{ID: "c", OwnerID: "acme", Name: "x"}), segment.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "acme", "c"), segment.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "acme", "a"))
	assert.ErrorIs(t, repo.Delete(ctx, "acme", "a"), segment.ErrNotFound)
}

func TestSegmentRepoServesService(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	signals := store.NewSignals(s)
	require.NoError(t, signals.Save(ctx, &domain.MergedSignal{
		ID: "sig-1", OwnerID: "acme", UploadDate: "2024-01-05T00:00:00Z", ClassificationIABCode: "ROOT1",
	}))
	require.NoError(t, signals.Save(ctx, &domain.MergedSignal{
		ID: "sig-2", OwnerID: "acme", UploadDate: "2024-01-05T00:00:00Z", ClassificationIABCode: "ROOT2",
	}))

	svc := segment.NewService(NewSegmentRepo(s), signals)
	seg, err := svc.Create(ctx, "acme", "root1", domain.RuleSet{IncludeCodes: []string{"ROOT1"}})
	require.NoError(t, err)

	got, err := svc.Preview(ctx, "acme", seg.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig-1", got[0].ID)
}
