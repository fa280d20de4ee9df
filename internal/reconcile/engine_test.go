package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/pkg/distlock"
	"github.com/ignite/content-signals/internal/store"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx             context.Context
	attributions    *store.Attributions
	classifications *store.Classifications
	signals         *store.Signals
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	return &fixture{
		ctx:             context.Background(),
		attributions:    store.NewAttributions(s),
		classifications: store.NewClassifications(s),
		signals:         store.NewSignals(s),
	}
}

func (f *fixture) engine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(f.attributions, f.classifications, f.signals, opts...)
}

func (f *fixture) attribution(t *testing.T, owner, url string, m domain.Metrics) string {
	t.Helper()
	id, err := f.attributions.Append(f.ctx, &domain.AttributionRecord{
		URL: url, NormalizedURL: url, OwnerID: owner,
		UploadDate: "2024-02-01T00:00:00Z", IngestedAt: fixedNow, Metrics: m,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) classification(t *testing.T, url, code string) {
	t.Helper()
	require.NoError(t, f.classifications.Upsert(f.ctx, &domain.ClassificationRecord{
		URL: url, NormalizedURL: url, IABCode: code, IABCategory: "Label " + code,
		IABSecondaryCode: "ROOT9", Keywords: []string{"a", "b"}, UpdatedAt: fixedNow,
	}))
}

func (f *fixture) ownedClassification(t *testing.T, owner, url, code string) {
	t.Helper()
	require.NoError(t, f.classifications.Upsert(f.ctx, &domain.ClassificationRecord{
		URL: url, NormalizedURL: url, OwnerID: owner, IABCode: code, UpdatedAt: fixedNow,
	}))
}

func TestRunJoinsOnNormalizedURL(t *testing.T) {
	f := newFixture(t)
	id := f.attribution(t, "acme", "https://example.com/a", domain.Metrics{Clicks: domain.Float(50), Impressions: domain.Float(1000)})
	f.classification(t, "https://example.com/a", "ROOT3")

	res, err := f.engine().Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, fixedNow, res.CompletedAt)
	assert.Equal(t, Stats{
		TotalAttribution: 1, TotalClassification: 1, SuccessfulMerges: 1, CTRDerived: 1,
	}, res.Stats)

	sigs, err := f.signals.List(f.ctx, "acme", nil)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	sig := sigs[0]
	assert.Equal(t, SignalID("https://example.com/a", id), sig.ID)
	assert.Equal(t, id, sig.AttributionRecordID)
	assert.True(t, sig.HasAttribution)
	assert.True(t, sig.HasClassification)
	assert.Equal(t, "ROOT3", sig.ClassificationIABCode)
	assert.Equal(t, "ROOT9", sig.ClassificationIABSecondaryCode)
	assert.Equal(t, []string{"a", "b"}, sig.ClassificationKeywords)
	require.NotNil(t, sig.AttributionCTR)
	assert.InDelta(t, 5.0, *sig.AttributionCTR, 1e-9)
	assert.True(t, sig.AttributionCTRDerived)
	assert.Equal(t, "2024-02-01T00:00:00Z", sig.UploadDate)
}

func TestRunWithoutMatch(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/unmatched", domain.Metrics{Clicks: domain.Float(5), Impressions: domain.Float(0)})
	f.classification(t, "https://example.com/other", "ROOT1")

	res, err := f.engine().Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.AttributionOnly)
	assert.Equal(t, 0, res.Stats.SuccessfulMerges)
	assert.Equal(t, 1, res.Stats.ClassificationOnly)

	sigs, err := f.signals.List(f.ctx, "acme", nil)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.False(t, sigs[0].HasClassification)
	assert.True(t, sigs[0].HasAttribution)
	assert.Nil(t, sigs[0].AttributionCTR, "no division by zero impressions")
}

func TestRunOneSignalPerAttributionRecord(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})
	f.classification(t, "https://example.com/a", "ROOT1")

	e := f.engine()
	res, err := e.Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.SuccessfulMerges)

	// A second run rewrites the same signals.
	_, err = e.Run(f.ctx, "acme")
	require.NoError(t, err)
	sigs, err := f.signals.List(f.ctx, "acme", nil)
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
}

func TestRunIsIdempotentAndPicksUpNewUploads(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{Clicks: domain.Float(1)})
	f.attribution(t, "acme", "https://example.com/b", domain.Metrics{Clicks: domain.Float(2)})
	f.attribution(t, "acme", "https://example.com/c", domain.Metrics{Clicks: domain.Float(3)})
	f.classification(t, "https://example.com/a", "ROOT1")

	signalIDs := func() []string {
		t.Helper()
		sigs, err := f.signals.List(f.ctx, "acme", nil)
		require.NoError(t, err)
		ids := make([]string, 0, len(sigs))
		for _, s := range sigs {
			ids = append(ids, s.ID)
		}
		return ids
	}

	e := f.engine()
	_, err := e.Run(f.ctx, "acme")
	require.NoError(t, err)
	first := signalIDs()
	require.Len(t, first, 3)

	_, err = e.Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.ElementsMatch(t, first, signalIDs())

	// A later upload for an already merged URL is a new attribution record
	// and yields its own signal.
	newID := f.attribution(t, "acme", "https://example.com/a", domain.Metrics{Clicks: domain.Float(9)})
	res, err := e.Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.SuccessfulMerges)

	third := signalIDs()
	require.Len(t, third, 4)
	assert.Subset(t, third, first)
	assert.Contains(t, third, SignalID("https://example.com/a", newID))
}

func TestRunScopesClassificationOnlyToOwner(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})
	f.classification(t, "https://example.com/a", "ROOT1")
	f.ownedClassification(t, "acme", "https://example.com/acme-only", "ROOT2")
	f.ownedClassification(t, "globex", "https://example.com/globex-1", "ROOT3")
	f.ownedClassification(t, "globex", "https://example.com/globex-2", "ROOT3")
	f.classification(t, "https://example.com/shared", "ROOT4")

	res, err := f.engine().Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.SuccessfulMerges)
	assert.Equal(t, 2, res.Stats.ClassificationOnly, "acme-only and shared")

	all, err := f.engine().Run(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, all.Stats.ClassificationOnly)
}

func TestRunSkipsRecordsWithoutURL(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "", domain.Metrics{})
	f.attribution(t, "acme", "   ", domain.Metrics{})
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})

	res, err := f.engine().Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Stats.Skipped)
	assert.Equal(t, 1, res.Stats.AttributionOnly)
}

func TestRunScopesToOwner(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})
	f.attribution(t, "globex", "https://example.com/b", domain.Metrics{})

	res, err := f.engine().Run(f.ctx, "globex")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.TotalAttribution)

	all, err := f.engine().Run(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, all.Stats.TotalAttribution)
}

func TestRunMatchesLegacyUnnormalizedKeys(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})
	require.NoError(t, f.classifications.Upsert(f.ctx, &domain.ClassificationRecord{
		URL: "HTTPS://Example.com/a/?utm=1", NormalizedURL: "HTTPS://Example.com/a/?utm=1", IABCode: "ROOT1",
	}))

	res, err := f.engine().Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.SuccessfulMerges)
}

type failingSink struct {
	mu    sync.Mutex
	fails map[string]bool
	saved []*domain.MergedSignal
}

func (s *failingSink) Save(_ context.Context, sig *domain.MergedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails[sig.URL] {
		return errors.New("write timeout")
	}
	s.saved = append(s.saved, sig)
	return nil
}

func TestRunCountsPersistenceErrors(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/bad", domain.Metrics{})
	f.attribution(t, "acme", "https://example.com/good", domain.Metrics{})
	sink := &failingSink{fails: map[string]bool{"https://example.com/bad": true}}

	res, err := NewEngine(f.attributions, f.classifications, sink).Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Stats.Errors)
	assert.Equal(t, 1, res.Stats.AttributionOnly)
	assert.Len(t, sink.saved, 1)
}

type brokenAttributions struct{}

func (brokenAttributions) List(context.Context, string) ([]domain.AttributionRecord, error) {
	return nil, errors.New("table unavailable")
}

type brokenClassifications struct{}

func (brokenClassifications) List(context.Context) ([]domain.ClassificationRecord, error) {
	return nil, errors.New("table unavailable")
}

func TestRunReportsSourceFailure(t *testing.T) {
	f := newFixture(t)

	res, err := NewEngine(brokenAttributions{}, f.classifications, f.signals).Run(f.ctx, "acme")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "table unavailable")

	res, err = NewEngine(f.attributions, brokenClassifications{}, f.signals).Run(f.ctx, "acme")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.False(t, res.CompletedAt.IsZero())
}

func TestRunOwners(t *testing.T) {
	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})
	f.attribution(t, "globex", "https://example.com/a", domain.Metrics{})
	f.attribution(t, "globex", "https://example.com/b", domain.Metrics{})
	f.classification(t, "https://example.com/a", "ROOT1")

	results, err := f.engine(WithConcurrency(2)).RunOwners(f.ctx, []string{"acme", "globex"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "acme", results[0].OwnerID)
	assert.Equal(t, 1, results[0].Stats.SuccessfulMerges)
	assert.Equal(t, "globex", results[1].OwnerID)
	assert.Equal(t, 1, results[1].Stats.SuccessfulMerges)
	assert.Equal(t, 1, results[1].Stats.AttributionOnly)
}

func TestRunRejectsConcurrentRunForSameOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	locks := distlock.NewFactory(client, nil, time.Minute)

	f := newFixture(t)
	f.attribution(t, "acme", "https://example.com/a", domain.Metrics{})

	held := locks("reconcile:acme")
	ok, err := held.Acquire(f.ctx)
	require.NoError(t, err)
	require.True(t, ok)

	e := f.engine(WithLocks(locks))
	res, err := e.Run(f.ctx, "acme")
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.False(t, res.Success)

	results, err := e.RunOwners(f.ctx, []string{"acme"})
	require.NoError(t, err)
	assert.Equal(t, ErrRunInProgress.Error(), results[0].Error)

	require.NoError(t, held.Release(f.ctx))
	res, err = e.Run(f.ctx, "acme")
	require.NoError(t, err)
	assert.True(t, res.Success)

	// The lock is released after the run.
	ok, err = locks("reconcile:acme").Acquire(f.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
