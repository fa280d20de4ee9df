package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s Store, collection string, filters ...Filter) []Document {
	t.Helper()
	var docs []Document
	require.NoError(t, s.Stream(context.Background(), collection, filters, func(d Document) error {
		docs = append(docs, d)
		return nil
	}))
	return docs
}

func keys(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Key
	}
	return out
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "c", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.Add(ctx, "c", Document{Key: "ignored", Data: []byte(`{"n":1}`)})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", id)

	doc, err := s.Get(ctx, "c", id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(doc.Data))

	require.NoError(t, s.Set(ctx, "c", Document{Key: id, Data: []byte(`{"n":2}`)}))
	doc, err = s.Get(ctx, "c", id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(doc.Data))
	assert.Equal(t, 1, s.Count("c"))

	require.NoError(t, s.Delete(ctx, "c", id))
	assert.ErrorIs(t, s.Delete(ctx, "c", id), ErrNotFound)
}

func TestMemoryStoreRejectsBadDocuments(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.Set(context.Background(), "c", Document{Data: []byte(`{}`)}))
	assert.Error(t, s.Set(context.Background(), "c", Document{Key: "k", Data: []byte(`{`)}))
}

func TestMemoryStoreStreamOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, d := range []Document{
		{Key: "b", Attrs: map[string]string{"owner_id": "acme", "upload_date": "2024-01-05"}, Data: []byte(`{}`)},
		{Key: "a", Attrs: map[string]string{"owner_id": "globex", "upload_date": "2024-01-10"}, Data: []byte(`{}`)},
		{Key: "c", Attrs: map[string]string{"owner_id": "acme", "upload_date": "2024-02-01"}, Data: []byte(`{}`)},
		{Key: "d", Data: []byte(`{}`)},
	} {
		require.NoError(t, s.Set(ctx, "c", d))
	}
	// Overwrites keep first-write position.
	require.NoError(t, s.Set(ctx, "c", Document{Key: "b", Attrs: map[string]string{"owner_id": "acme", "upload_date": "2024-01-05"}, Data: []byte(`{"v":2}`)}))

	assert.Equal(t, []string{"b", "a", "c", "d"}, keys(collect(t, s, "c")))
	assert.Equal(t, []string{"b", "c"}, keys(collect(t, s, "c", Eq("owner_id", "acme"))))
	assert.Equal(t, []string{"a", "c"}, keys(collect(t, s, "c", Filter{Field: "upload_date", Op: OpGTE, Value: "2024-01-06"})))
	assert.Equal(t, []string{"b"}, keys(collect(t, s, "c",
		Eq("owner_id", "acme"),
		Filter{Field: "upload_date", Op: OpLTE, Value: "2024-01-31"})))
	assert.Empty(t, collect(t, s, "other"))
}

func TestMemoryStoreStreamStopsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, "c", Document{Key: k, Data: []byte(`{}`)}))
	}
	stop := errors.New("stop")
	seen := 0
	err := s.Stream(ctx, "c", nil, func(Document) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "c", Document{Key: "k", Attrs: map[string]string{"a": "1"}, Data: []byte(`{"x":1}`)}))

	doc, err := s.Get(ctx, "c", "k")
	require.NoError(t, err)
	doc.Attrs["a"] = "changed"
	doc.Data[0] = '['

	again, err := s.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, "1", again.Attrs["a"])
	assert.JSONEq(t, `{"x":1}`, string(again.Data))
}

func TestLocalStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, CollectionSegments, Document{Key: "first", Attrs: map[string]string{"owner_id": "acme"}, Data: []byte(`{"n":1}`)}))
	require.NoError(t, s.Set(ctx, CollectionSegments, Document{Key: "second", Data: []byte(`{"n":2}`)}))
	require.NoError(t, s.Set(ctx, CollectionSegments, Document{Key: "gone", Data: []byte(`{"n":3}`)}))
	require.NoError(t, s.Delete(ctx, CollectionSegments, "gone"))

	reopened, err := NewLocalStore(dir)
	require.NoError(t, err)
	docs := collect(t, reopened, CollectionSegments)
	assert.Equal(t, []string{"first", "second"}, keys(docs))
	assert.Equal(t, "acme", docs[0].Attrs["owner_id"])

	// New documents sort after reloaded ones.
	require.NoError(t, reopened.Set(ctx, CollectionSegments, Document{Key: "third", Data: []byte(`{}`)}))
	assert.Equal(t, []string{"first", "second", "third"}, keys(collect(t, reopened, CollectionSegments)))
}

func TestFilterMatches(t *testing.T) {
	attrs := map[string]string{"d": "2024-03-01"}
	assert.True(t, Eq("d", "2024-03-01").Matches(attrs))
	assert.False(t, Eq("missing", "").Matches(attrs))
	assert.True(t, Filter{Field: "d", Op: OpGTE, Value: "2024-03-01"}.Matches(attrs))
	assert.False(t, Filter{Field: "d", Op: OpLTE, Value: "2024-02-29"}.Matches(attrs))
}
