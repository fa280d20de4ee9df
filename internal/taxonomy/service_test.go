package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/content-signals/internal/pkg/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves source bytes from memory and counts fetches.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.data[location]
	if !ok {
		return nil, fmt.Errorf("no such source %s", location)
	}
	return d, nil
}

func (f *fakeFetcher) set(location string, data []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[location] = data
	f.err = err
}

func sampleSource(extra ...string) []byte {
	lines := []string{
		"Unique ID\tParent\tName",
		"1\t\tSports",
		"2\t1\tTennis",
		"3\t\tArts",
	}
	return tsv(append(lines, extra...)...)
}

func TestServiceBuildsOnceAndCaches(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"main.tsv": sampleSource()}}
	svc := NewService(f, "main.tsv", Options{Version: "3.1"})

	a, err := svc.Current(context.Background())
	require.NoError(t, err)
	b, err := svc.Current(context.Background())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "main.tsv", a.Source())
}

func TestServiceReloadSwapsIndex(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"main.tsv": sampleSource()}}
	svc := NewService(f, "main.tsv", Options{})

	before, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, before.Len())

	f.set("main.tsv", sampleSource("4\t\tNews"), nil)
	after, err := svc.Reload(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 4, after.Len())
	assert.Equal(t, 3, before.Len(), "previously handed out index is immutable")

	cur, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, after, cur)
}

func TestServiceReloadFailureKeepsLastKnownGood(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"main.tsv": sampleSource()}}
	svc := NewService(f, "main.tsv", Options{MinEntries: 3})

	good, err := svc.Current(context.Background())
	require.NoError(t, err)

	// Truncated source falls below the floor.
	f.set("main.tsv", tsv("Unique ID\tParent\tName", "1\t\tSports"), nil)
	got, err := svc.Reload(context.Background(), "main.tsv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSize))
	assert.Same(t, good, got)

	cur, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, good, cur)
}

func TestServiceFailureWithoutCache(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"bad.tsv": tsv("foo\tbar")}}
	svc := NewService(f, "bad.tsv", Options{})

	_, err := svc.Current(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))

	got, err := svc.Reload(context.Background(), "bad.tsv")
	require.Error(t, err)
	assert.Nil(t, got)

	_, err = NewService(f, "", Options{}).Current(context.Background())
	assert.True(t, errors.Is(err, ErrNoIndex))
}

func TestServiceKeyedBySource(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{
		"a.tsv": sampleSource(),
		"b.tsv": sampleSource("4\t\tNews", "5\t\tTravel"),
	}}
	svc := NewService(f, "a.tsv", Options{}, WithAllowedSources("b.tsv"))

	a, err := svc.Get(context.Background(), "a.tsv")
	require.NoError(t, err)
	b, err := svc.Get(context.Background(), "b.tsv")
	require.NoError(t, err)

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 5, b.Len())
	assert.Len(t, svc.Cached(), 2)
}

func TestServiceRejectsUnlistedSource(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{
		"a.tsv":       sampleSource(),
		"/etc/passwd": []byte("root:x:0:0"),
	}}
	svc := NewService(f, "a.tsv", Options{}, WithAllowedSources("b.tsv"))

	_, err := svc.Get(context.Background(), "/etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSource))

	idx, err := svc.Reload(context.Background(), "http://169.254.169.254/latest")
	assert.Nil(t, idx)
	assert.True(t, errors.Is(err, ErrSource))

	assert.Equal(t, 0, f.calls)
	assert.Empty(t, svc.Cached())
	assert.True(t, svc.Allowed("a.tsv"))
	assert.True(t, svc.Allowed("b.tsv"))
	assert.False(t, svc.Allowed("c.tsv"))
}

func TestServiceConcurrentReadsDuringReload(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"main.tsv": sampleSource()}}
	svc := NewService(f, "main.tsv", Options{})
	_, err := svc.Current(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				idx, err := svc.Current(context.Background())
				if err != nil {
					t.Error(err)
					return
				}
				if n := idx.Len(); n != 3 && n != 4 {
					t.Errorf("observed partial index with %d entries", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			f.set("main.tsv", sampleSource("4\t\tNews"), nil)
		} else {
			f.set("main.tsv", sampleSource(), nil)
		}
		_, err := svc.Reload(context.Background(), "main.tsv")
		require.NoError(t, err)
	}
	wg.Wait()
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if *in.Bucket != f.bucket || *in.Key != f.key {
		return nil, fmt.Errorf("NoSuchKey: %s/%s", *in.Bucket, *in.Key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestLocationFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(sampleSource())
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.tsv")
	require.NoError(t, os.WriteFile(path, sampleSource(), 0644))

	f := &LocationFetcher{
		HTTP: httpretry.NewRetryClient(nil, 1),
		S3:   &fakeS3{bucket: "tax", key: "iab/3.1.tsv", body: string(sampleSource())},
	}

	for _, loc := range []string{srv.URL + "/taxonomy.tsv", path, "file://" + path, "s3://tax/iab/3.1.tsv"} {
		data, err := f.Fetch(context.Background(), loc)
		require.NoError(t, err, loc)
		assert.Equal(t, sampleSource(), data, loc)
	}

	_, err := f.Fetch(context.Background(), "s3://tax/missing.tsv")
	assert.Error(t, err)
	_, err = (&LocationFetcher{}).Fetch(context.Background(), "https://example.com/x.tsv")
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	b, k, err := ParseS3URI("s3://bucket/path/to/file.tsv")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "path/to/file.tsv", k)

	_, _, err = ParseS3URI("s3://bucket")
	assert.Error(t, err)
}
