package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ignite/content-signals/internal/pkg/logger"
)

type memDoc struct {
	Seq   int64             `json:"seq"`
	Key   string            `json:"key"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Data  json.RawMessage   `json:"data"`
}

// MemoryStore keeps documents in memory. With a directory set it also
// writes each document to <dir>/<collection>/<key>.json and reloads them on
// start. Streams return documents in first-write order.
type MemoryStore struct {
	mu   sync.RWMutex
	dir  string
	seq  int64
	cols map[string]map[string]*memDoc
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cols: make(map[string]map[string]*memDoc)}
}

// NewLocalStore creates a file-backed store rooted at dir.
func NewLocalStore(dir string) (*MemoryStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	s := NewMemoryStore()
	s.dir = dir
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the document stored under key.
func (s *MemoryStore) Get(_ context.Context, collection, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.cols[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return d.document(), nil
}

// Add stores doc under a new UUID key.
func (s *MemoryStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	doc.Key = uuid.NewString()
	if err := s.Set(ctx, collection, doc); err != nil {
		return "", err
	}
	return doc.Key, nil
}

// Set stores doc under doc.Key. An overwrite keeps the original position.
func (s *MemoryStore) Set(_ context.Context, collection string, doc Document) error {
	if doc.Key == "" {
		return fmt.Errorf("set %s: empty key", collection)
	}
	if !json.Valid(doc.Data) {
		return fmt.Errorf("set %s/%s: data is not valid JSON", collection, doc.Key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string]*memDoc)
		s.cols[collection] = col
	}
	d := &memDoc{Key: doc.Key, Attrs: copyAttrs(doc.Attrs), Data: append(json.RawMessage(nil), doc.Data...)}
	if prev, exists := col[doc.Key]; exists {
		d.Seq = prev.Seq
	} else {
		s.seq++
		d.Seq = s.seq
	}

	if s.dir != "" {
		if err := s.saveToFile(collection, d); err != nil {
			return fmt.Errorf("writing %s/%s: %w", collection, doc.Key, err)
		}
	}
	col[doc.Key] = d
	return nil
}

// Stream calls fn for each matching document, in first-write order. The
// snapshot is taken up front, so fn may write to the store.
func (s *MemoryStore) Stream(ctx context.Context, collection string, filters []Filter, fn func(Document) error) error {
	s.mu.RLock()
	docs := make([]*memDoc, 0, len(s.cols[collection]))
	for _, d := range s.cols[collection] {
		if matchAll(filters, d.Attrs) {
			docs = append(docs, d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(*d.document()); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cols[collection][key]; !ok {
		return ErrNotFound
	}
	if s.dir != "" {
		if err := os.Remove(s.filePath(collection, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
		}
	}
	delete(s.cols[collection], key)
	return nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cols[collection])
}

func (d *memDoc) document() *Document {
	return &Document{Key: d.Key, Attrs: copyAttrs(d.Attrs), Data: append([]byte(nil), d.Data...)}
}

func copyAttrs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) filePath(collection, key string) string {
	safeKey := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, collection, safeKey+".json")
}

func (s *MemoryStore) saveToFile(collection string, d *memDoc) error {
	path := s.filePath(collection, d.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *MemoryStore) loadFromDisk() error {
	collections, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading storage directory: %w", err)
	}
	for _, c := range collections {
		if !c.IsDir() {
			continue
		}
		dir := filepath.Join(s.dir, c.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading collection %s: %w", c.Name(), err)
		}
		col := make(map[string]*memDoc, len(files))
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				return fmt.Errorf("reading %s: %w", f.Name(), err)
			}
			var d memDoc
			if err := json.Unmarshal(data, &d); err != nil {
				logger.Warn("store: skipping unreadable document", "collection", c.Name(), "file", f.Name(), "error", err)
				continue
			}
			col[d.Key] = &d
			if d.Seq > s.seq {
				s.seq = d.Seq
			}
		}
		s.cols[c.Name()] = col
	}
	return nil
}
