// Package store is the document store behind classification, attribution,
// merged-signal and segment records.
//
// Records live in named collections as JSON documents with a few indexed
// string attributes for filtering. Backends:
//
//	memory: process-local maps, used in tests and single-run tools
//	local : memory plus one JSON file per document under a directory
//	aws   : DynamoDB single table, PK = collection, SK = document key
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/content-signals/internal/config"
)

// Collection names.
const (
	CollectionClassifications = "classified_urls"
	CollectionAttribution     = "attribution_data"
	CollectionSignals         = "merged_content_signals"
	CollectionSegments        = "segments"
)

// ErrNotFound is returned by Get and Delete for missing keys.
var ErrNotFound = errors.New("record not found")

// Document is a stored record.
type Document struct {
	Key   string
	Attrs map[string]string
	Data  []byte
}

// Filter operators. Range operators compare strings, which orders ISO-8601
// dates correctly.
const (
	OpEq  = "="
	OpGTE = ">="
	OpLTE = "<="
)

// Filter restricts Stream to documents whose attribute matches.
type Filter struct {
	Field string
	Op    string
	Value string
}

// Eq is shorthand for an equality filter.
func Eq(field, value string) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// Matches reports whether attrs satisfy f. A missing attribute never matches.
func (f Filter) Matches(attrs map[string]string) bool {
	v, ok := attrs[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpGTE:
		return strings.Compare(v, f.Value) >= 0
	case OpLTE:
		return strings.Compare(v, f.Value) <= 0
	default:
		return v == f.Value
	}
}

// Store is the record store contract.
type Store interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (*Document, error)
	// Add stores doc under a generated key and returns it. doc.Key is ignored.
	Add(ctx context.Context, collection string, doc Document) (string, error)
	// Set stores doc under doc.Key, overwriting any previous document.
	Set(ctx context.Context, collection string, doc Document) error
	// Stream calls fn for every document matching all filters. Returning an
	// error from fn stops the stream and returns that error.
	Stream(ctx context.Context, collection string, filters []Filter, fn func(Document) error) error
	// Delete removes the document under key, or returns ErrNotFound.
	Delete(ctx context.Context, collection, key string) error
}

// New creates the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "local":
		s, err := NewLocalStore(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("initializing local storage: %w", err)
		}
		return s, nil
	case "aws":
		s, err := NewDynamoStoreFromConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func matchAll(filters []Filter, attrs map[string]string) bool {
	for _, f := range filters {
		if !f.Matches(attrs) {
			return false
		}
	}
	return true
}
