package taxonomy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ignite/content-signals/internal/pkg/logger"
)

// Service owns the built indexes, keyed by source location.
//
// The cache is a copy-on-write map behind an atomic pointer: readers load the
// pointer without locking, and a reload builds the new index completely
// before publishing a new map. Builds are serialized so two reloads never
// race to publish.
type Service struct {
	fetcher       Fetcher
	defaultSource string
	opts          Options
	allowed       map[string]bool

	buildMu sync.Mutex
	cache   atomic.Pointer[map[string]*Index]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAllowedSources permits locations besides the default source. Only
// permitted locations are ever fetched or cached.
func WithAllowedSources(locations ...string) ServiceOption {
	return func(s *Service) {
		for _, l := range locations {
			if l != "" {
				s.allowed[l] = true
			}
		}
	}
}

// NewService creates a taxonomy service. opts.Source is ignored; the source
// comes from each call or from defaultSource.
func NewService(fetcher Fetcher, defaultSource string, opts Options, svcOpts ...ServiceOption) *Service {
	s := &Service{
		fetcher:       fetcher,
		defaultSource: defaultSource,
		opts:          opts,
		allowed:       map[string]bool{},
	}
	if defaultSource != "" {
		s.allowed[defaultSource] = true
	}
	for _, opt := range svcOpts {
		opt(s)
	}
	empty := map[string]*Index{}
	s.cache.Store(&empty)
	return s
}

// Allowed reports whether location may be fetched.
func (s *Service) Allowed(location string) bool { return s.allowed[location] }

// DefaultSource returns the configured source location.
func (s *Service) DefaultSource() string { return s.defaultSource }

// Current returns the index for the default source, building it on first use.
func (s *Service) Current(ctx context.Context) (*Index, error) {
	return s.Get(ctx, s.defaultSource)
}

// Get returns the cached index for location, building it when absent.
func (s *Service) Get(ctx context.Context, location string) (*Index, error) {
	if location != s.defaultSource && !s.Allowed(location) {
		return nil, &SourceError{Source: location}
	}
	if idx := s.cached(location); idx != nil {
		return idx, nil
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if idx := s.cached(location); idx != nil {
		return idx, nil
	}
	idx, err := s.build(ctx, location)
	if err != nil {
		return nil, err
	}
	s.publish(location, idx)
	return idx, nil
}

// Reload rebuilds the index for location and swaps it in. On failure the
// cached index is left untouched and returned (nil if there was none)
// together with the error, so callers can keep serving the last good build.
func (s *Service) Reload(ctx context.Context, location string) (*Index, error) {
	if location == "" {
		location = s.defaultSource
	}
	if location != s.defaultSource && !s.Allowed(location) {
		return nil, &SourceError{Source: location}
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	idx, err := s.build(ctx, location)
	if err != nil {
		prev := s.cached(location)
		if prev != nil {
			logger.Warn("taxonomy: reload failed, keeping last known good index",
				"source", location,
				"version", prev.Version(),
				"error", err,
			)
		}
		return prev, err
	}
	s.publish(location, idx)
	logger.Info("taxonomy: index reloaded",
		"source", location,
		"version", idx.Version(),
		"entries", idx.Len(),
	)
	return idx, nil
}

// Cached returns a snapshot of every cached index.
func (s *Service) Cached() map[string]*Index {
	cur := *s.cache.Load()
	out := make(map[string]*Index, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out
}

func (s *Service) cached(location string) *Index {
	return (*s.cache.Load())[location]
}

// publish must be called with buildMu held.
func (s *Service) publish(location string, idx *Index) {
	cur := *s.cache.Load()
	next := make(map[string]*Index, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[location] = idx
	s.cache.Store(&next)
}

func (s *Service) build(ctx context.Context, location string) (*Index, error) {
	if location == "" {
		return nil, fmt.Errorf("taxonomy: %w: no source configured", ErrNoIndex)
	}
	data, err := s.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy source: %w", err)
	}
	opts := s.opts
	opts.Source = location
	return Build(data, opts)
}
