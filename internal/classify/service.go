// Package classify labels content URLs with taxonomy codes: extract the
// page text, ask the completion service, resolve its answer against the
// current taxonomy index and store one record per normalized URL.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ignite/content-signals/internal/completion"
	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/extract"
	"github.com/ignite/content-signals/internal/pkg/logger"
	"github.com/ignite/content-signals/internal/store"
	"github.com/ignite/content-signals/internal/taxonomy"
	"github.com/ignite/content-signals/internal/urlnorm"
	"github.com/ignite/content-signals/internal/validation"
)

// IndexProvider returns the taxonomy index to validate against.
type IndexProvider interface {
	Current(ctx context.Context) (*taxonomy.Index, error)
}

// Extractor turns a URL into page text.
type Extractor interface {
	Extract(ctx context.Context, url string) (*extract.Result, error)
}

// Repository stores classification records keyed by normalized URL.
type Repository interface {
	Get(ctx context.Context, normalizedURL string) (*domain.ClassificationRecord, error)
	Upsert(ctx context.Context, rec *domain.ClassificationRecord) error
}

// Request asks for one URL to be classified.
type Request struct {
	URL     string `json:"url"`
	OwnerID string `json:"owner_id,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

// Outcome is the result for one URL. Exactly one of Record and Error is set.
type Outcome struct {
	URL           string                       `json:"url"`
	NormalizedURL string                       `json:"normalized_url,omitempty"`
	Cached        bool                         `json:"cached"`
	Record        *domain.ClassificationRecord `json:"record,omitempty"`
	Error         string                       `json:"error,omitempty"`
	Stage         string                       `json:"stage,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency bounds parallel classifications in bulk calls.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithFeedFetcher sets the fetcher used to read feeds.
func WithFeedFetcher(f extract.Fetcher) Option {
	return func(s *Service) { s.feeds = f }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the classification pipeline.
type Service struct {
	index       IndexProvider
	extractor   Extractor
	prompts     *completion.PromptBuilder
	completer   completion.Completer
	repo        Repository
	feeds       extract.Fetcher
	concurrency int
	now         func() time.Time

	inflight singleflight.Group
}

// NewService wires the pipeline.
func NewService(index IndexProvider, extractor Extractor, prompts *completion.PromptBuilder,
	completer completion.Completer, repo Repository, opts ...Option) *Service {
	s := &Service{
		index:       index,
		extractor:   extractor,
		prompts:     prompts,
		completer:   completer,
		repo:        repo,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize returns the join key for raw, or ErrInvalidURL.
func Normalize(raw string) (string, error) {
	norm := urlnorm.Normalize(raw)
	if norm == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(norm)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return norm, nil
}

// Classify returns the stored record for req.URL unless req.Force is set;
// otherwise it runs the pipeline and overwrites the stored record.
// Concurrent calls for the same URL share one pipeline run.
func (s *Service) Classify(ctx context.Context, req Request) (*Outcome, error) {
	norm, err := Normalize(req.URL)
	if err != nil {
		return nil, err
	}
	out := &Outcome{URL: req.URL, NormalizedURL: norm}

	var existing *domain.ClassificationRecord
	rec, err := s.repo.Get(ctx, norm)
	switch {
	case err == nil:
		existing = rec
		if !req.Force {
			out.Cached = true
			out.Record = rec
			return out, nil
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, &StageError{Stage: StageStore, URL: norm, Err: err}
	}

	v, err, _ := s.inflight.Do(norm, func() (interface{}, error) {
		return s.run(ctx, req, norm, existing)
	})
	if err != nil {
		return nil, err
	}
	out.Record = v.(*domain.ClassificationRecord)
	return out, nil
}

func (s *Service) run(ctx context.Context, req Request, norm string, existing *domain.ClassificationRecord) (*domain.ClassificationRecord, error) {
	start := s.now()

	idx, err := s.index.Current(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageTaxonomy, URL: norm, Err: err}
	}

	target := strings.TrimSpace(req.URL)
	if !strings.Contains(target, "://") {
		target = norm
	}
	page, err := s.extractor.Extract(ctx, target)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, URL: norm, Err: err}
	}

	prompt, err := s.prompts.Build(idx, completion.PromptData{URL: norm, Content: page.Text})
	if err != nil {
		return nil, &StageError{Stage: StagePrompt, URL: norm, Err: err}
	}

	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, &StageError{Stage: StageComplete, URL: norm, Err: err}
	}

	parsed, strategy, err := completion.Parse(text)
	if err != nil {
		return nil, &StageError{Stage: StageParse, URL: norm, Err: err}
	}

	now := s.now().UTC()
	rec := &domain.ClassificationRecord{
		URL:                strings.TrimSpace(req.URL),
		NormalizedURL:      norm,
		OwnerID:            req.OwnerID,
		Tone:               parsed.Tone,
		Intent:             parsed.Intent,
		Audience:           parsed.Audience,
		Keywords:           parsed.Keywords,
		BuyingIntent:       parsed.BuyingIntent,
		AdSuggestions:      parsed.AdSuggestions,
		TaxonomyVersion:    idx.Version(),
		ExtractionStrategy: page.Strategy,
		ParseStrategy:      strategy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if existing != nil && !existing.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	if rec.OwnerID == "" && existing != nil {
		rec.OwnerID = existing.OwnerID
	}

	result := validation.New(idx).Validate(validation.Input{
		Category:             parsed.IABCategory,
		Code:                 parsed.IABCode,
		Subcategory:          parsed.IABSubcategory,
		Subcode:              parsed.IABSubcode,
		SecondaryCategory:    parsed.IABSecondaryCategory,
		SecondaryCode:        parsed.IABSecondaryCode,
		SecondarySubcategory: parsed.IABSecondarySubcategory,
		SecondarySubcode:     parsed.IABSecondarySubcode,
	})
	result.Apply(rec)

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, &StageError{Stage: StageStore, URL: norm, Err: err}
	}

	logger.Info("classify: url classified",
		"url", norm,
		"iab_code", rec.IABCode,
		"resolved", result.Summary.Resolved,
		"unresolved", len(result.Summary.Unresolved),
		"extraction", page.Strategy,
		"parse", strategy,
		"taxonomy_version", rec.TaxonomyVersion,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return rec, nil
}

// ClassifyBulk classifies every request with bounded parallelism. Failures
// are reported per URL; outcomes keep request order.
func (s *Service) ClassifyBulk(ctx context.Context, reqs []Request) []Outcome {
	out := make([]Outcome, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			o, err := s.Classify(gctx, req)
			if err != nil {
				out[i] = failed(req.URL, err)
				return nil
			}
			out[i] = *o
			return nil
		})
	}
	_ = g.Wait()

	var errs int
	for _, o := range out {
		if o.Error != "" {
			errs++
		}
	}
	logger.Info("classify: bulk finished", "total", len(reqs), "errors", errs)
	return out
}

// ClassifyFeed reads up to max item links from a feed and classifies them.
func (s *Service) ClassifyFeed(ctx context.Context, feedURL, owner string, force bool, max int) ([]Outcome, error) {
	if s.feeds == nil {
		return nil, errors.New("classify: no feed fetcher configured")
	}
	if _, err := Normalize(feedURL); err != nil {
		return nil, err
	}
	links, err := extract.FeedLinks(ctx, s.feeds, feedURL, max)
	if err != nil {
		return nil, err
	}
	reqs := make([]Request, 0, len(links))
	for _, l := range links {
		reqs = append(reqs, Request{URL: l, OwnerID: owner, Force: force})
	}
	return s.ClassifyBulk(ctx, reqs), nil
}

func failed(raw string, err error) Outcome {
	o := Outcome{URL: raw, Error: err.Error()}
	if norm, nerr := Normalize(raw); nerr == nil {
		o.NormalizedURL = norm
	}
	var se *StageError
	if errors.As(err, &se) {
		o.Stage = se.Stage
	}
	return o
}
