// Package reconcile joins attribution records with URL classifications and
// writes one merged signal per attribution record.
package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/pkg/distlock"
	"github.com/ignite/content-signals/internal/pkg/logger"
	"github.com/ignite/content-signals/internal/urlnorm"
)

// AttributionSource lists attribution records; an empty owner means all.
type AttributionSource interface {
	List(ctx context.Context, owner string) ([]domain.AttributionRecord, error)
}

// ClassificationSource lists every current classification record.
type ClassificationSource interface {
	List(ctx context.Context) ([]domain.ClassificationRecord, error)
}

// SignalSink persists merged signals. Save with an existing ID replaces it.
type SignalSink interface {
	Save(ctx context.Context, sig *domain.MergedSignal) error
}

// Stats counts the outcome of one run.
//
// ClassificationOnly counts classified URLs that no attribution record of the
// run matched. An owner-scoped run counts only classifications made for that
// owner or without an owner.
type Stats struct {
	TotalAttribution    int `json:"total_attribution"`
	TotalClassification int `json:"total_classification"`
	SuccessfulMerges    int `json:"successful_merges"`
	AttributionOnly     int `json:"attribution_only"`
	ClassificationOnly  int `json:"classification_only"`
	Skipped             int `json:"skipped"`
	Errors              int `json:"errors"`
	CTRDerived          int `json:"ctr_derived"`
}

// RunResult is returned by every run, including failed ones.
type RunResult struct {
	RunID       string    `json:"run_id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Stats       Stats     `json:"stats"`
	CompletedAt time.Time `json:"completed_at"`
}

// Engine runs reconciliations.
type Engine struct {
	attributions    AttributionSource
	classifications ClassificationSource
	sink            SignalSink
	locks           distlock.Factory
	concurrency     int
	now             func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocks makes runs take a per-owner lock from f. A nil factory disables
// locking.
func WithLocks(f distlock.Factory) Option {
	return func(e *Engine) { e.locks = f }
}

// WithConcurrency bounds the number of owners RunOwners processes at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine.
func NewEngine(attributions AttributionSource, classifications ClassificationSource, sink SignalSink, opts ...Option) *Engine {
	e := &Engine{
		attributions:    attributions,
		classifications: classifications,
		sink:            sink,
		concurrency:     4,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SignalID is the merged-signal key for one attribution record. Re-running a
// reconciliation rewrites the same signals instead of adding duplicates.
func SignalID(normalizedURL, attributionID string) string {
	sum := sha256.Sum256([]byte(normalizedURL + "\n" + attributionID))
	return "sig_" + hex.EncodeToString(sum[:16])
}

// lookup is the read-only classification table shared by a run.
type lookup struct {
	byURL map[string]*domain.ClassificationRecord
	total int
}

func (e *Engine) loadLookup(ctx context.Context) (*lookup, error) {
	recs, err := e.classifications.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading classifications: %w", err)
	}
	l := &lookup{byURL: make(map[string]*domain.ClassificationRecord, len(recs)), total: len(recs)}
	for i := range recs {
		rec := &recs[i]
		key := rec.NormalizedURL
		if key == "" {
			key = rec.URL
		}
		key = urlnorm.Normalize(key)
		if key == "" {
			continue
		}
		if prev, ok := l.byURL[key]; ok && prev.UpdatedAt.After(rec.UpdatedAt) {
			continue
		}
		l.byURL[key] = rec
	}
	return l, nil
}

// Run reconciles one owner's attribution records, or every record when owner
// is empty. The result is never nil. A non-nil error means the run could not
// load its inputs, or ErrRunInProgress.
func (e *Engine) Run(ctx context.Context, owner string) (*RunResult, error) {
	res := e.newResult(owner)

	release, err := e.acquire(ctx, owner)
	if err != nil {
		return e.fail(res, err), err
	}
	defer release()

	lk, err := e.loadLookup(ctx)
	if err != nil {
		return e.fail(res, err), err
	}
	return e.run(ctx, res, lk)
}

// RunOwners reconciles each owner in parallel against one classification
// lookup built up front. Owners whose lock is held report ErrRunInProgress in
// their result; the returned error is only set when the lookup cannot load.
func (e *Engine) RunOwners(ctx context.Context, owners []string) ([]*RunResult, error) {
	results := make([]*RunResult, len(owners))

	lk, err := e.loadLookup(ctx)
	if err != nil {
		for i, owner := range owners {
			results[i] = e.fail(e.newResult(owner), err)
		}
		return results, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, owner := range owners {
		g.Go(func() error {
			res := e.newResult(owner)
			release, err := e.acquire(gctx, owner)
			if err != nil {
				results[i] = e.fail(res, err)
				return nil
			}
			defer release()
			results[i], _ = e.run(gctx, res, lk)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (e *Engine) newResult(owner string) *RunResult {
	return &RunResult{RunID: uuid.NewString(), OwnerID: owner}
}

func (e *Engine) fail(res *RunResult, err error) *RunResult {
	res.Success = false
	res.Error = err.Error()
	res.CompletedAt = e.now().UTC()
	logger.Error("reconcile: run failed", "run_id", res.RunID, "owner_id", res.OwnerID, "error", err)
	return res
}

func (e *Engine) acquire(ctx context.Context, owner string) (func(), error) {
	if e.locks == nil {
		return func() {}, nil
	}
	scope := owner
	if scope == "" {
		scope = "*"
	}
	lock := e.locks("reconcile:" + scope)
	if lock == nil {
		return func() {}, nil
	}
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("reconcile: releasing run lock", "owner_id", owner, "error", err)
		}
	}, nil
}

func (e *Engine) run(ctx context.Context, res *RunResult, lk *lookup) (*RunResult, error) {
	recs, err := e.attributions.List(ctx, res.OwnerID)
	if err != nil {
		err = fmt.Errorf("loading attribution records: %w", err)
		return e.fail(res, err), err
	}

	stats := &res.Stats
	stats.TotalAttribution = len(recs)
	stats.TotalClassification = lk.total
	matched := make(map[string]bool)

	logger.Info("reconcile: run started", "run_id", res.RunID, "owner_id", res.OwnerID,
		"attribution", len(recs), "classifications", lk.total)

	for i := range recs {
		rec := &recs[i]

		key := rec.NormalizedURL
		if key == "" {
			key = rec.URL
		}
		key = urlnorm.Normalize(key)
		if key == "" {
			stats.Skipped++
			logger.Warn("reconcile: skipping record", "run_id", res.RunID,
				"error", &MatchingKeyError{RecordID: rec.ID, URL: rec.URL})
			continue
		}

		cls := lk.byURL[key]
		sig := e.merge(res.RunID, key, rec, cls)
		if sig.AttributionCTRDerived {
			stats.CTRDerived++
		}

		if err := e.sink.Save(ctx, sig); err != nil {
			stats.Errors++
			logger.Error("reconcile: record failed", "run_id", res.RunID,
				"error", &PersistenceError{RecordID: rec.ID, Err: err})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}

		if cls != nil {
			stats.SuccessfulMerges++
			matched[key] = true
		} else {
			stats.AttributionOnly++
		}
	}

	for key, cls := range lk.byURL {
		if matched[key] {
			continue
		}
		if res.OwnerID != "" && cls.OwnerID != "" && cls.OwnerID != res.OwnerID {
			continue
		}
		stats.ClassificationOnly++
	}

	res.Success = true
	res.CompletedAt = e.now().UTC()
	logger.Info("reconcile: run completed", "run_id", res.RunID, "owner_id", res.OwnerID,
		"merged", stats.SuccessfulMerges, "attribution_only", stats.AttributionOnly,
		"skipped", stats.Skipped, "errors", stats.Errors, "ctr_derived", stats.CTRDerived)
	return res, nil
}

func (e *Engine) merge(runID, key string, rec *domain.AttributionRecord, cls *domain.ClassificationRecord) *domain.MergedSignal {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	sig := &domain.MergedSignal{
		ID:                    SignalID(key, id),
		RunID:                 runID,
		AttributionRecordID:   rec.ID,
		OwnerID:               rec.OwnerID,
		URL:                   rec.URL,
		NormalizedURL:         key,
		UploadDate:            rec.UploadDate,
		MergedAt:              e.now().UTC(),
		HasAttribution:        true,
		AttributionIngestedAt: rec.IngestedAt,
		AttributionSource:     rec.Source,
	}
	sig.SetAttributionMetrics(rec.Metrics)
	sig.AttributionCTR, sig.AttributionCTRDerived = DeriveCTR(rec.Metrics)
	sig.SetClassification(cls)
	return sig
}
