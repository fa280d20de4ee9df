package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ignite/content-signals/internal/attribution"
	"github.com/ignite/content-signals/internal/classify"
	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/pkg/httputil"
	"github.com/ignite/content-signals/internal/reconcile"
	"github.com/ignite/content-signals/internal/taxonomy"
)

// TaxonomyService serves taxonomy indexes.
type TaxonomyService interface {
	Current(ctx context.Context) (*taxonomy.Index, error)
	Get(ctx context.Context, location string) (*taxonomy.Index, error)
	Reload(ctx context.Context, location string) (*taxonomy.Index, error)
	Cached() map[string]*taxonomy.Index
	DefaultSource() string
}

// Classifier runs the classification pipeline.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request) (*classify.Outcome, error)
	ClassifyBulk(ctx context.Context, reqs []classify.Request) []classify.Outcome
	ClassifyFeed(ctx context.Context, feedURL, owner string, force bool, max int) ([]classify.Outcome, error)
}

// ClassificationReader reads stored classification records.
type ClassificationReader interface {
	Get(ctx context.Context, normalizedURL string) (*domain.ClassificationRecord, error)
}

// AttributionIngester appends attribution records.
type AttributionIngester interface {
	IngestCSV(ctx context.Context, owner, source string, r io.Reader) (*attribution.IngestResult, error)
	ImportWarehouse(ctx context.Context, owner string, since time.Time) (*attribution.IngestResult, error)
	HasWarehouse() bool
}

// Reconciler runs reconciliation.
type Reconciler interface {
	Run(ctx context.Context, owner string) (*reconcile.RunResult, error)
	RunOwners(ctx context.Context, owners []string) ([]*reconcile.RunResult, error)
}

// SegmentService manages segments.
type SegmentService interface {
	Create(ctx context.Context, ownerID, name string, rules domain.RuleSet) (*domain.Segment, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Segment, error)
	List(ctx context.Context, ownerID string) ([]domain.Segment, error)
	Update(ctx context.Context, ownerID, id, name string, rules domain.RuleSet) (*domain.Segment, error)
	Delete(ctx context.Context, ownerID, id string) error
	Preview(ctx context.Context, ownerID, id string) ([]domain.MergedSignal, error)
	Evaluate(ctx context.Context, ownerID string, rules domain.RuleSet) ([]domain.MergedSignal, error)
}

// Handlers holds the services behind the routes. Nil services answer 503.
type Handlers struct {
	Taxonomy        TaxonomyService
	Classifier      Classifier
	Classifications ClassificationReader
	Attribution     AttributionIngester
	Reconciler      Reconciler
	Segments        SegmentService

	// MaxBulkURLs caps one bulk classification request.
	MaxBulkURLs int
	// MaxUploadBytes caps one attribution upload.
	MaxUploadBytes int64
}

const (
	defaultMaxBulkURLs    = 500
	defaultMaxUploadBytes = 32 << 20
)

func (h *Handlers) maxBulk() int {
	if h.MaxBulkURLs > 0 {
		return h.MaxBulkURLs
	}
	return defaultMaxBulkURLs
}

func (h *Handlers) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func unavailable(w http.ResponseWriter, what string) {
	httputil.Error(w, http.StatusServiceUnavailable, what+" is not configured")
}
