package segment

import (
	"context"

	"github.com/ignite/content-signals/internal/domain"
)

// Repository defines the data access contract for segments. Every method is
// scoped to one owner; a segment of another owner is reported as ErrNotFound.
type Repository interface {
	// Create stores a new segment. The ID is assigned by the caller.
	Create(ctx context.Context, s *domain.Segment) error

	// Get returns one segment, or ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (*domain.Segment, error)

	// List returns the owner's segments, newest first.
	List(ctx context.Context, ownerID string) ([]domain.Segment, error)

	// Update replaces name, rules and updated_at. Returns ErrNotFound if the
	// segment doesn't exist.
	Update(ctx context.Context, s *domain.Segment) error

	// Delete removes a segment. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, ownerID, id string) error
}

// SignalReader lists an owner's merged signals, optionally pre-narrowed to
// an upload date range.
type SignalReader interface {
	List(ctx context.Context, ownerID string, dates *domain.DateRange) ([]domain.MergedSignal, error)
}
