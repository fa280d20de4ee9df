// Package docstore implements service repositories on the record store, for
// deployments without PostgreSQL.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/service/segment"
	"github.com/ignite/content-signals/internal/store"
)

// SegmentRepo implements segment.Repository on a store.Store.
type SegmentRepo struct{ s store.Store }

// NewSegmentRepo creates a store-backed segment repository.
func NewSegmentRepo(s store.Store) *SegmentRepo { return &SegmentRepo{s: s} }

func (r *SegmentRepo) Create(ctx context.Context, s *domain.Segment) error {
	if err := r.rejectDuplicateName(ctx, s); err != nil {
		return err
	}
	return r.put(ctx, s)
}

func (r *SegmentRepo) Get(ctx context.Context, ownerID, id string) (*domain.Segment, error) {
	doc, err := r.s.Get(ctx, store.CollectionSegments, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, segment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	var s domain.Segment
	if err := json.Unmarshal(doc.Data, &s); err != nil {
		return nil, fmt.Errorf("decode segment %s: %w", id, err)
	}
	if s.OwnerID != ownerID {
		return nil, segment.ErrNotFound
	}
	return &s, nil
}

func (r *SegmentRepo) List(ctx context.Context, ownerID string) ([]domain.Segment, error) {
	var out []domain.Segment
	err := r.s.Stream(ctx, store.CollectionSegments, []store.Filter{store.Eq(store.AttrOwnerID, ownerID)}, func(doc store.Document) error {
		var s domain.Segment
		if err := json.Unmarshal(doc.Data, &s); err != nil {
			return fmt.Errorf("decode segment %s: %w", doc.Key, err)
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SegmentRepo) Update(ctx context.Context, s *domain.Segment) error {
	if _, err := r.Get(ctx, s.OwnerID, s.ID); err != nil {
		return err
	}
	if err := r.rejectDuplicateName(ctx, s); err != nil {
		return err
	}
	return r.put(ctx, s)
}

func (r *SegmentRepo) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := r.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := r.s.Delete(ctx, store.CollectionSegments, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return segment.ErrNotFound
		}
		return fmt.Errorf("delete segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) put(ctx context.Context, s *domain.Segment) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal segment: %w", err)
	}
	err = r.s.Set(ctx, store.CollectionSegments, store.Document{
		Key:   s.ID,
		Attrs: map[string]string{store.AttrOwnerID: s.OwnerID},
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("save segment: %w", err)
	}
	return nil
}

// rejectDuplicateName keeps names unique per owner, matching the Postgres
// table constraint.
func (r *SegmentRepo) rejectDuplicateName(ctx context.Context, s *domain.Segment) error {
	existing, err := r.List(ctx, s.OwnerID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Name == s.Name && e.ID != s.ID {
			return fmt.Errorf("save segment: %w: name already in use", segment.ErrInvalid)
		}
	}
	return nil
}
