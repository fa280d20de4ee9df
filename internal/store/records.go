package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/content-signals/internal/domain"
)

// Indexed attribute names.
const (
	AttrOwnerID       = "owner_id"
	AttrNormalizedURL = "normalized_url"
	AttrUploadDate    = "upload_date"
	AttrRunID         = "run_id"
)

// ClassificationKey is the document key of the classification for a
// normalized URL.
func ClassificationKey(normalizedURL string) string {
	sum := md5.Sum([]byte(normalizedURL))
	return "url_" + hex.EncodeToString(sum[:])
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	return data, nil
}

// Classifications reads and writes classification records, one per
// normalized URL.
type Classifications struct {
	s Store
}

// NewClassifications wraps s.
func NewClassifications(s Store) *Classifications { return &Classifications{s: s} }

// Get returns the record for a normalized URL, or ErrNotFound.
func (r *Classifications) Get(ctx context.Context, normalizedURL string) (*domain.ClassificationRecord, error) {
	doc, err := r.s.Get(ctx, CollectionClassifications, ClassificationKey(normalizedURL))
	if err != nil {
		return nil, err
	}
	var rec domain.ClassificationRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return nil, fmt.Errorf("decoding classification %s: %w", doc.Key, err)
	}
	return &rec, nil
}

// Upsert overwrites the record stored for rec.NormalizedURL.
func (r *Classifications) Upsert(ctx context.Context, rec *domain.ClassificationRecord) error {
	if rec.NormalizedURL == "" {
		return errors.New("classification has no normalized url")
	}
	data, err := encode(rec)
	if err != nil {
		return err
	}
	attrs := map[string]string{AttrNormalizedURL: rec.NormalizedURL}
	if rec.OwnerID != "" {
		attrs[AttrOwnerID] = rec.OwnerID
	}
	return r.s.Set(ctx, CollectionClassifications, Document{
		Key:   ClassificationKey(rec.NormalizedURL),
		Attrs: attrs,
		Data:  data,
	})
}

// List returns every stored classification.
func (r *Classifications) List(ctx context.Context) ([]domain.ClassificationRecord, error) {
	var out []domain.ClassificationRecord
	err := r.s.Stream(ctx, CollectionClassifications, nil, func(doc Document) error {
		var rec domain.ClassificationRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			return fmt.Errorf("decoding classification %s: %w", doc.Key, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Attributions appends and lists attribution records.
type Attributions struct {
	s Store
}

// NewAttributions wraps s.
func NewAttributions(s Store) *Attributions { return &Attributions{s: s} }

// Append stores rec as a new record and sets rec.ID to the generated key.
func (r *Attributions) Append(ctx context.Context, rec *domain.AttributionRecord) (string, error) {
	rec.ID = ""
	data, err := encode(rec)
	if err != nil {
		return "", err
	}
	id, err := r.s.Add(ctx, CollectionAttribution, Document{
		Attrs: map[string]string{
			AttrOwnerID:       rec.OwnerID,
			AttrNormalizedURL: rec.NormalizedURL,
			AttrUploadDate:    rec.UploadDate,
		},
		Data: data,
	})
	if err != nil {
		return "", err
	}
	rec.ID = id
	return id, nil
}

// List returns all attribution records, or one owner's when owner is set.
// Each record's ID is its document key.
func (r *Attributions) List(ctx context.Context, owner string) ([]domain.AttributionRecord, error) {
	var filters []Filter
	if owner != "" {
		filters = append(filters, Eq(AttrOwnerID, owner))
	}
	var out []domain.AttributionRecord
	err := r.s.Stream(ctx, CollectionAttribution, filters, func(doc Document) error {
		var rec domain.AttributionRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			return fmt.Errorf("decoding attribution %s: %w", doc.Key, err)
		}
		rec.ID = doc.Key
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Signals stores merged signals.
type Signals struct {
	s Store
}

// NewSignals wraps s.
func NewSignals(s Store) *Signals { return &Signals{s: s} }

// Save writes sig under sig.ID, replacing an earlier write of the same ID.
func (r *Signals) Save(ctx context.Context, sig *domain.MergedSignal) error {
	if sig.ID == "" {
		return errors.New("merged signal has no id")
	}
	data, err := encode(sig)
	if err != nil {
		return err
	}
	return r.s.Set(ctx, CollectionSignals, Document{
		Key: sig.ID,
		Attrs: map[string]string{
			AttrOwnerID:       sig.OwnerID,
			AttrNormalizedURL: sig.NormalizedURL,
			AttrUploadDate:    sig.UploadDate,
			AttrRunID:         sig.RunID,
		},
		Data: data,
	})
}

// List returns an owner's signals, narrowed to an upload_date range when
// one is given. A bare end date covers the whole day. Bounds with an offset
// are compared in UTC, the form upload dates are stored in.
func (r *Signals) List(ctx context.Context, owner string, dates *domain.DateRange) ([]domain.MergedSignal, error) {
	var filters []Filter
	if owner != "" {
		filters = append(filters, Eq(AttrOwnerID, owner))
	}
	if dates != nil {
		if start, _ := rangeBound(dates.Start); start != "" {
			filters = append(filters, Filter{Field: AttrUploadDate, Op: OpGTE, Value: start})
		}
		if end, dateOnly := rangeBound(dates.End); end != "" {
			if dateOnly {
				end += "~"
			}
			filters = append(filters, Filter{Field: AttrUploadDate, Op: OpLTE, Value: end})
		}
	}
	var out []domain.MergedSignal
	err := r.s.Stream(ctx, CollectionSignals, filters, func(doc Document) error {
		var sig domain.MergedSignal
		if err := json.Unmarshal(doc.Data, &sig); err != nil {
			return fmt.Errorf("decoding signal %s: %w", doc.Key, err)
		}
		out = append(out, sig)
		return nil
	})
	return out, err
}

// rangeBound renders a date_range bound in the stored upload_date form. Bare
// dates stay dates; unparseable bounds are compared as given.
func rangeBound(s string) (string, bool) {
	s = strings.TrimSpace(s)
	t, dateOnly, ok := domain.ParseUploadDate(s)
	switch {
	case !ok:
		return s, false
	case dateOnly:
		return t.Format(domain.DateLayout), true
	default:
		return domain.FormatUploadDate(t), false
	}
}
