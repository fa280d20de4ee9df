// Package attribution ingests per-URL performance metrics from CSV uploads
// and from a Snowflake table. Records are appended, never overwritten.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/pkg/logger"
	"github.com/ignite/content-signals/internal/snowflake"
	"github.com/ignite/content-signals/internal/urlnorm"
)

// ErrMissingOwner is returned when an ingest has no owner id.
var ErrMissingOwner = errors.New("owner id is required")

// Repository appends attribution records.
type Repository interface {
	Append(ctx context.Context, rec *domain.AttributionRecord) (string, error)
}

// WarehouseReader reads attribution rows from a warehouse table.
type WarehouseReader interface {
	AttributionRows(ctx context.Context, owner string, since time.Time) ([]snowflake.MetricRow, error)
}

// IngestResult reports one ingest.
type IngestResult struct {
	OwnerID         string     `json:"owner_id"`
	Source          string     `json:"source"`
	Ingested        int        `json:"ingested"`
	Rejected        int        `json:"rejected"`
	Errors          []RowError `json:"errors,omitempty"`
	UnmappedColumns []string   `json:"unmapped_columns,omitempty"`
	IDs             []string   `json:"ids,omitempty"`
}

// Service appends attribution records from uploads and imports.
type Service struct {
	repo      Repository
	warehouse WarehouseReader
	now       func() time.Time
}

// NewService creates a service. warehouse may be nil when no warehouse is
// configured.
func NewService(repo Repository, warehouse WarehouseReader) *Service {
	return &Service{repo: repo, warehouse: warehouse, now: time.Now}
}

// HasWarehouse reports whether warehouse import is available.
func (s *Service) HasWarehouse() bool { return s.warehouse != nil }

// IngestCSV parses r and appends one record per accepted row.
func (s *Service) IngestCSV(ctx context.Context, owner, source string, r io.Reader) (*IngestResult, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if source == "" {
		source = "csv"
	}

	parsed, err := ParseCSV(r, owner, source, s.now())
	if err != nil {
		return nil, err
	}
	res := &IngestResult{
		OwnerID:         owner,
		Source:          source,
		Rejected:        parsed.Rejected,
		Errors:          parsed.Errors,
		UnmappedColumns: parsed.UnmappedColumns,
	}
	if err := s.append(ctx, res, parsed.Records); err != nil {
		return res, err
	}

	logger.Info("attribution: csv ingested",
		"owner_id", owner,
		"source", source,
		"ingested", res.Ingested,
		"rejected", res.Rejected,
		"unmapped_columns", len(res.UnmappedColumns),
	)
	return res, nil
}

// ImportWarehouse appends the owner's warehouse rows uploaded on or after
// since.
func (s *Service) ImportWarehouse(ctx context.Context, owner string, since time.Time) (*IngestResult, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if s.warehouse == nil {
		return nil, errors.New("attribution: no warehouse configured")
	}

	rows, err := s.warehouse.AttributionRows(ctx, owner, since)
	if err != nil {
		return nil, fmt.Errorf("reading warehouse: %w", err)
	}

	now := s.now().UTC()
	res := &IngestResult{OwnerID: owner, Source: "snowflake"}
	records := make([]domain.AttributionRecord, 0, len(rows))
	for i, row := range rows {
		norm := urlnorm.Normalize(row.URL)
		if norm == "" {
			res.Rejected++
			res.Errors = append(res.Errors, RowError{Line: i + 1, Reason: "missing url"})
			continue
		}
		rec := domain.AttributionRecord{
			URL:           strings.TrimSpace(row.URL),
			NormalizedURL: norm,
			OwnerID:       owner,
			IngestedAt:    now,
			Source:        res.Source,
			Metrics:       row.Metrics,
			UploadDate:    domain.FormatUploadDate(now),
		}
		if !row.UploadDate.IsZero() {
			rec.UploadDate = domain.FormatUploadDate(row.UploadDate)
		}
		records = append(records, rec)
	}
	if err := s.append(ctx, res, records); err != nil {
		return res, err
	}

	logger.Info("attribution: warehouse import finished",
		"owner_id", owner,
		"since", since,
		"ingested", res.Ingested,
		"rejected", res.Rejected,
	)
	return res, nil
}

func (s *Service) append(ctx context.Context, res *IngestResult, records []domain.AttributionRecord) error {
	for i := range records {
		id, err := s.repo.Append(ctx, &records[i])
		if err != nil {
			return fmt.Errorf("appending record for %s: %w", records[i].NormalizedURL, err)
		}
		res.Ingested++
		res.IDs = append(res.IDs, id)
	}
	return nil
}
