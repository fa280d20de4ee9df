package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/service/segment"
)

// SegmentSchema creates the segments table.
const SegmentSchema = `
CREATE TABLE IF NOT EXISTS content_segments (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	rules      JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (owner_id, name)
);
CREATE INDEX IF NOT EXISTS idx_content_segments_owner ON content_segments (owner_id, created_at DESC);
`

const uniqueViolation = "23505"

// SegmentRepo implements segment.Repository against PostgreSQL. Rules are
// stored as JSONB.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

// EnsureSchema creates the table and index when missing.
func (r *SegmentRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SegmentSchema); err != nil {
		return fmt.Errorf("create segment schema: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Create(ctx context.Context, s *domain.Segment) error {
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO content_segments (id, owner_id, name, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.OwnerID, s.Name, rules, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return wrapWriteErr("create segment", err)
	}
	return nil
}

func (r *SegmentRepo) Get(ctx context.Context, ownerID, id string) (*domain.Segment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, rules, created_at, updated_at
		FROM content_segments
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	s, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, segment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return s, nil
}

func (r *SegmentRepo) List(ctx context.Context, ownerID string) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, rules, created_at, updated_at
		FROM content_segments
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []domain.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) Update(ctx context.Context, s *domain.Segment) error {
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE content_segments SET name = $3, rules = $4, updated_at = $5
		WHERE id = $1 AND owner_id = $2
	`, s.ID, s.OwnerID, s.Name, rules, s.UpdatedAt)
	if err != nil {
		return wrapWriteErr("update segment", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return segment.ErrNotFound
	}
	return nil
}

func (r *SegmentRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM content_segments WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return segment.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (*domain.Segment, error) {
	var s domain.Segment
	var rules []byte
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &rules, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &s.Rules); err != nil {
			return nil, fmt.Errorf("decode rules for %s: %w", s.ID, err)
		}
	}
	return &s, nil
}

func wrapWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: name already in use", op, segment.ErrInvalid)
	}
	return fmt.Errorf("%s: %w", op, err)
}
