package attribution

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/urlnorm"
)

// ErrNoURLColumn is returned when no header maps to the url column.
var ErrNoURLColumn = errors.New("no url column in header")

// RowError describes one rejected or adjusted row. Line is 1-based and
// counts the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseResult is the outcome of reading one upload.
type ParseResult struct {
	Records         []domain.AttributionRecord `json:"-"`
	Rejected        int                        `json:"rejected"`
	Errors          []RowError                 `json:"errors,omitempty"`
	UnmappedColumns []string                   `json:"unmapped_columns,omitempty"`
}

// ParseCSV reads an attribution upload. Every row with a URL becomes a
// record; rows without one are rejected. Unparsable metric cells are
// absent. A missing or unparsable date falls back to ingestedAt.
func ParseCSV(r io.Reader, owner, source string, ingestedAt time.Time) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty upload: %w", ErrNoURLColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := mapColumns(header)
	if mapping.url < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoURLColumn, header)
	}

	ingestedAt = ingestedAt.UTC()
	res := &ParseResult{UnmappedColumns: mapping.unmapped}
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("read line %d: %w", line, err)
			}
			res.Rejected++
			res.Errors = append(res.Errors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if blankRow(row) {
			continue
		}

		raw := cell(row, mapping.url)
		norm := urlnorm.Normalize(raw)
		if norm == "" {
			res.Rejected++
			res.Errors = append(res.Errors, RowError{Line: line, Reason: "missing url"})
			continue
		}

		rec := domain.AttributionRecord{
			URL:           raw,
			NormalizedURL: norm,
			OwnerID:       owner,
			IngestedAt:    ingestedAt,
			Source:        source,
		}
		for i, metric := range mapping.metrics {
			if v, ok := domain.ParseNumber(cell(row, i)); ok {
				rec.Metrics.Set(metric, domain.Float(v))
			}
		}

		rec.UploadDate = domain.FormatUploadDate(ingestedAt)
		if mapping.date >= 0 {
			if d := cell(row, mapping.date); d != "" {
				if t, dateOnly, ok := domain.ParseUploadDate(d); ok {
					rec.UploadDate = formatDate(t, dateOnly)
				} else {
					res.Errors = append(res.Errors, RowError{Line: line, Reason: fmt.Sprintf("unparsable date %q, using ingestion time", d)})
				}
			}
		}

		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func formatDate(t time.Time, dateOnly bool) string {
	if dateOnly {
		return t.Format(domain.DateLayout)
	}
	return domain.FormatUploadDate(t)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
