package taxonomy

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// headerScanLines bounds how many leading lines may precede the real header.
const headerScanLines = 5

// Row maps header names to cell values.
type Row map[string]string

// RowSource yields taxonomy rows. Next returns io.EOF after the last row.
type RowSource interface {
	Header() []string
	Next() (Row, error)
}

// TSVSource reads tab-separated taxonomy rows.
type TSVSource struct {
	r      *csv.Reader
	header []string
}

// NewTSVSource reads the header of a tab-separated source. Published files
// often carry a banner line above the header, so the first line within the
// first few that names recognizable columns is taken as the header.
func NewTSVSource(r io.Reader) (*TSVSource, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	var first []string
	for i := 0; i < headerScanLines; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading taxonomy header: %w", err)
		}
		rec = cleanHeader(rec)
		if first == nil {
			first = rec
		}
		if detectColumns(rec).recognized() >= 2 {
			return &TSVSource{r: cr, header: rec}, nil
		}
	}
	// No recognizable header: hand back the first line so the builder can
	// report which columns are missing.
	return &TSVSource{r: cr, header: first}, nil
}

func cleanHeader(rec []string) []string {
	out := make([]string, len(rec))
	for i, h := range rec {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

// Header returns the detected header row.
func (s *TSVSource) Header() []string { return s.header }

// Next returns the next non-blank row.
func (s *TSVSource) Next() (Row, error) {
	for {
		rec, err := s.r.Read()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(s.header))
		blank := true
		for i, h := range s.header {
			if i >= len(rec) {
				break
			}
			row[h] = rec[i]
			if strings.TrimSpace(rec[i]) != "" {
				blank = false
			}
		}
		if !blank {
			return row, nil
		}
	}
}

// SliceSource serves rows from memory. Useful for sources that are not files.
type SliceSource struct {
	header []string
	rows   []Row
	pos    int
}

// NewSliceSource creates a RowSource over in-memory rows.
func NewSliceSource(header []string, rows []Row) *SliceSource {
	return &SliceSource{header: header, rows: rows}
}

// Header returns the header.
func (s *SliceSource) Header() []string { return s.header }

// Next returns the next row or io.EOF.
func (s *SliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// Fetcher loads the raw bytes of a taxonomy source location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// HTTPGetter fetches a URL body. *httpretry.RetryClient satisfies it.
type HTTPGetter interface {
	Get(ctx context.Context, url string, limit int64) ([]byte, error)
}

// S3Getter is the subset of the S3 client used for s3:// sources.
type S3Getter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LocationFetcher resolves file paths, http(s) URLs and s3://bucket/key.
// HTTP and S3 are optional; a location needing a missing client fails.
type LocationFetcher struct {
	HTTP     HTTPGetter
	S3       S3Getter
	MaxBytes int64
}

// Fetch loads the location's bytes.
func (f *LocationFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "s3://"):
		return f.fetchS3(ctx, location)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		if f.HTTP == nil {
			return nil, fmt.Errorf("fetching %s: no HTTP client configured", location)
		}
		return f.HTTP.Get(ctx, location, f.MaxBytes)
	default:
		data, err := os.ReadFile(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, fmt.Errorf("reading taxonomy file: %w", err)
		}
		return data, nil
	}
}

func (f *LocationFetcher) fetchS3(ctx context.Context, location string) ([]byte, error) {
	if f.S3 == nil {
		return nil, fmt.Errorf("fetching %s: no S3 client configured", location)
	}
	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	out, err := f.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3 bucket %s: %w", bucket, err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(out.Body, f.MaxBytes)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 location %q: want s3://bucket/key", uri)
	}
	return bucket, key, nil
}
