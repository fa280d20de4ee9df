// Package snowflake reads attribution metrics from a Snowflake table.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ignite/content-signals/internal/domain"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// metricColumns are read in this order after URL and UPLOAD_DATE.
var metricColumns = []struct {
	column string
	metric string
}{
	{"CONVERSIONS", domain.MetricConversions},
	{"REVENUE", domain.MetricRevenue},
	{"IMPRESSIONS", domain.MetricImpressions},
	{"CLICKS", domain.MetricClicks},
	{"CTR", domain.MetricCTR},
	{"SCROLL_DEPTH", domain.MetricScrollDepth},
	{"VIEWABILITY", domain.MetricViewability},
	{"TIME_ON_PAGE", domain.MetricTimeOnPage},
	{"FILL_RATE", domain.MetricFillRate},
}

// Client provides access to the attribution table.
type Client struct {
	config Config
	db     *sql.DB
}

// DSN builds the driver connection string for cfg.
func DSN(cfg Config) (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
}

// NewClient opens a connection pool. No connection is made until first use.
func NewClient(cfg Config) (*Client, error) {
	if !identRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid snowflake table name %q", cfg.Table)
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("building snowflake dsn: %w", err)
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{config: cfg, db: db}, nil
}

// NewClientFromDB wraps an existing pool.
func NewClientFromDB(db *sql.DB, cfg Config) (*Client, error) {
	if !identRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid snowflake table name %q", cfg.Table)
	}
	return &Client{config: cfg, db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// AttributionRows returns the owner's rows with UPLOAD_DATE on or after
// since (all rows when since is zero), oldest first.
func (c *Client) AttributionRows(ctx context.Context, owner string, since time.Time) ([]MetricRow, error) {
	query := `SELECT URL, UPLOAD_DATE`
	for _, m := range metricColumns {
		query += ", " + m.column
	}
	query += " FROM " + c.config.Table + " WHERE OWNER_ID = ?"
	args := []any{owner}
	if !since.IsZero() {
		query += " AND UPLOAD_DATE >= ?"
		args = append(args, since)
	}
	query += " ORDER BY UPLOAD_DATE, URL"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attribution rows: %w", err)
	}
	defer rows.Close()

	var result []MetricRow
	for rows.Next() {
		var (
			url    sql.NullString
			upload sql.NullTime
			vals   = make([]sql.NullFloat64, len(metricColumns))
		)
		dest := []any{&url, &upload}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := MetricRow{URL: url.String}
		if upload.Valid {
			row.UploadDate = upload.Time
		}
		for i, m := range metricColumns {
			if vals[i].Valid {
				row.Metrics.Set(m.metric, domain.Float(vals[i].Float64))
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return result, nil
}
