package snowflake

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/content-signals/internal/config"
)

func TestParseConnectionString(t *testing.T) {
	connStr := "scheme=https;ACCOUNT=HZDABLB-WLB56571;HOST=HZDABLB-WLB56571.azure.snowflakecomputing.com;port=443;USER=testuser;PASSWORD=testpass;DB=ANALYTICS.ATTRIBUTION;"

	cfg := ParseConnectionString(connStr)

	assert.Equal(t, "HZDABLB-WLB56571", cfg.Account)
	assert.Equal(t, "testuser", cfg.User)
	assert.Equal(t, "testpass", cfg.Password)
	assert.Equal(t, "ANALYTICS", cfg.Database)
	assert.Equal(t, "ATTRIBUTION", cfg.Schema)
}

func TestParseConnectionStringNoTrailingSemicolon(t *testing.T) {
	cfg := ParseConnectionString("account=test;USER=user;PASSWORD=pa=ss;DB=mydb;warehouse=WH")

	assert.Equal(t, "test", cfg.Account)
	assert.Equal(t, "pa=ss", cfg.Password)
	assert.Equal(t, "mydb", cfg.Database)
	assert.Empty(t, cfg.Schema)
	assert.Equal(t, "WH", cfg.Warehouse)
}

func TestFromAppConfigOverrides(t *testing.T) {
	cfg := FromAppConfig(config.SnowflakeConfig{
		ConnectionString: "ACCOUNT=acct;USER=u;PASSWORD=p;DB=D.S",
		User:             "override",
		Table:            "METRICS",
	})
	assert.Equal(t, "acct", cfg.Account)
	assert.Equal(t, "override", cfg.User)
	assert.Equal(t, "S", cfg.Schema)
	assert.Equal(t, "METRICS", cfg.Table)
}

func TestNewClientRejectsBadTable(t *testing.T) {
	_, err := NewClient(Config{Account: "a", User: "u", Password: "p", Table: "METRICS; DROP TABLE X"})
	assert.Error(t, err)
}

func TestAttributionRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client, err := NewClientFromDB(db, Config{Table: "ANALYTICS.PUBLIC.ATTRIBUTION_METRICS"})
	require.NoError(t, err)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cols := []string{"URL", "UPLOAD_DATE", "CONVERSIONS", "REVENUE", "IMPRESSIONS", "CLICKS", "CTR",
		"SCROLL_DEPTH", "VIEWABILITY", "TIME_ON_PAGE", "FILL_RATE"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM ANALYTICS.PUBLIC.ATTRIBUTION_METRICS WHERE OWNER_ID = ? AND UPLOAD_DATE >= ? ORDER BY UPLOAD_DATE, URL")).
		WithArgs("acme", since).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("https://example.com/a", day, 3.0, 12.5, 1000.0, 20.0, nil, nil, nil, nil, nil).
			AddRow("https://example.com/b", nil, nil, nil, nil, nil, 1.5, nil, nil, nil, 0.9))

	rows, err := client.AttributionRows(context.Background(), "acme", since)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "https://example.com/a", rows[0].URL)
	assert.Equal(t, day, rows[0].UploadDate)
	require.NotNil(t, rows[0].Metrics.Impressions)
	assert.Equal(t, 1000.0, *rows[0].Metrics.Impressions)
	assert.Nil(t, rows[0].Metrics.CTR)

	assert.True(t, rows[1].UploadDate.IsZero())
	require.NotNil(t, rows[1].Metrics.CTR)
	assert.Equal(t, 1.5, *rows[1].Metrics.CTR)
	assert.Nil(t, rows[1].Metrics.Clicks)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributionRowsWithoutSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client, err := NewClientFromDB(db, Config{Table: "METRICS"})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM METRICS WHERE OWNER_ID = ? ORDER BY")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"URL"}))

	rows, err := client.AttributionRows(context.Background(), "acme", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}
