package snowflake

import (
	"strings"
	"time"

	"github.com/ignite/content-signals/internal/config"
	"github.com/ignite/content-signals/internal/domain"
)

// Config holds Snowflake connection settings and the attribution table.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Table     string
}

// FromAppConfig builds a Config from the application settings. Fields set
// explicitly win over those parsed from the connection string.
func FromAppConfig(c config.SnowflakeConfig) Config {
	cfg := Config{}
	if c.ConnectionString != "" {
		cfg = ParseConnectionString(c.ConnectionString)
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Account, c.Account)
	override(&cfg.User, c.User)
	override(&cfg.Password, c.Password)
	override(&cfg.Database, c.Database)
	override(&cfg.Schema, c.Schema)
	override(&cfg.Warehouse, c.Warehouse)
	override(&cfg.Role, c.Role)
	override(&cfg.Table, c.Table)
	return cfg
}

// ParseConnectionString extracts components from a connection string.
// Format: scheme=https;ACCOUNT=xxx;HOST=yyy;port=443;USER=zzz;PASSWORD=www;DB=database.schema;WAREHOUSE=wh
// Keys are case-insensitive; unknown keys are ignored.
func ParseConnectionString(connStr string) Config {
	parts := make(map[string]string)
	for _, kv := range strings.Split(connStr, ";") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	database, schema, _ := strings.Cut(parts["DB"], ".")
	if s := parts["SCHEMA"]; s != "" {
		schema = s
	}
	return Config{
		Account:   parts["ACCOUNT"],
		User:      parts["USER"],
		Password:  parts["PASSWORD"],
		Database:  database,
		Schema:    schema,
		Warehouse: parts["WAREHOUSE"],
		Role:      parts["ROLE"],
	}
}

// MetricRow is one attribution row read from the warehouse. UploadDate is
// zero when the column is null.
type MetricRow struct {
	URL        string
	UploadDate time.Time
	Metrics    domain.Metrics
}
