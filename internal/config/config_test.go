package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "127.0.0.1"

logging:
  level: debug
  mode: dev
  redact_pii: false

storage:
  type: aws
  dynamodb_table: signals-test
  aws_region: eu-west-1

taxonomy:
  source: "s3://taxonomy-bucket/iab/3.1.tsv"
  variant: explicit
  min_entries: 250
  version: "2.2"
  allowed_sources:
    - "s3://taxonomy-bucket/iab/2.2.tsv"

classification:
  provider: bedrock
  concurrency: 8

reconcile:
  concurrency: 2
  lock_ttl_seconds: 60
  owners: ["acme", "globex"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Redact())
	assert.Equal(t, "aws", cfg.Storage.Type)
	assert.Equal(t, "signals-test", cfg.Storage.DynamoDBTable)
	assert.Equal(t, "s3://taxonomy-bucket/iab/3.1.tsv", cfg.Taxonomy.Source)
	assert.Equal(t, "explicit", cfg.Taxonomy.Variant)
	assert.Equal(t, 250, cfg.Taxonomy.MinEntries)
	assert.Equal(t, []string{"s3://taxonomy-bucket/iab/2.2.tsv"}, cfg.Taxonomy.AllowedSources)
	assert.Equal(t, "bedrock", cfg.Classification.Provider)
	assert.Equal(t, 8, cfg.Classification.Concurrency)
	assert.Equal(t, time.Minute, cfg.Reconcile.LockTTL())
	assert.Equal(t, []string{"acme", "globex"}, cfg.Reconcile.Owners)

	// Bedrock region follows the storage region when unset.
	assert.Equal(t, "eu-west-1", cfg.Bedrock.Region)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.GetHost())
	assert.True(t, cfg.Logging.Redact())
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "ranked", cfg.Taxonomy.Variant)
	assert.Equal(t, 100, cfg.Taxonomy.MinEntries)
	assert.Equal(t, "3.1", cfg.Taxonomy.Version)
	assert.Equal(t, 12000, cfg.Classification.MaxContentChars)
	assert.Equal(t, 15*time.Second, cfg.Classification.FetchTimeout())
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout())
	assert.Equal(t, 15*time.Minute, cfg.Reconcile.LockTTL())
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
taxonomy:
  source: ./from-yaml.tsv
openai:
  model: from-yaml
`)
	t.Setenv("IAB_TSV_PATH", "https://example.com/taxonomy.tsv")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "7070")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/taxonomy.tsv", cfg.Taxonomy.Source)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "from-yaml", cfg.OpenAI.Model)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "local")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 100, cfg.Taxonomy.MinEntries)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
