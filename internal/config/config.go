package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Storage        StorageConfig        `yaml:"storage"`
	Taxonomy       TaxonomyConfig       `yaml:"taxonomy"`
	Classification ClassificationConfig `yaml:"classification"`
	OpenAI         OpenAIConfig         `yaml:"openai"`
	Bedrock        BedrockConfig        `yaml:"bedrock"`
	Reconcile      ReconcileConfig      `yaml:"reconcile"`
	Redis          RedisConfig          `yaml:"redis"`
	Postgres       PostgresConfig       `yaml:"postgres"`
	Snowflake      SnowflakeConfig      `yaml:"snowflake"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port" env:"PORT"`
	Host           string   `yaml:"host" env:"HOST"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the bind host, defaulting to all interfaces.
func (c ServerConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level" env:"LOG_LEVEL"`
	Mode      string `yaml:"mode" env:"LOG_MODE"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. Defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Type          string `yaml:"type" env:"STORAGE_TYPE"` // "memory", "local" or "aws"
	LocalPath     string `yaml:"local_path" env:"STORAGE_LOCAL_PATH"`
	DynamoDBTable string `yaml:"dynamodb_table" env:"DYNAMODB_TABLE"`
	AWSRegion     string `yaml:"aws_region" env:"AWS_REGION"`
	AWSProfile    string `yaml:"aws_profile" env:"AWS_PROFILE"`
	AccessKeyID   string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretKey     string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
}

// TaxonomyConfig controls taxonomy ingestion.
type TaxonomyConfig struct {
	Source         string `yaml:"source" env:"IAB_TSV_PATH"`
	Variant        string `yaml:"variant" env:"TAXONOMY_VARIANT"` // "ranked" or "explicit"
	MinEntries     int    `yaml:"min_entries" env:"TAXONOMY_MIN_ENTRIES"`
	Version        string `yaml:"version" env:"TAXONOMY_VERSION"`
	FetchTimeoutS  int    `yaml:"fetch_timeout_seconds"`
	MaxSourceBytes int64  `yaml:"max_source_bytes"`
	// AllowedSources lists extra locations callers may select with
	// ?source= or a reload body. The default source is always allowed.
	AllowedSources []string `yaml:"allowed_sources" env:"TAXONOMY_ALLOWED_SOURCES" env-separator:","`
}

// FetchTimeout returns the timeout for remote taxonomy sources.
func (c TaxonomyConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutS) * time.Second
}

// ClassificationConfig controls the classification pipeline.
type ClassificationConfig struct {
	Provider        string `yaml:"provider" env:"CLASSIFICATION_PROVIDER"` // "openai" or "bedrock"
	MaxContentChars int    `yaml:"max_content_chars"`
	Concurrency     int    `yaml:"concurrency"`
	FetchTimeoutS   int    `yaml:"fetch_timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	MaxPageBytes    int64  `yaml:"max_page_bytes"`
}

// FetchTimeout returns the timeout for content page fetches.
func (c ClassificationConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutS) * time.Second
}

// OpenAIConfig holds OpenAI-compatible completion settings
type OpenAIConfig struct {
	APIKey         string  `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL        string  `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model          string  `yaml:"model" env:"OPENAI_MODEL"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BedrockConfig holds AWS Bedrock completion settings
type BedrockConfig struct {
	ModelID   string `yaml:"model_id" env:"BEDROCK_MODEL_ID"`
	Region    string `yaml:"region" env:"BEDROCK_REGION"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ReconcileConfig controls reconciliation runs.
type ReconcileConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	LockTTLSeconds int      `yaml:"lock_ttl_seconds"`
	Owners         []string `yaml:"owners"`
}

// LockTTL returns the run lock TTL.
func (c ReconcileConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RedisConfig holds Redis connection settings for the run lock.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds the segment database connection.
type PostgresConfig struct {
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// SnowflakeConfig holds warehouse settings for attribution import.
type SnowflakeConfig struct {
	Enabled          bool   `yaml:"enabled" env:"SNOWFLAKE_ENABLED"`
	ConnectionString string `yaml:"connection_string" env:"SNOWFLAKE_CONNECTION_STRING"`
	Account   string `yaml:"account" env:"SNOWFLAKE_ACCOUNT"`
	User      string `yaml:"user" env:"SNOWFLAKE_USER"`
	Password  string `yaml:"password" env:"SNOWFLAKE_PASSWORD"`
	Database  string `yaml:"database" env:"SNOWFLAKE_DATABASE"`
	Schema    string `yaml:"schema" env:"SNOWFLAKE_SCHEMA"`
	Warehouse string `yaml:"warehouse" env:"SNOWFLAKE_WAREHOUSE"`
	Role      string `yaml:"role" env:"SNOWFLAKE_ROLE"`
	Table     string `yaml:"table" env:"SNOWFLAKE_TABLE"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromEnv loads an optional .env file, then the YAML file (when it
// exists), then overlays environment variables declared in env tags.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Mode == "" {
		cfg.Logging.Mode = "prod"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/store"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.DynamoDBTable == "" {
		cfg.Storage.DynamoDBTable = "content-signals"
	}
	if cfg.Taxonomy.Source == "" {
		cfg.Taxonomy.Source = "./data/taxonomy.tsv"
	}
	if cfg.Taxonomy.Variant == "" {
		cfg.Taxonomy.Variant = "ranked"
	}
	if cfg.Taxonomy.MinEntries == 0 {
		cfg.Taxonomy.MinEntries = 100
	}
	if cfg.Taxonomy.Version == "" {
		cfg.Taxonomy.Version = "3.1"
	}
	if cfg.Taxonomy.FetchTimeoutS == 0 {
		cfg.Taxonomy.FetchTimeoutS = 30
	}
	if cfg.Taxonomy.MaxSourceBytes == 0 {
		cfg.Taxonomy.MaxSourceBytes = 16 << 20
	}
	if cfg.Classification.Provider == "" {
		cfg.Classification.Provider = "openai"
	}
	if cfg.Classification.MaxContentChars == 0 {
		cfg.Classification.MaxContentChars = 12000
	}
	if cfg.Classification.Concurrency == 0 {
		cfg.Classification.Concurrency = 4
	}
	if cfg.Classification.FetchTimeoutS == 0 {
		cfg.Classification.FetchTimeoutS = 15
	}
	if cfg.Classification.MaxRetries == 0 {
		cfg.Classification.MaxRetries = 3
	}
	if cfg.Classification.MaxPageBytes == 0 {
		cfg.Classification.MaxPageBytes = 2 << 20
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 1024
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 60
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = cfg.Storage.AWSRegion
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 1024
	}
	if cfg.Reconcile.Concurrency == 0 {
		cfg.Reconcile.Concurrency = 4
	}
	if cfg.Reconcile.LockTTLSeconds == 0 {
		cfg.Reconcile.LockTTLSeconds = 900
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 10
	}
	if cfg.Snowflake.Table == "" {
		cfg.Snowflake.Table = "ATTRIBUTION_METRICS"
	}
}
