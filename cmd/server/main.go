package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/content-signals/internal/api"
	"github.com/ignite/content-signals/internal/attribution"
	"github.com/ignite/content-signals/internal/classify"
	"github.com/ignite/content-signals/internal/completion"
	"github.com/ignite/content-signals/internal/config"
	"github.com/ignite/content-signals/internal/extract"
	"github.com/ignite/content-signals/internal/pkg/distlock"
	"github.com/ignite/content-signals/internal/pkg/httpretry"
	"github.com/ignite/content-signals/internal/pkg/logger"
	"github.com/ignite/content-signals/internal/reconcile"
	"github.com/ignite/content-signals/internal/repository/docstore"
	"github.com/ignite/content-signals/internal/repository/postgres"
	"github.com/ignite/content-signals/internal/service/segment"
	"github.com/ignite/content-signals/internal/snowflake"
	"github.com/ignite/content-signals/internal/store"
	"github.com/ignite/content-signals/internal/taxonomy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(logger.Options{
		Level:     cfg.Logging.Level,
		Mode:      cfg.Logging.Mode,
		RedactPII: cfg.Logging.Redact(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record store
	docs, err := store.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	classifications := store.NewClassifications(docs)
	attributions := store.NewAttributions(docs)
	signals := store.NewSignals(docs)
	logger.Info("storage initialized", "type", cfg.Storage.Type)

	// Optional PostgreSQL (segments, advisory locks)
	db := openPostgres(ctx, cfg.Postgres)
	if db != nil {
		defer db.Close()
	}

	// Optional Redis (run locks)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, locks fall back to postgres", "addr", cfg.Redis.Addr, "error", err)
			redisClient.Close()
			redisClient = nil
		}
		pingCancel()
	}

	// Taxonomy
	httpClient := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Taxonomy.FetchTimeout()}, cfg.Classification.MaxRetries)
	fetcher := &taxonomy.LocationFetcher{HTTP: httpClient, MaxBytes: cfg.Taxonomy.MaxSourceBytes}
	if s3Client := newS3Client(ctx, cfg); s3Client != nil {
		fetcher.S3 = s3Client
	}
	taxonomySvc := taxonomy.NewService(fetcher, cfg.Taxonomy.Source, taxonomy.Options{
		Variant:    cfg.Taxonomy.Variant,
		MinEntries: cfg.Taxonomy.MinEntries,
		Version:    cfg.Taxonomy.Version,
	}, taxonomy.WithAllowedSources(cfg.Taxonomy.AllowedSources...))
	go func() {
		if _, err := taxonomySvc.Current(ctx); err != nil {
			logger.Warn("taxonomy warm-up failed; it will be retried on first use", "source", cfg.Taxonomy.Source, "error", err)
		}
	}()

	// Classification
	h := &api.Handlers{
		Taxonomy:        taxonomySvc,
		Classifications: classifications,
	}
	completer, err := completion.New(ctx, cfg)
	if err != nil {
		logger.Warn("classification disabled", "provider", cfg.Classification.Provider, "error", err)
	} else {
		prompts, err := completion.NewPromptBuilder()
		if err != nil {
			log.Fatalf("Failed to build prompt template: %v", err)
		}
		pageClient := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Classification.FetchTimeout()}, cfg.Classification.MaxRetries)
		chain := extract.NewChain(pageClient,
			extract.WithMaxChars(cfg.Classification.MaxContentChars),
			extract.WithMaxBytes(cfg.Classification.MaxPageBytes))
		h.Classifier = classify.NewService(taxonomySvc, chain, prompts, completer, classifications,
			classify.WithConcurrency(cfg.Classification.Concurrency),
			classify.WithFeedFetcher(pageClient))
		logger.Info("classification enabled", "provider", cfg.Classification.Provider)
	}

	// Attribution
	var warehouse attribution.WarehouseReader
	if cfg.Snowflake.Enabled {
		sf, err := snowflake.NewClient(snowflake.FromAppConfig(cfg.Snowflake))
		if err != nil {
			logger.Warn("snowflake import disabled", "error", err)
		} else {
			defer sf.Close()
			warehouse = sf
			logger.Info("snowflake import enabled")
		}
	}
	h.Attribution = attribution.NewService(attributions, warehouse)

	// Reconciliation
	opts := []reconcile.Option{reconcile.WithConcurrency(cfg.Reconcile.Concurrency)}
	if locks := distlock.NewFactory(redisClient, db, cfg.Reconcile.LockTTL()); locks != nil {
		opts = append(opts, reconcile.WithLocks(locks))
	} else {
		logger.Warn("no lock backend configured; run exclusion is process-local")
	}
	h.Reconciler = reconcile.NewEngine(attributions, classifications, signals, opts...)

	// Segments
	var segments segment.Repository = docstore.NewSegmentRepo(docs)
	if db != nil {
		pg := postgres.NewSegmentRepo(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare segment schema: %v", err)
		}
		segments = pg
		logger.Info("segments stored in postgres")
	}
	h.Segments = segment.NewService(segments, signals)

	health := api.NewHealthChecker(db, redisClient, taxonomySvc)
	server := api.NewServer(cfg.Server, h, health)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) *sql.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("connected to postgres")
	return db
}

// newS3Client returns a client only when the taxonomy lives in S3, so local
// runs never resolve AWS credentials.
func newS3Client(ctx context.Context, cfg *config.Config) *s3.Client {
	if !strings.HasPrefix(cfg.Taxonomy.Source, "s3://") {
		return nil
	}
	awsCfg, err := store.LoadAWSConfig(ctx, cfg.Storage.AWSRegion, cfg.Storage.AWSProfile,
		cfg.Storage.AccessKeyID, cfg.Storage.SecretKey)
	if err != nil {
		logger.Warn("s3 taxonomy source unavailable", "error", err)
		return nil
	}
	return s3.NewFromConfig(awsCfg)
}
