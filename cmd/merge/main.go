// Command merge runs one reconciliation pass outside the API server, for
// cron-style scheduling.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/content-signals/internal/config"
	"github.com/ignite/content-signals/internal/pkg/distlock"
	"github.com/ignite/content-signals/internal/pkg/logger"
	"github.com/ignite/content-signals/internal/reconcile"
	"github.com/ignite/content-signals/internal/store"
)

type ownerList []string

func (o *ownerList) String() string { return strings.Join(*o, ",") }

func (o *ownerList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*o = append(*o, s)
		}
	}
	return nil
}

func main() {
	var owners ownerList
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	all := flag.Bool("all", false, "reconcile every record regardless of owner")
	flag.Var(&owners, "owner", "owner to reconcile (repeatable, comma-separated)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(logger.Options{Level: cfg.Logging.Level, Mode: cfg.Logging.Mode, RedactPII: cfg.Logging.Redact()}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if len(owners) == 0 && !*all {
		owners = append(owners, cfg.Reconcile.Owners...)
	}
	if len(owners) == 0 && !*all {
		log.Fatal("no owners given; pass -owner or -all, or set reconcile.owners")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := store.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	var db *sql.DB
	if cfg.Postgres.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.Postgres.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer redisClient.Close()
	}

	opts := []reconcile.Option{reconcile.WithConcurrency(cfg.Reconcile.Concurrency)}
	if locks := distlock.NewFactory(redisClient, db, cfg.Reconcile.LockTTL()); locks != nil {
		opts = append(opts, reconcile.WithLocks(locks))
	}
	engine := reconcile.NewEngine(store.NewAttributions(docs), store.NewClassifications(docs), store.NewSignals(docs), opts...)

	start := time.Now()
	var results []*reconcile.RunResult
	if *all {
		res, err := engine.Run(ctx, "")
		results = append(results, res)
		if err != nil {
			logger.Error("reconciliation failed", "error", err)
		}
	} else {
		results, err = engine.RunOwners(ctx, owners)
		if err != nil {
			logger.Error("reconciliation failed", "error", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := 0
	for _, res := range results {
		if res == nil || !res.Success {
			failed++
		}
	}
	if err := enc.Encode(results); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}
	logger.Info("reconciliation finished", "runs", len(results), "failed", failed, "elapsed", time.Since(start).String())
	if failed > 0 {
		os.Exit(1)
	}
}
