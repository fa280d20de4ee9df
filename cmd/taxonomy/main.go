// Command taxonomy builds an index from a TSV source and publishes it as
// JSON to stdout, a file or s3://bucket/key.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/content-signals/internal/config"
	"github.com/ignite/content-signals/internal/pkg/httpretry"
	"github.com/ignite/content-signals/internal/pkg/logger"
	"github.com/ignite/content-signals/internal/store"
	"github.com/ignite/content-signals/internal/taxonomy"
)

type document struct {
	Source  string               `json:"source"`
	Version string               `json:"version"`
	Variant string               `json:"variant"`
	BuiltAt time.Time            `json:"built_at"`
	Stats   taxonomy.Stats       `json:"stats"`
	Report  taxonomy.BuildReport `json:"report"`
	Entries []taxonomy.Entry     `json:"entries"`
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	source := flag.String("source", "", "taxonomy source (file, http(s) or s3:// URL); defaults to the configured source")
	variant := flag.String("variant", "", "ranked or explicit; defaults to the configured variant")
	out := flag.String("out", "-", "destination: -, a file path or s3://bucket/key")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(logger.Options{Level: cfg.Logging.Level, Mode: cfg.Logging.Mode, RedactPII: cfg.Logging.Redact()}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if *source == "" {
		*source = cfg.Taxonomy.Source
	}
	if *variant == "" {
		*variant = cfg.Taxonomy.Variant
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var s3Client *s3.Client
	if strings.HasPrefix(*source, "s3://") || strings.HasPrefix(*out, "s3://") {
		awsCfg, err := store.LoadAWSConfig(ctx, cfg.Storage.AWSRegion, cfg.Storage.AWSProfile, cfg.Storage.AccessKeyID, cfg.Storage.SecretKey)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		s3Client = s3.NewFromConfig(awsCfg)
	}

	fetcher := &taxonomy.LocationFetcher{
		HTTP:     httpretry.NewRetryClient(&http.Client{Timeout: cfg.Taxonomy.FetchTimeout()}, 3),
		MaxBytes: cfg.Taxonomy.MaxSourceBytes,
	}
	if s3Client != nil {
		fetcher.S3 = s3Client
	}
	data, err := fetcher.Fetch(ctx, *source)
	if err != nil {
		log.Fatalf("Failed to fetch taxonomy: %v", err)
	}
	idx, err := taxonomy.Build(data, taxonomy.Options{
		Source:     *source,
		Variant:    *variant,
		MinEntries: cfg.Taxonomy.MinEntries,
		Version:    cfg.Taxonomy.Version,
	})
	if err != nil {
		log.Fatalf("Failed to build taxonomy: %v", err)
	}

	body, err := json.MarshalIndent(document{
		Source:  idx.Source(),
		Version: idx.Version(),
		Variant: idx.Variant(),
		BuiltAt: idx.BuiltAt(),
		Stats:   idx.Stats(),
		Report:  idx.Report(),
		Entries: idx.Entries(),
	}, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode taxonomy: %v", err)
	}

	if err := publish(ctx, s3Client, *out, body); err != nil {
		log.Fatalf("Failed to publish taxonomy: %v", err)
	}
	logger.Info("taxonomy published", "source", *source, "entries", idx.Len(), "out", *out)
}

func publish(ctx context.Context, client *s3.Client, dest string, body []byte) error {
	switch {
	case dest == "" || dest == "-":
		_, err := os.Stdout.Write(append(body, '\n'))
		return err
	case strings.HasPrefix(dest, "s3://"):
		bucket, key, err := taxonomy.ParseS3URI(dest)
		if err != nil {
			return err
		}
		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("putting s3://%s/%s: %w", bucket, key, err)
		}
		return nil
	default:
		return os.WriteFile(dest, body, 0o644)
	}
}
