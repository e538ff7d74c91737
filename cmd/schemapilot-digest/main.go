package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schemapilot/schemapilot/internal/archive"
	"github.com/schemapilot/schemapilot/internal/config"
	"github.com/schemapilot/schemapilot/internal/digest"
	"github.com/schemapilot/schemapilot/internal/enrich"
	"github.com/schemapilot/schemapilot/internal/executor"
	"github.com/schemapilot/schemapilot/internal/llm"
	"github.com/schemapilot/schemapilot/internal/observability"
	"github.com/schemapilot/schemapilot/internal/schema/introspect"
	"github.com/schemapilot/schemapilot/internal/vecstore/qdrant"
)

func main() {
	flags := flag.NewFlagSet("schemapilot-digest", flag.ExitOnError)
	force := flags.Bool("force", false, "regenerate table descriptions even when a cached snapshot exists")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadFromEnv("schemapilot-digest")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.StartMetricsServer(ctx, cfg.Observability.MetricsAddr, logger)

	db, driver, err := executor.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	introspector, err := introspect.New(db, driver, cfg.Digest.SampleRows)
	if err != nil {
		logger.Error("failed to build introspector", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout,
	})
	if err != nil {
		logger.Error("failed to build model client", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := qdrant.New(qdrant.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
	})
	if err != nil {
		logger.Error("failed to build vector store", slog.Any("error", err))
		os.Exit(1)
	}

	var archiver digest.Archiver
	if cfg.Archive.Enabled {
		a, err := archive.New(ctx, archive.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize snapshot archive", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = a
	}

	service, err := digest.New(digest.Options{
		Introspector: introspector,
		Enricher:     enrich.New(client, cfg.OpenAI.EnrichModel, cfg.Digest.CacheDir, logger),
		Embedder:     client,
		Store:        store,
		Archiver:     archiver,
		EmbedModel:   cfg.OpenAI.EmbedModel,
		IgnoreFile:   cfg.Digest.IgnoreFile,
		DatabaseURL:  cfg.Database.URL,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build digest service", slog.Any("error", err))
		os.Exit(1)
	}

	summary, err := service.Run(ctx, *force)
	if err != nil {
		logger.Error("digest run failed", slog.Any("error", err))
		os.Exit(1)
	}
	for _, line := range digest.DescribeSummary(summary, cfg.Digest.IgnoreFile) {
		fmt.Println(line)
	}
}
