package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/schemapilot/schemapilot/internal/chat"
	"github.com/schemapilot/schemapilot/internal/config"
	"github.com/schemapilot/schemapilot/internal/enrich"
	"github.com/schemapilot/schemapilot/internal/executor"
	"github.com/schemapilot/schemapilot/internal/llm"
	"github.com/schemapilot/schemapilot/internal/nl2sql"
	"github.com/schemapilot/schemapilot/internal/observability"
	"github.com/schemapilot/schemapilot/internal/render"
	"github.com/schemapilot/schemapilot/internal/vecstore/qdrant"
)

func main() {
	flags := flag.NewFlagSet("schemapilot-chat", flag.ExitOnError)
	noExec := flags.Bool("no-exec", false, "print generated SQL without executing it")
	plain := flags.Bool("plain", false, "disable styled terminal output")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadFromEnv("schemapilot-chat")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.StartMetricsServer(ctx, cfg.Observability.MetricsAddr, logger)

	snapshotPath := filepath.Join(cfg.Digest.CacheDir, "enriched_schema.json")
	snapshot, ok, err := enrich.LoadSnapshot(snapshotPath)
	if err != nil {
		logger.Error("failed to load schema snapshot", slog.Any("error", err))
		os.Exit(1)
	}
	if !ok {
		logger.Error("no schema snapshot found; run schemapilot-digest first",
			slog.String("path", snapshotPath))
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

	generator, err := nl2sql.NewOpenAIGenerator(client, cfg.OpenAI.SQLModel, cfg.Chat.TablesPerCall, logger)
	if err != nil {
		logger.Error("failed to build generator", slog.Any("error", err))
		os.Exit(1)
	}

	var runner chat.Runner
	if !*noExec {
		db, _, err := executor.Open(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		runner = chat.DBRunner{DB: db}
	}

	pretty := !*plain && term.IsTerminal(int(os.Stdout.Fd()))
	width := 100
	if pretty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	session, err := chat.New(chat.Options{
		Snapshot:   snapshot,
		Embedder:   client,
		Store:      store,
		Generator:  generator,
		Runner:     runner,
		Renderer:   render.New(pretty, width),
		EmbedModel: cfg.OpenAI.EmbedModel,
		TopK:       cfg.Chat.TopK,
		RowLimit:   cfg.Chat.RowLimit,
		NoExec:     *noExec,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to build chat session", slog.Any("error", err))
		os.Exit(1)
	}

	if err := session.Run(ctx); err != nil {
		logger.Error("chat session failed", slog.Any("error", err))
		os.Exit(1)
	}
}
