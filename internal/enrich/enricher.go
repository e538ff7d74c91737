// Package enrich turns introspected tables into model-described schema
// documents and caches the result between runs.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/schemapilot/schemapilot/internal/schema"
)

const snapshotFileName = "enriched_schema.json"

const describeSystemPrompt = `You are a database expert. Analyze the provided table schema and generate a detailed description including:
1. The purpose of the table
2. Explanation of key columns
3. Relationships with other tables
4. Common business use cases
Be concise but comprehensive.`

// Completer is the chat-completion surface the enricher needs.
// *llm.Client satisfies it.
type Completer interface {
	ChatCompletion(ctx context.Context, model, system, user string) (string, error)
}

type Enricher struct {
	completer Completer
	model     string
	cacheDir  string
	logger    *slog.Logger
}

func New(completer Completer, model, cacheDir string, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{completer: completer, model: model, cacheDir: cacheDir, logger: logger}
}

func (e *Enricher) SnapshotPath() string {
	return filepath.Join(e.cacheDir, snapshotFileName)
}

// BuildSnapshot asks the model to describe each table and assembles the
// digested snapshot. The first description failure aborts the run.
func (e *Enricher) BuildSnapshot(ctx context.Context, tables []schema.Table, ignoredPatterns []string, databaseURL string) (schema.Snapshot, error) {
	snapshot := schema.Snapshot{
		GeneratedAt:     time.Now().UTC(),
		Database:        redactURL(databaseURL),
		IgnoredPatterns: ignoredPatterns,
		Tables:          make(map[string]schema.TableDoc, len(tables)),
	}

	for _, table := range tables {
		e.logger.Info("describing table", slog.String("table", table.Name))
		description, err := e.completer.ChatCompletion(ctx, e.model, describeSystemPrompt, table.Render())
		if err != nil {
			return schema.Snapshot{}, fmt.Errorf("describe table %s: %w", table.Name, err)
		}
		snapshot.Tables[table.Name] = schema.TableDoc{Table: table, Description: description}
	}
	return snapshot, nil
}

func (e *Enricher) SaveSnapshot(snapshot schema.Snapshot) error {
	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(e.SnapshotPath(), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the cached snapshot. ok is false when no cache
// exists yet.
func (e *Enricher) LoadSnapshot() (schema.Snapshot, bool, error) {
	return LoadSnapshot(e.SnapshotPath())
}

func LoadSnapshot(path string) (schema.Snapshot, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return schema.Snapshot{}, false, nil
		}
		return schema.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot schema.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return schema.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, true, nil
}

// redactURL strips credentials before the connection string is persisted.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	return parsed.Redacted()
}
