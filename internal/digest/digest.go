// Package digest orchestrates a full schema digestion run: introspect the
// target database, describe each table with the model, embed the
// descriptions, and rebuild the vector collection.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/schemapilot/schemapilot/internal/observability"
	"github.com/schemapilot/schemapilot/internal/schema"
	"github.com/schemapilot/schemapilot/internal/vecstore"
)

// embedBatchSize bounds how many chunks go into one embeddings request.
const embedBatchSize = 64

type Introspector interface {
	ListTables(ctx context.Context) ([]schema.Table, error)
}

// Enricher is the snapshot-building surface. *enrich.Enricher satisfies it.
type Enricher interface {
	BuildSnapshot(ctx context.Context, tables []schema.Table, ignoredPatterns []string, databaseURL string) (schema.Snapshot, error)
	SaveSnapshot(snapshot schema.Snapshot) error
	LoadSnapshot() (schema.Snapshot, bool, error)
	SnapshotPath() string
}

// Embedder is the embedding surface. *llm.Client satisfies it.
type Embedder interface {
	EmbedBatch(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// Archiver uploads the snapshot to object storage after a successful run.
type Archiver interface {
	StoreSnapshot(ctx context.Context, snapshotJSON []byte) (string, error)
}

type Service struct {
	introspector Introspector
	enricher     Enricher
	embedder     Embedder
	store        vecstore.Store
	archiver     Archiver
	embedModel   string
	ignoreFile   string
	databaseURL  string
	logger       *slog.Logger
}

type Options struct {
	Introspector Introspector
	Enricher     Enricher
	Embedder     Embedder
	Store        vecstore.Store
	Archiver     Archiver
	EmbedModel   string
	IgnoreFile   string
	DatabaseURL  string
	Logger       *slog.Logger
}

func New(opts Options) (*Service, error) {
	if opts.Introspector == nil {
		return nil, fmt.Errorf("introspector is required")
	}
	if opts.Enricher == nil {
		return nil, fmt.Errorf("enricher is required")
	}
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if opts.EmbedModel == "" {
		return nil, fmt.Errorf("embed model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		introspector: opts.Introspector,
		enricher:     opts.Enricher,
		embedder:     opts.Embedder,
		store:        opts.Store,
		archiver:     opts.Archiver,
		embedModel:   opts.EmbedModel,
		ignoreFile:   opts.IgnoreFile,
		databaseURL:  opts.DatabaseURL,
		logger:       logger,
	}, nil
}

// Summary reports what a digest run did.
type Summary struct {
	CreatedIgnoreFile bool
	ReusedSnapshot    bool
	Tables            int
	IgnoredPatterns   int
	VectorSize        int
	SnapshotPath      string
	ArchiveKey        string
}

// Run performs one digestion. On the very first run it only writes the
// default ignore file and returns, so the operator can edit it before any
// tables are sent to the model. force rebuilds descriptions even when a
// cached snapshot exists.
func (s *Service) Run(ctx context.Context, force bool) (Summary, error) {
	start := time.Now()

	created, err := schema.WriteDefaultIgnoreFile(s.ignoreFile)
	if err != nil {
		return Summary{}, err
	}
	if created {
		s.logger.Info("created ignore file", slog.String("path", s.ignoreFile))
		return Summary{CreatedIgnoreFile: true}, nil
	}

	ignore, err := schema.LoadIgnoreFile(s.ignoreFile)
	if err != nil {
		return Summary{}, err
	}

	snapshot, reused, err := s.loadOrBuildSnapshot(ctx, ignore, force)
	if err != nil {
		return Summary{}, err
	}
	if len(snapshot.Tables) == 0 {
		return Summary{}, fmt.Errorf("cached snapshot %s contains no tables; re-run with -force", s.enricher.SnapshotPath())
	}

	vectorSize, err := s.rebuildCollection(ctx, snapshot)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ReusedSnapshot:  reused,
		Tables:          len(snapshot.Tables),
		IgnoredPatterns: len(ignore.Patterns()),
		VectorSize:      vectorSize,
		SnapshotPath:    s.enricher.SnapshotPath(),
	}

	if s.archiver != nil {
		key, err := s.archiveSnapshot(ctx, snapshot)
		if err != nil {
			return Summary{}, err
		}
		summary.ArchiveKey = key
	}

	observability.ObserveDigestRun(len(snapshot.Tables), time.Since(start))
	return summary, nil
}

func (s *Service) loadOrBuildSnapshot(ctx context.Context, ignore schema.IgnoreList, force bool) (schema.Snapshot, bool, error) {
	if !force {
		snapshot, ok, err := s.enricher.LoadSnapshot()
		if err != nil {
			return schema.Snapshot{}, false, err
		}
		if ok {
			s.logger.Info("reusing cached snapshot",
				slog.String("path", s.enricher.SnapshotPath()),
				slog.Time("generated_at", snapshot.GeneratedAt))
			return snapshot, true, nil
		}
	}

	tables, err := s.introspector.ListTables(ctx)
	if err != nil {
		return schema.Snapshot{}, false, fmt.Errorf("introspect schema: %w", err)
	}
	if len(tables) == 0 {
		return schema.Snapshot{}, false, fmt.Errorf("database schema contains no tables")
	}

	kept := make([]schema.Table, 0, len(tables))
	for _, table := range tables {
		if ignore.Match(table.Name) {
			s.logger.Info("skipping ignored table", slog.String("table", table.Name))
			continue
		}
		kept = append(kept, table)
	}
	if len(kept) == 0 {
		return schema.Snapshot{}, false, fmt.Errorf("no tables to digest after applying %s", s.ignoreFile)
	}

	snapshot, err := s.enricher.BuildSnapshot(ctx, kept, ignore.Patterns(), s.databaseURL)
	if err != nil {
		return schema.Snapshot{}, false, err
	}
	if err := s.enricher.SaveSnapshot(snapshot); err != nil {
		return schema.Snapshot{}, false, err
	}
	return snapshot, false, nil
}

// rebuildCollection embeds every table chunk and replaces the collection
// wholesale. Point IDs are positional over the sorted table names; the
// payload carries the identifying table name.
func (s *Service) rebuildCollection(ctx context.Context, snapshot schema.Snapshot) (int, error) {
	names := snapshot.TableNames()
	chunks := make([]string, len(names))
	for i, name := range names {
		chunks[i] = snapshot.Tables[name].EmbedText()
	}

	vectors := make([][]float32, 0, len(chunks))
	for startIdx := 0; startIdx < len(chunks); startIdx += embedBatchSize {
		end := startIdx + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.embedder.EmbedBatch(ctx, s.embedModel, chunks[startIdx:end])
		if err != nil {
			return 0, fmt.Errorf("embed schema chunks: %w", err)
		}
		vectors = append(vectors, batch...)
	}

	vectorSize := len(vectors[0])
	if err := s.store.Recreate(ctx, vectorSize); err != nil {
		return 0, fmt.Errorf("recreate collection: %w", err)
	}

	points := make([]vecstore.Point, len(names))
	for i, name := range names {
		doc := snapshot.Tables[name]
		points[i] = vecstore.Point{
			ID:     uint64(i + 1),
			Vector: vectors[i],
			Payload: vecstore.Payload{
				TableName:   doc.Table.Name,
				Description: doc.Description,
				Chunk:       chunks[i],
			},
		}
	}
	if err := s.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	s.logger.Info("collection rebuilt",
		slog.Int("points", len(points)),
		slog.Int("vector_size", vectorSize))
	return vectorSize, nil
}

func (s *Service) archiveSnapshot(ctx context.Context, snapshot schema.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot for archive: %w", err)
	}
	key, err := s.archiver.StoreSnapshot(ctx, data)
	if err != nil {
		return "", fmt.Errorf("archive snapshot: %w", err)
	}
	s.logger.Info("snapshot archived", slog.String("key", key))
	return key, nil
}

// DescribeSummary renders the run summary as operator-facing lines.
func DescribeSummary(summary Summary, ignoreFile string) []string {
	if summary.CreatedIgnoreFile {
		return []string{
			fmt.Sprintf("Created %s with usage instructions.", ignoreFile),
			"Edit it to exclude tables, then run the digest again.",
		}
	}
	lines := []string{
		fmt.Sprintf("Digested %d tables (vector size %d).", summary.Tables, summary.VectorSize),
		fmt.Sprintf("Snapshot written to %s.", summary.SnapshotPath),
	}
	if summary.ReusedSnapshot {
		lines = append(lines, "Descriptions reused from cache; pass -force to regenerate.")
	}
	if summary.IgnoredPatterns > 0 {
		lines = append(lines, fmt.Sprintf("%d ignore patterns applied.", summary.IgnoredPatterns))
	}
	if summary.ArchiveKey != "" {
		lines = append(lines, fmt.Sprintf("Snapshot archived as %s.", summary.ArchiveKey))
	}
	return lines
}
