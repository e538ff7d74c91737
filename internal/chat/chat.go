// Package chat runs the interactive question loop: embed the question,
// retrieve schema context, generate SQL, validate it, and execute it
// against the target database.
package chat

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/schemapilot/schemapilot/internal/executor"
	"github.com/schemapilot/schemapilot/internal/nl2sql"
	"github.com/schemapilot/schemapilot/internal/render"
	"github.com/schemapilot/schemapilot/internal/schema"
	"github.com/schemapilot/schemapilot/internal/sqlguard"
	"github.com/schemapilot/schemapilot/internal/vecstore"
)

const prompt = "schemapilot> "

// Embedder is the single-input embedding surface. *llm.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

// Runner executes validated SQL. The production implementation wraps
// executor.Run over the open database handle.
type Runner interface {
	Execute(ctx context.Context, sqlText string, rowLimit int) (executor.Result, error)
}

type Session struct {
	snapshot  schema.Snapshot
	embedder  Embedder
	store     vecstore.Store
	generator nl2sql.Generator
	runner    Runner
	renderer  *render.Renderer

	embedModel string
	topK       int
	rowLimit   int
	noExec     bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

type Options struct {
	Snapshot  schema.Snapshot
	Embedder  Embedder
	Store     vecstore.Store
	Generator nl2sql.Generator
	Runner    Runner
	Renderer  *render.Renderer

	EmbedModel string
	TopK       int
	RowLimit   int
	NoExec     bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func New(opts Options) (*Session, error) {
	if len(opts.Snapshot.Tables) == 0 {
		return nil, fmt.Errorf("snapshot has no tables")
	}
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Runner == nil && !opts.NoExec {
		return nil, fmt.Errorf("runner is required unless execution is disabled")
	}
	if opts.EmbedModel == "" {
		return nil, fmt.Errorf("embed model is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(false, 0)
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		snapshot:   opts.Snapshot,
		embedder:   opts.Embedder,
		store:      opts.Store,
		generator:  opts.Generator,
		runner:     opts.Runner,
		renderer:   opts.Renderer,
		embedModel: opts.EmbedModel,
		topK:       opts.TopK,
		rowLimit:   opts.RowLimit,
		noExec:     opts.NoExec,
		stdin:      opts.Stdin,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		logger:     logger,
	}, nil
}

// Run reads questions until EOF or an exit command. Per-question failures
// are printed and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintf(s.stdout, "Connected to %s (%d tables digested).\n", s.snapshot.Database, len(s.snapshot.Tables))
	fmt.Fprintln(s.stdout, `Ask a question in plain language, or type "schema" to list tables, "exit" to quit.`)

	scanner := bufio.NewScanner(s.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.stdout, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if done := s.dispatch(ctx, line); done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// dispatch handles one input line and reports whether the loop should end.
func (s *Session) dispatch(ctx context.Context, line string) bool {
	switch {
	case line == "exit" || line == "quit":
		fmt.Fprintln(s.stdout, "Bye.")
		return true
	case line == "help":
		s.printHelp()
		return false
	case line == "schema":
		s.printTableList()
		return false
	case strings.HasPrefix(line, "schema "):
		s.printTable(strings.TrimSpace(strings.TrimPrefix(line, "schema ")))
		return false
	}

	answer, err := s.Ask(ctx, line)
	if err != nil {
		fmt.Fprintf(s.stderr, "error: %v\n", err)
		var unknown *sqlguard.ErrUnknownTables
		if errors.As(err, &unknown) {
			fmt.Fprintln(s.stderr, `try rephrasing the question around digested tables (type "schema" to list them)`)
		}
		return false
	}
	fmt.Fprintln(s.stdout, s.renderer.Render(answer))
	return false
}

// Ask runs the full pipeline for one question.
func (s *Session) Ask(ctx context.Context, question string) (render.Answer, error) {
	vector, err := s.embedder.Embed(ctx, s.embedModel, question)
	if err != nil {
		return render.Answer{}, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.store.Search(ctx, vector, s.topK)
	if err != nil {
		return render.Answer{}, fmt.Errorf("search schema: %w", err)
	}
	if len(hits) == 0 {
		return render.Answer{}, fmt.Errorf("no schema context matched the question; re-run digestion")
	}

	result, err := s.generator.Generate(ctx, nl2sql.Request{
		Question: question,
		Tables:   s.tableContexts(hits),
	})
	if err != nil {
		return render.Answer{}, err
	}
	s.logger.Info("generated query",
		slog.String("model", result.Model),
		slog.Float64("confidence", result.Confidence),
		slog.Any("tables", result.Tables))

	if err := sqlguard.CheckReadOnly(result.SQL); err != nil {
		return render.Answer{}, fmt.Errorf("rejected query: %w", err)
	}
	if err := sqlguard.CheckKnownTables(result.SQL, s.snapshot.KnownIdentifiers()); err != nil {
		return render.Answer{}, fmt.Errorf("rejected query: %w", err)
	}

	answer := render.Answer{
		SQL:        result.SQL,
		Confidence: result.Confidence,
		RowLimit:   s.rowLimit,
	}
	if s.noExec {
		return answer, nil
	}

	execResult, err := s.runner.Execute(ctx, result.SQL, s.rowLimit)
	if err != nil {
		return render.Answer{}, fmt.Errorf("run query: %w", err)
	}
	answer.Result = &execResult
	return answer, nil
}

// tableContexts resolves search hits back to full table docs so the
// generator sees the rendered schema, not just the embedded chunk.
func (s *Session) tableContexts(hits []vecstore.Hit) []nl2sql.TableContext {
	contexts := make([]nl2sql.TableContext, 0, len(hits))
	for _, hit := range hits {
		tableSchema := hit.Chunk
		if doc, ok := s.snapshot.Lookup(hit.TableName); ok {
			tableSchema = doc.Table.Render()
		}
		contexts = append(contexts, nl2sql.TableContext{
			TableName:   hit.TableName,
			Description: hit.Description,
			Schema:      tableSchema,
			Score:       hit.Score,
		})
	}
	return contexts
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.stdout, "Commands:")
	fmt.Fprintln(s.stdout, "  schema          list digested tables")
	fmt.Fprintln(s.stdout, "  schema <table>  show a table's description")
	fmt.Fprintln(s.stdout, "  exit            quit")
	fmt.Fprintln(s.stdout, "Anything else is treated as a question about the data.")
}

func (s *Session) printTableList() {
	for _, name := range s.snapshot.TableNames() {
		fmt.Fprintf(s.stdout, "  %s\n", name)
	}
}

func (s *Session) printTable(name string) {
	doc, ok := s.snapshot.Lookup(name)
	if !ok {
		fmt.Fprintf(s.stderr, "unknown table %q\n", name)
		return
	}
	fmt.Fprintln(s.stdout, doc.Table.Render())
	if doc.Description != "" {
		fmt.Fprintln(s.stdout, doc.Description)
	}
}

// DBRunner adapts an open database handle to the Runner interface.
type DBRunner struct {
	DB *sql.DB
}

func (r DBRunner) Execute(ctx context.Context, sqlText string, rowLimit int) (executor.Result, error) {
	return executor.Run(ctx, r.DB, sqlText, rowLimit)
}
