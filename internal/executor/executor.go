// Package executor opens the target database and runs generated queries.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/schemapilot/schemapilot/internal/config"
	"github.com/schemapilot/schemapilot/internal/observability"
)

// Result holds one executed query's output. Rows are stringified for
// display; values are not persisted beyond the session.
type Result struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// DriverForURL maps a connection string onto a registered driver and its
// DSN. Postgres URLs pass through unchanged; duckdb and sqlite accept
// either a scheme prefix or a bare file path.
func DriverForURL(raw string) (driver string, dsn string, err error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return "", "", fmt.Errorf("database url is required")
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		return "pgx", trimmed, nil
	case strings.HasPrefix(trimmed, "duckdb://"):
		return "duckdb", strings.TrimPrefix(trimmed, "duckdb://"), nil
	case strings.HasSuffix(trimmed, ".duckdb"):
		return "duckdb", trimmed, nil
	case strings.HasPrefix(trimmed, "sqlite://"):
		return "sqlite", strings.TrimPrefix(trimmed, "sqlite://"), nil
	case strings.HasSuffix(trimmed, ".db"), strings.HasSuffix(trimmed, ".sqlite"), strings.HasSuffix(trimmed, ".sqlite3"):
		return "sqlite", trimmed, nil
	default:
		return "", "", fmt.Errorf("cannot determine driver for database url %q", trimmed)
	}
}

// Open connects to the target database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, string, error) {
	driver, dsn, err := DriverForURL(cfg.URL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping database: %w", err)
	}
	return db, driver, nil
}

// Run executes sqlText and stringifies up to rowLimit rows.
func Run(ctx context.Context, db *sql.DB, sqlText string, rowLimit int) (Result, error) {
	result, err := run(ctx, db, sqlText, rowLimit)
	observability.ObserveQueryExecution(err)
	return result, err
}

func run(ctx context.Context, db *sql.DB, sqlText string, rowLimit int) (Result, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read result columns: %w", err)
	}

	result := Result{Columns: columns, Rows: make([][]string, 0)}
	for rows.Next() {
		if rowLimit > 0 && len(result.Rows) >= rowLimit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan result row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate result rows: %w", err)
	}
	return result, nil
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(value)
	case time.Time:
		return value.Format(time.RFC3339)
	default:
		return fmt.Sprint(value)
	}
}
