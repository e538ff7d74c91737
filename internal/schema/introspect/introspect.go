// Package introspect discovers tables, columns, and key constraints from
// the target database using the catalog each engine exposes.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/schemapilot/schemapilot/internal/schema"
)

type Introspector interface {
	ListTables(ctx context.Context) ([]schema.Table, error)
}

// New returns the introspector for the given driver. sampleRows > 0
// additionally fetches up to that many rows per table as prompt context.
func New(db *sql.DB, driver string, sampleRows int) (Introspector, error) {
	switch driver {
	case "pgx":
		return &postgresIntrospector{db: db, sampleRows: sampleRows}, nil
	case "duckdb":
		return &duckdbIntrospector{db: db, sampleRows: sampleRows}, nil
	case "sqlite":
		return &sqliteIntrospector{db: db, sampleRows: sampleRows}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// fetchSampleRows reads up to limit rows from table, stringifying every
// value. Errors are returned so the caller can decide whether sampling is
// fatal; the digester treats it as such.
func fetchSampleRows(ctx context.Context, db *sql.DB, table string, limit int) ([][]string, error) {
	query := fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(table), limit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample rows for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sample columns for %s: %w", table, err)
	}

	var samples [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan sample row for %s: %w", table, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		samples = append(samples, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows for %s: %w", table, err)
	}
	return samples, nil
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(value)
	case time.Time:
		return value.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
