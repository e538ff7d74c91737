package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schemapilot/schemapilot/internal/schema"
)

type duckdbIntrospector struct {
	db         *sql.DB
	sampleRows int
}

// DuckDB speaks information_schema for columns; constraint metadata is
// engine-specific, so primary keys come from duckdb_constraints().
const duckdbColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name, ordinal_position`

const duckdbPrimaryKeysQuery = `
SELECT table_name, UNNEST(constraint_column_names)
FROM duckdb_constraints()
WHERE constraint_type = 'PRIMARY KEY' AND schema_name = 'main'`

func (d *duckdbIntrospector) ListTables(ctx context.Context) ([]schema.Table, error) {
	tables := make(map[string]*schema.Table)
	var order []string

	rows, err := d.db.QueryContext(ctx, duckdbColumnsQuery)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		var columnDefault sql.NullString
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &columnDefault); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			table = &schema.Table{Name: tableName}
			tables[tableName] = table
			order = append(order, tableName)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:     columnName,
			DataType: dataType,
			Nullable: isNullable == "YES",
			Default:  columnDefault.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	pkRows, err := d.db.QueryContext(ctx, duckdbPrimaryKeysQuery)
	if err != nil {
		return nil, fmt.Errorf("query primary keys: %w", err)
	}
	defer func() { _ = pkRows.Close() }()
	for pkRows.Next() {
		var tableName, columnName string
		if err := pkRows.Scan(&tableName, &columnName); err != nil {
			return nil, fmt.Errorf("scan primary key row: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			continue
		}
		table.PrimaryKey = append(table.PrimaryKey, columnName)
		for i := range table.Columns {
			if table.Columns[i].Name == columnName {
				table.Columns[i].PrimaryKey = true
			}
		}
	}
	if err := pkRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary key rows: %w", err)
	}

	result := make([]schema.Table, 0, len(order))
	for _, name := range order {
		table := tables[name]
		if d.sampleRows > 0 {
			samples, err := fetchSampleRows(ctx, d.db, name, d.sampleRows)
			if err != nil {
				return nil, err
			}
			table.SampleRows = samples
		}
		result = append(result, *table)
	}
	return result, nil
}
