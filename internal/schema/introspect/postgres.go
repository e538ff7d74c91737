package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schemapilot/schemapilot/internal/schema"
)

type postgresIntrospector struct {
	db         *sql.DB
	sampleRows int
}

const pgColumnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const pgPrimaryKeysQuery = `
SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public'
ORDER BY kcu.table_name, kcu.ordinal_position`

const pgForeignKeysQuery = `
SELECT tc.constraint_name, tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'
ORDER BY tc.table_name, kcu.ordinal_position`

func (p *postgresIntrospector) ListTables(ctx context.Context) ([]schema.Table, error) {
	tables := make(map[string]*schema.Table)
	var order []string

	rows, err := p.db.QueryContext(ctx, pgColumnsQuery)
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

	if err := p.applyPrimaryKeys(ctx, tables); err != nil {
		return nil, err
	}
	if err := p.applyForeignKeys(ctx, tables); err != nil {
		return nil, err
	}

	result := make([]schema.Table, 0, len(order))
	for _, name := range order {
		table := tables[name]
		if p.sampleRows > 0 {
			samples, err := fetchSampleRows(ctx, p.db, name, p.sampleRows)
			if err != nil {
				return nil, err
			}
			table.SampleRows = samples
		}
		result = append(result, *table)
	}
	return result, nil
}

func (p *postgresIntrospector) applyPrimaryKeys(ctx context.Context, tables map[string]*schema.Table) error {
	rows, err := p.db.QueryContext(ctx, pgPrimaryKeysQuery)
	if err != nil {
		return fmt.Errorf("query primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return fmt.Errorf("scan primary key row: %w", err)
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
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate primary key rows: %w", err)
	}
	return nil
}

func (p *postgresIntrospector) applyForeignKeys(ctx context.Context, tables map[string]*schema.Table) error {
	rows, err := p.db.QueryContext(ctx, pgForeignKeysQuery)
	if err != nil {
		return fmt.Errorf("query foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type fkKey struct {
		table      string
		constraint string
	}
	grouped := make(map[fkKey]*schema.ForeignKey)
	var groupedOrder []fkKey

	for rows.Next() {
		var constraintName, tableName, columnName, refTable, refColumn string
		if err := rows.Scan(&constraintName, &tableName, &columnName, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scan foreign key row: %w", err)
		}
		key := fkKey{table: tableName, constraint: constraintName}
		fk, ok := grouped[key]
		if !ok {
			fk = &schema.ForeignKey{RefTable: refTable}
			grouped[key] = fk
			groupedOrder = append(groupedOrder, key)
		}
		fk.Columns = append(fk.Columns, columnName)
		fk.RefColumns = append(fk.RefColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign key rows: %w", err)
	}

	for _, key := range groupedOrder {
		if table, ok := tables[key.table]; ok {
			table.ForeignKeys = append(table.ForeignKeys, *grouped[key])
		}
	}
	return nil
}
