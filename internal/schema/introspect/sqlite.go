package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schemapilot/schemapilot/internal/schema"
)

type sqliteIntrospector struct {
	db         *sql.DB
	sampleRows int
}

const sqliteTablesQuery = `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

func (s *sqliteIntrospector) ListTables(ctx context.Context) ([]schema.Table, error) {
	rows, err := s.db.QueryContext(ctx, sqliteTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	tables := make([]schema.Table, 0, len(names))
	for _, name := range names {
		table, err := s.describeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if s.sampleRows > 0 {
			samples, err := fetchSampleRows(ctx, s.db, name, s.sampleRows)
			if err != nil {
				return nil, err
			}
			table.SampleRows = samples
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *sqliteIntrospector) describeTable(ctx context.Context, name string) (schema.Table, error) {
	table := schema.Table{Name: name}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(name)))
	if err != nil {
		return schema.Table{}, fmt.Errorf("table_info for %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var cid, notNull, pk int
		var colName, colType string
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return schema.Table{}, fmt.Errorf("scan table_info row for %s: %w", name, err)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:       colName,
			DataType:   colType,
			Nullable:   notNull == 0,
			Default:    dfltValue.String,
			PrimaryKey: pk > 0,
		})
		if pk > 0 {
			table.PrimaryKey = append(table.PrimaryKey, colName)
		}
	}
	if err := rows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("iterate table_info rows for %s: %w", name, err)
	}

	fkRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, quoteIdent(name)))
	if err != nil {
		return schema.Table{}, fmt.Errorf("foreign_key_list for %s: %w", name, err)
	}
	defer func() { _ = fkRows.Close() }()

	grouped := make(map[int]*schema.ForeignKey)
	var groupedOrder []int
	for fkRows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return schema.Table{}, fmt.Errorf("scan foreign_key_list row for %s: %w", name, err)
		}
		fk, ok := grouped[id]
		if !ok {
			fk = &schema.ForeignKey{RefTable: refTable}
			grouped[id] = fk
			groupedOrder = append(groupedOrder, id)
		}
		fk.Columns = append(fk.Columns, from)
		fk.RefColumns = append(fk.RefColumns, to)
	}
	if err := fkRows.Err(); err != nil {
		return schema.Table{}, fmt.Errorf("iterate foreign_key_list rows for %s: %w", name, err)
	}
	for _, id := range groupedOrder {
		table.ForeignKeys = append(table.ForeignKeys, *grouped[id])
	}

	return table, nil
}
