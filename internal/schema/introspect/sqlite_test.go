package introspect

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSQLiteListTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(sqliteTablesQuery)).WillReturnRows(
		sqlmock.NewRows([]string{"name"}).
			AddRow("customers").
			AddRow("order_items"),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("customers")`)).WillReturnRows(
		sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "customer_id", "INTEGER", 1, nil, 1).
			AddRow(1, "email", "TEXT", 0, "''", 0),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA foreign_key_list("customers")`)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("order_items")`)).WillReturnRows(
		sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "order_id", "INTEGER", 1, nil, 1).
			AddRow(1, "line_no", "INTEGER", 1, nil, 2).
			AddRow(2, "customer_id", "INTEGER", 1, nil, 0).
			AddRow(3, "sku", "TEXT", 1, nil, 0),
	)
	// Composite reference shares one id; the second constraint has its own.
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA foreign_key_list("order_items")`)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}).
			AddRow(0, 0, "orders", "order_id", "order_id", "NO ACTION", "CASCADE", "NONE").
			AddRow(0, 1, "orders", "line_no", "line_no", "NO ACTION", "CASCADE", "NONE").
			AddRow(1, 0, "customers", "customer_id", "customer_id", "NO ACTION", "NO ACTION", "NONE"),
	)

	intro, err := New(db, "sqlite", 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tables, err := intro.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}

	if len(tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(tables))
	}

	customers := tables[0]
	if customers.Name != "customers" {
		t.Fatalf("first table = %q", customers.Name)
	}
	if !customers.Columns[0].PrimaryKey || customers.Columns[0].Nullable {
		t.Fatalf("customer_id column = %+v", customers.Columns[0])
	}
	if customers.Columns[1].Default != "''" {
		t.Fatalf("email default = %q", customers.Columns[1].Default)
	}
	if len(customers.ForeignKeys) != 0 {
		t.Fatalf("customers foreign keys = %d", len(customers.ForeignKeys))
	}

	items := tables[1]
	if got := items.PrimaryKey; len(got) != 2 || got[0] != "order_id" || got[1] != "line_no" {
		t.Fatalf("order_items primary key = %v", got)
	}
	if len(items.ForeignKeys) != 2 {
		t.Fatalf("order_items foreign keys = %d", len(items.ForeignKeys))
	}
	composite := items.ForeignKeys[0]
	if composite.RefTable != "orders" {
		t.Fatalf("composite ref table = %q", composite.RefTable)
	}
	if len(composite.Columns) != 2 || composite.Columns[1] != "line_no" || composite.RefColumns[1] != "line_no" {
		t.Fatalf("composite foreign key = %+v", composite)
	}
	single := items.ForeignKeys[1]
	if single.RefTable != "customers" || len(single.Columns) != 1 || single.Columns[0] != "customer_id" {
		t.Fatalf("single foreign key = %+v", single)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLiteListTablesWithSamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(sqliteTablesQuery)).WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow("customers"),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("customers")`)).WillReturnRows(
		sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "customer_id", "INTEGER", 1, nil, 1),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA foreign_key_list("customers")`)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "customers" LIMIT 1`)).WillReturnRows(
		sqlmock.NewRows([]string{"customer_id"}).AddRow(int64(42)),
	)

	intro, err := New(db, "sqlite", 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tables, err := intro.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || len(tables[0].SampleRows) != 1 {
		t.Fatalf("tables = %+v", tables)
	}
	if tables[0].SampleRows[0][0] != "42" {
		t.Fatalf("sample value = %q", tables[0].SampleRows[0][0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
