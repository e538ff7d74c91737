package executor

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestDriverForURL(t *testing.T) {
	cases := []struct {
		name       string
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{name: "postgres", url: "postgres://u:p@localhost:5432/app", wantDriver: "pgx", wantDSN: "postgres://u:p@localhost:5432/app"},
		{name: "postgresql", url: "postgresql://localhost/app", wantDriver: "pgx", wantDSN: "postgresql://localhost/app"},
		{name: "duckdb scheme", url: "duckdb:///data/warehouse.duckdb", wantDriver: "duckdb", wantDSN: "/data/warehouse.duckdb"},
		{name: "duckdb path", url: "warehouse.duckdb", wantDriver: "duckdb", wantDSN: "warehouse.duckdb"},
		{name: "sqlite scheme", url: "sqlite:///data/app.db", wantDriver: "sqlite", wantDSN: "/data/app.db"},
		{name: "sqlite path", url: "app.sqlite", wantDriver: "sqlite", wantDSN: "app.sqlite"},
		{name: "unknown", url: "mysql://localhost/app", wantErr: true},
		{name: "empty", url: "  ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			driver, dsn, err := DriverForURL(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DriverForURL() error = %v", err)
			}
			if driver != tc.wantDriver || dsn != tc.wantDSN {
				t.Fatalf("DriverForURL() = (%q, %q), want (%q, %q)", driver, dsn, tc.wantDriver, tc.wantDSN)
			}
		})
	}
}

func TestRunStringifiesRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	placed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id, email, placed_at FROM orders")).WillReturnRows(
		sqlmock.NewRows([]string{"order_id", "email", "placed_at"}).
			AddRow(int64(1), []byte("a@example.com"), placed).
			AddRow(int64(2), nil, placed),
	)

	result, err := Run(context.Background(), db, "SELECT order_id, email, placed_at FROM orders", 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Columns) != 3 {
		t.Fatalf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][1] != "a@example.com" {
		t.Fatalf("email = %q", result.Rows[0][1])
	}
	if result.Rows[1][1] != "NULL" {
		t.Fatalf("null email = %q", result.Rows[1][1])
	}
	if result.Rows[0][2] != "2024-03-01T12:00:00Z" {
		t.Fatalf("timestamp = %q", result.Rows[0][2])
	}
	if result.Truncated {
		t.Fatal("result should not be truncated")
	}
}

func TestRunTruncatesAtRowLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT n FROM numbers")).WillReturnRows(rows)

	result, err := Run(context.Background(), db, "SELECT n FROM numbers", 3)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(result.Rows))
	}
	if !result.Truncated {
		t.Fatal("result should be truncated")
	}
}

func TestRunSurfacesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT broken")).WillReturnError(context.DeadlineExceeded)

	if _, err := Run(context.Background(), db, "SELECT broken", 0); err == nil {
		t.Fatal("expected error")
	}
}
