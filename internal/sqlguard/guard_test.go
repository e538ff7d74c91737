package sqlguard

import (
	"errors"
	"testing"
)

func TestCheckReadOnly(t *testing.T) {
	cases := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{name: "select", sql: "SELECT 1", wantErr: false},
		{name: "lowercase select", sql: "  select * from t", wantErr: false},
		{name: "cte", sql: "WITH x AS (SELECT 1) SELECT * FROM x", wantErr: false},
		{name: "insert", sql: "INSERT INTO t VALUES (1)", wantErr: true},
		{name: "update", sql: "UPDATE t SET a = 1", wantErr: true},
		{name: "delete", sql: "DELETE FROM t", wantErr: true},
		{name: "drop", sql: "DROP TABLE t", wantErr: true},
		{name: "empty", sql: "   ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckReadOnly(tc.sql)
			if (err != nil) != tc.wantErr {
				t.Fatalf("CheckReadOnly(%q) error = %v, wantErr %v", tc.sql, err, tc.wantErr)
			}
		})
	}
}

func knownSet(names ...string) map[string]struct{} {
	known := make(map[string]struct{})
	for _, name := range names {
		known[name] = struct{}{}
	}
	return known
}

func TestCheckKnownTablesAccepts(t *testing.T) {
	known := knownSet("orders", "customers", "order_id")
	cases := []string{
		"SELECT * FROM orders",
		`SELECT * FROM "Orders" o JOIN customers c ON c.id = o.cid`,
		"WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
		"SELECT order_id FROM public.orders",
		`SELECT * FROM public."Orders" o JOIN main.customers c ON c.id = o.cid`,
	}
	for _, sql := range cases {
		if err := CheckKnownTables(sql, known); err != nil {
			t.Fatalf("CheckKnownTables(%q) error = %v", sql, err)
		}
	}
}

func TestCheckKnownTablesRejectsUnknown(t *testing.T) {
	known := knownSet("orders")

	err := CheckKnownTables("SELECT * FROM orders o JOIN invoices i ON i.oid = o.id", known)
	if err == nil {
		t.Fatal("expected error")
	}
	var unknownErr *ErrUnknownTables
	if !errors.As(err, &unknownErr) {
		t.Fatalf("error type = %T", err)
	}
	if len(unknownErr.Tables) != 1 || unknownErr.Tables[0] != "invoices" {
		t.Fatalf("unknown tables = %v", unknownErr.Tables)
	}
}

func TestCheckKnownTablesQualifiedUnknownNamesTable(t *testing.T) {
	err := CheckKnownTables("SELECT * FROM public.invoices", knownSet("orders"))
	var unknownErr *ErrUnknownTables
	if !errors.As(err, &unknownErr) {
		t.Fatalf("error = %v", err)
	}
	if len(unknownErr.Tables) != 1 || unknownErr.Tables[0] != "invoices" {
		t.Fatalf("unknown tables = %v", unknownErr.Tables)
	}
}

func TestCheckKnownTablesDeduplicates(t *testing.T) {
	err := CheckKnownTables("SELECT * FROM ghost g JOIN ghost g2 ON g.id = g2.id", knownSet("orders"))
	var unknownErr *ErrUnknownTables
	if !errors.As(err, &unknownErr) {
		t.Fatalf("error = %v", err)
	}
	if len(unknownErr.Tables) != 1 {
		t.Fatalf("unknown tables = %v", unknownErr.Tables)
	}
}
