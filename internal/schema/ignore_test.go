package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func writeIgnoreFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".schemapilotignore")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}
	return path
}

func TestLoadIgnoreFileParsesPatternsAndComments(t *testing.T) {
	path := writeIgnoreFile(t, `
# full line comment
temp_*
*_backup   # trailing comment
audit_log
`)
	list, err := LoadIgnoreFile(path)
	if err != nil {
		t.Fatalf("LoadIgnoreFile() error = %v", err)
	}
	if got := len(list.Patterns()); got != 3 {
		t.Fatalf("patterns = %d, want 3", got)
	}

	cases := []struct {
		table string
		want  bool
	}{
		{"temp_users", true},
		{"TEMP_SESSIONS", true},
		{"users_backup", true},
		{"audit_log", true},
		{"Audit_Log", true},
		{"users", false},
		{"backup_users", false},
	}
	for _, tc := range cases {
		if got := list.Match(tc.table); got != tc.want {
			t.Fatalf("Match(%q) = %v, want %v", tc.table, got, tc.want)
		}
	}
}

func TestLoadIgnoreFileMissingIsEmpty(t *testing.T) {
	list, err := LoadIgnoreFile(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("LoadIgnoreFile() error = %v", err)
	}
	if list.Match("anything") {
		t.Fatal("empty list should match nothing")
	}
}

func TestWriteDefaultIgnoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".schemapilotignore")

	created, err := WriteDefaultIgnoreFile(path)
	if err != nil {
		t.Fatalf("WriteDefaultIgnoreFile() error = %v", err)
	}
	if !created {
		t.Fatal("expected file to be created")
	}

	created, err = WriteDefaultIgnoreFile(path)
	if err != nil {
		t.Fatalf("WriteDefaultIgnoreFile() second call error = %v", err)
	}
	if created {
		t.Fatal("existing file should not be recreated")
	}

	list, err := LoadIgnoreFile(path)
	if err != nil {
		t.Fatalf("LoadIgnoreFile() error = %v", err)
	}
	if len(list.Patterns()) != 0 {
		t.Fatalf("default template should contain only comments, got %v", list.Patterns())
	}
}
