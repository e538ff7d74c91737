// Package sqlguard runs best-effort checks on generated SQL before it is
// executed: read-only statements only, and table references limited to
// the digested snapshot.
package sqlguard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// An optional schema qualifier ("public.orders") is matched separately so
// validation runs against the table part.
var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|UPDATE|INTO|TABLE)\s+"?([a-zA-Z_][a-zA-Z0-9_]*)"?(?:\s*\.\s*"?([a-zA-Z_][a-zA-Z0-9_]*)"?)?`)

// ErrUnknownTables reports table references absent from the snapshot.
type ErrUnknownTables struct {
	Tables []string
}

func (e *ErrUnknownTables) Error() string {
	return fmt.Sprintf("query references unknown tables: %s", strings.Join(e.Tables, ", "))
}

// CheckReadOnly rejects anything that is not a SELECT or WITH statement.
func CheckReadOnly(sqlText string) error {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return fmt.Errorf("empty query")
	}
	if strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with") {
		return nil
	}
	return fmt.Errorf("only read-only SELECT/WITH queries are allowed")
}

// CheckKnownTables verifies every table reference resolves against the
// known identifier set (lowercased names from the snapshot). CTE names
// introduced by the query itself are allowed.
func CheckKnownTables(sqlText string, known map[string]struct{}) error {
	ctes := cteNames(sqlText)

	seen := make(map[string]struct{})
	var unknown []string
	for _, match := range tableRefPattern.FindAllStringSubmatch(sqlText, -1) {
		// Qualified references validate the table part only.
		raw := match[1]
		if match[2] != "" {
			raw = match[2]
		}
		name := strings.ToLower(raw)
		if _, ok := known[name]; ok {
			continue
		}
		if _, ok := ctes[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		unknown = append(unknown, raw)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ErrUnknownTables{Tables: unknown}
	}
	return nil
}

var ctePattern = regexp.MustCompile(`(?i)(?:\bWITH\b|,)\s*"?([a-zA-Z_][a-zA-Z0-9_]*)"?\s+AS\s*\(`)

func cteNames(sqlText string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, match := range ctePattern.FindAllStringSubmatch(sqlText, -1) {
		names[strings.ToLower(match[1])] = struct{}{}
	}
	return names
}
