package nl2sql

import (
	"regexp"
	"strings"
)

// Reserved words that force identifier quoting on PostgreSQL.
var pgReservedWords = map[string]struct{}{}

func init() {
	for _, word := range strings.Fields(`all analyse analyze and any array as asc
asymmetric authorization binary both case cast check collate column constraint
create cross current_date current_role current_time current_timestamp
current_user default deferrable desc distinct do else end except false for
foreign freeze from full grant group having ilike in initially inner intersect
into is isnull join leading left like limit localtime localtimestamp natural
not notnull null offset on only or order outer overlaps placing primary
references right select session_user similar some symmetric table then to
trailing true union unique user using verbose when where`) {
		pgReservedWords[word] = struct{}{}
	}
}

var (
	tableRefPattern      = regexp.MustCompile(`(?i)\b(FROM|JOIN|UPDATE|INTO|TABLE)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	trailingCommaPattern = regexp.MustCompile(`(?i),(\s*(?:FROM|WHERE|GROUP\s+BY|ORDER\s+BY)\b)`)
)

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}

// cleanTrailingCommas drops a comma the model left dangling before a
// clause keyword.
func cleanTrailingCommas(sql string) string {
	return trailingCommaPattern.ReplaceAllString(sql, "$1")
}

func needsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}
	if identifier != strings.ToLower(identifier) {
		return true
	}
	if strings.ContainsAny(identifier, " .-") {
		return true
	}
	_, reserved := pgReservedWords[strings.ToLower(identifier)]
	return reserved
}

func quoteIdent(identifier string) string {
	if needsQuoting(identifier) {
		return `"` + identifier + `"`
	}
	return identifier
}

// normalizeTableRefs restores the catalog casing of table names the model
// lowercased and quotes the ones that need it.
func normalizeTableRefs(sql string, tableNames []string) string {
	caseMap := make(map[string]string, len(tableNames))
	for _, name := range tableNames {
		caseMap[strings.ToLower(name)] = name
	}
	return tableRefPattern.ReplaceAllStringFunc(sql, func(match string) string {
		parts := tableRefPattern.FindStringSubmatch(match)
		keyword, table := parts[1], parts[2]
		if original, ok := caseMap[strings.ToLower(table)]; ok {
			table = original
		}
		return keyword + " " + quoteIdent(table)
	})
}

// PostProcess applies every cleanup step to raw model output.
func PostProcess(raw string, tableNames []string) string {
	sql := stripMarkdownSQL(raw)
	sql = cleanTrailingCommas(sql)
	return normalizeTableRefs(sql, tableNames)
}
