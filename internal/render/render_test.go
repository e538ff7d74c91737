package render

import (
	"strings"
	"testing"

	"github.com/schemapilot/schemapilot/internal/executor"
)

func TestMarkdownIncludesSQLAndTable(t *testing.T) {
	answer := Answer{
		SQL:        "SELECT name, total FROM orders",
		Confidence: 1,
		Result: &executor.Result{
			Columns: []string{"name", "total"},
			Rows:    [][]string{{"alice", "12.50"}, {"bob", "3.00"}},
		},
	}

	markdown := Markdown(answer)
	if !strings.Contains(markdown, "```sql\nSELECT name, total FROM orders\n```") {
		t.Fatalf("missing sql block:\n%s", markdown)
	}
	if !strings.Contains(markdown, "| name | total |") {
		t.Fatalf("missing header row:\n%s", markdown)
	}
	if !strings.Contains(markdown, "| alice | 12.50 |") {
		t.Fatalf("missing data row:\n%s", markdown)
	}
	if strings.Contains(markdown, "confidence") {
		t.Fatalf("full confidence should not be printed:\n%s", markdown)
	}
}

func TestMarkdownNotesPartialConfidenceAndTruncation(t *testing.T) {
	answer := Answer{
		SQL:        "SELECT 1",
		Confidence: 0.7,
		RowLimit:   200,
		Result: &executor.Result{
			Columns:   []string{"n"},
			Rows:      [][]string{{"1"}},
			Truncated: true,
		},
	}

	markdown := Markdown(answer)
	if !strings.Contains(markdown, "_confidence: 0.70_") {
		t.Fatalf("missing confidence note:\n%s", markdown)
	}
	if !strings.Contains(markdown, "_output truncated at 200 rows_") {
		t.Fatalf("missing truncation note:\n%s", markdown)
	}
}

func TestResultTableEmpty(t *testing.T) {
	got := ResultTable(executor.Result{Columns: []string{"n"}})
	if got != "_no rows_\n" {
		t.Fatalf("ResultTable() = %q", got)
	}
}

func TestResultTableEscapesPipes(t *testing.T) {
	got := ResultTable(executor.Result{
		Columns: []string{"note"},
		Rows:    [][]string{{"a|b\nc"}},
	})
	if !strings.Contains(got, `a\|b c`) {
		t.Fatalf("ResultTable() = %q", got)
	}
}

func TestRendererPlainPassthrough(t *testing.T) {
	renderer := New(false, 0)
	answer := Answer{SQL: "SELECT 1"}
	if got := renderer.Render(answer); got != Markdown(answer) {
		t.Fatalf("Render() = %q", got)
	}
}
