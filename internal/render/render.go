// Package render formats chat answers for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/schemapilot/schemapilot/internal/executor"
)

// Answer is everything the chat loop wants to show for one question.
type Answer struct {
	SQL        string
	Confidence float64
	Result     *executor.Result
	RowLimit   int
}

// Renderer turns answers into terminal output. When pretty is enabled the
// markdown is styled with glamour; otherwise the raw markdown is returned,
// which keeps piped output clean.
type Renderer struct {
	term *glamour.TermRenderer
}

func New(pretty bool, width int) *Renderer {
	if !pretty {
		return &Renderer{}
	}
	if width <= 0 {
		width = 100
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{term: term}
}

// Render produces the final output for one answer.
func (r *Renderer) Render(answer Answer) string {
	markdown := Markdown(answer)
	if r.term == nil {
		return markdown
	}
	styled, err := r.term.Render(markdown)
	if err != nil {
		return markdown
	}
	return styled
}

// Markdown assembles the answer as plain markdown: the generated SQL in a
// fenced block followed by the result table.
func Markdown(answer Answer) string {
	var b strings.Builder
	b.WriteString("```sql\n")
	b.WriteString(strings.TrimSpace(answer.SQL))
	b.WriteString("\n```\n")
	if answer.Confidence > 0 && answer.Confidence < 1 {
		fmt.Fprintf(&b, "\n_confidence: %.2f_\n", answer.Confidence)
	}
	if answer.Result != nil {
		b.WriteString("\n")
		b.WriteString(ResultTable(*answer.Result))
		if answer.Result.Truncated {
			fmt.Fprintf(&b, "\n_output truncated at %d rows_\n", answer.RowLimit)
		}
	}
	return b.String()
}

// ResultTable renders query results as a markdown table. Empty result sets
// become a short note instead of a headerless table.
func ResultTable(result executor.Result) string {
	if len(result.Rows) == 0 {
		return "_no rows_\n"
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(escapeCells(result.Columns), " | "))
	b.WriteString(" |\n|")
	for range result.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range result.Rows {
		b.WriteString("| ")
		b.WriteString(strings.Join(escapeCells(row), " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}

func escapeCells(cells []string) []string {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		cell = strings.ReplaceAll(cell, "|", "\\|")
		cell = strings.ReplaceAll(cell, "\n", " ")
		escaped[i] = cell
	}
	return escaped
}
