// Package nl2sql turns a natural-language question plus retrieved schema
// context into a single SQL query via chat completions.
package nl2sql

import "context"

// TableContext is one retrieved schema chunk offered to the generator.
type TableContext struct {
	TableName   string  `json:"table_name"`
	Description string  `json:"description"`
	Schema      string  `json:"schema"`
	Score       float32 `json:"score"`
}

type Request struct {
	Question string         `json:"question"`
	Tables   []TableContext `json:"tables"`
}

type Result struct {
	SQL        string   `json:"sql"`
	Model      string   `json:"model"`
	Tables     []string `json:"tables"`
	Confidence float64  `json:"confidence"`
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
