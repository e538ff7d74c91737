package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const shortlistSystemPrompt = `You are a database expert. Analyze the provided tables and their relevance scores.
Return only the table names that are truly relevant, ordered by importance.
Format: table1,table2,table3
Note: Preserve the exact case of table names.`

const generateSystemPromptFormat = `You are a SQL expert. Using the following schema, generate a SQL query for the user's request.
The query should be efficient and use proper joins when necessary.

%s

Important notes:
1. Some table names are case-sensitive. Use the exact table names as shown above.
2. Generate ONLY the SQL query without any markdown formatting or explanation.
3. Do not include markdown code fences.
4. For PostgreSQL, use NOW() - INTERVAL '1 month' for date arithmetic.
5. Do not include trailing commas in column lists.
6. Use table aliases for better readability.
7. Ensure proper SQL syntax, especially in the SELECT clause.
8. Use LEFT JOINs when joining optional tables to preserve main records.`

const gradeSystemPrompt = `You are a SQL expert. Evaluate the confidence score
(0.0 to 1.0) of the generated SQL query based on:
1. Query completeness
2. Proper table usage and case sensitivity
3. Correct joins
4. Appropriate filtering
Return only the numeric score.`

// Completer is the chat surface the generator needs. *llm.Client
// satisfies it.
type Completer interface {
	ChatCompletion(ctx context.Context, model, system, user string) (string, error)
}

type OpenAIGenerator struct {
	completer     Completer
	model         string
	tablesPerCall int
	logger        *slog.Logger
}

func NewOpenAIGenerator(completer Completer, model string, tablesPerCall int, logger *slog.Logger) (*OpenAIGenerator, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if tablesPerCall <= 0 {
		tablesPerCall = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIGenerator{
		completer:     completer,
		model:         model,
		tablesPerCall: tablesPerCall,
		logger:        logger,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	if len(req.Tables) == 0 {
		return Result{}, fmt.Errorf("no schema context provided")
	}

	tables, err := g.shortlistTables(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if len(tables) <= g.tablesPerCall {
		sql, err := g.generateForChunk(ctx, tables, req.Question)
		if err != nil {
			return Result{}, err
		}
		return Result{SQL: sql, Model: g.model, Tables: tableNames(tables), Confidence: 1}, nil
	}

	// Too many candidate tables for one prompt. Generate per chunk and
	// keep the candidate the grader scores highest.
	var best Result
	for start := 0; start < len(tables); start += g.tablesPerCall {
		end := start + g.tablesPerCall
		if end > len(tables) {
			end = len(tables)
		}
		chunk := tables[start:end]

		sql, err := g.generateForChunk(ctx, chunk, req.Question)
		if err != nil {
			return Result{}, err
		}
		confidence := g.gradeQuery(ctx, sql, req.Question, chunk)
		g.logger.Debug("graded candidate query",
			slog.Float64("confidence", confidence),
			slog.Int("tables", len(chunk)))
		if confidence > best.Confidence {
			best = Result{SQL: sql, Model: g.model, Tables: tableNames(chunk), Confidence: confidence}
		}
	}
	if best.SQL == "" {
		return Result{}, fmt.Errorf("no candidate query graded above zero; try rephrasing the question")
	}
	return best, nil
}

// shortlistTables asks the model which retrieved tables actually matter
// for the question. The answer is filtered against the retrieved set; an
// empty intersection falls back to the full set.
func (g *OpenAIGenerator) shortlistTables(ctx context.Context, req Request) ([]TableContext, error) {
	if len(req.Tables) == 1 {
		return req.Tables, nil
	}

	var b strings.Builder
	b.WriteString("Question: " + req.Question + "\n\n")
	b.WriteString("Given the following tables and their relevance scores, analyze which ones are most appropriate for the query:\n\n")
	for _, table := range req.Tables {
		fmt.Fprintf(&b, "Table: %s\n", table.TableName)
		fmt.Fprintf(&b, "Relevance Score: %.4f\n", table.Score)
		fmt.Fprintf(&b, "Description: %s\n\n", table.Description)
	}

	answer, err := g.completer.ChatCompletion(ctx, g.model, shortlistSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("shortlist tables: %w", err)
	}

	wanted := make(map[string]struct{})
	for _, name := range strings.Split(answer, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			wanted[strings.ToLower(name)] = struct{}{}
		}
	}

	var selected []TableContext
	for _, table := range req.Tables {
		if _, ok := wanted[strings.ToLower(table.TableName)]; ok {
			selected = append(selected, table)
		}
	}
	if len(selected) == 0 {
		return req.Tables, nil
	}
	return selected, nil
}

func (g *OpenAIGenerator) generateForChunk(ctx context.Context, tables []TableContext, question string) (string, error) {
	var b strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&b, "\nTable: %s\n", quoteIdent(table.TableName))
		fmt.Fprintf(&b, "Description: %s\n", table.Description)
		b.WriteString(table.Schema)
		b.WriteString("\n")
	}

	system := fmt.Sprintf(generateSystemPromptFormat, b.String())
	raw, err := g.completer.ChatCompletion(ctx, g.model, system, question)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	sql := PostProcess(raw, tableNames(tables))
	if strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("model returned empty SQL")
	}
	return sql, nil
}

// gradeQuery returns the model's confidence for a candidate. Any failure
// scores zero; grading never aborts generation.
func (g *OpenAIGenerator) gradeQuery(ctx context.Context, sql, question string, tables []TableContext) float64 {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\nGenerated SQL: %s\n\nAvailable tables:\n", question, sql)
	for _, table := range tables {
		fmt.Fprintf(&b, "- %s\n", quoteIdent(table.TableName))
	}

	answer, err := g.completer.ChatCompletion(ctx, g.model, gradeSystemPrompt, b.String())
	if err != nil {
		g.logger.Warn("confidence grading failed", slog.Any("error", err))
		return 0
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(answer), 64)
	if err != nil {
		return 0
	}
	return score
}

func tableNames(tables []TableContext) []string {
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.TableName)
	}
	return names
}
