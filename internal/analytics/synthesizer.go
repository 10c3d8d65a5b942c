// Package analytics turns natural-language analytical questions into
// read-only SQL, executes them against the domain store, and attaches a
// short plain-language gloss to the result set.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AmolNarang/orderassistant/internal/store"
)

// FailureMessage is the user-facing text returned whenever synthesis,
// validation, or execution fails. The underlying cause is logged, never
// surfaced to the customer.
const FailureMessage = "I couldn't execute that query. Please rephrase your question."

// TextGenerator produces a completion for a single prompt. Satisfied in
// production by a genkit-backed generator; tests supply a scripted one.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Runner executes a SQL statement with read-only guarantees.
type Runner interface {
	ReadOnlyQuery(ctx context.Context, query string) (*store.Result, error)
}

// Answer is the outcome of one analytical question. On failure only Success
// and Message are meaningful.
type Answer struct {
	Success     bool             `json:"success"`
	Question    string           `json:"question,omitempty"`
	SQL         string           `json:"sqlQuery,omitempty"`
	Columns     []string         `json:"columns,omitempty"`
	Rows        []map[string]any `json:"results,omitempty"`
	RowCount    int              `json:"rowCount"`
	Explanation string           `json:"explanation,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// Synthesizer answers analytical questions over the order database.
//
// Synthesizer is safe for concurrent use by multiple goroutines.
type Synthesizer struct {
	generator TextGenerator
	runner    Runner
	logger    *slog.Logger
}

// New creates a Synthesizer. logger may be nil (defaults to slog.Default()).
func New(generator TextGenerator, runner Runner, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{generator: generator, runner: runner, logger: logger}
}

// Answer runs the full question-to-result pipeline. Expected failures
// (ungeneratable SQL, blocked statements, execution errors) come back as a
// failed Answer with a nil error so the caller can relay the message.
func (s *Synthesizer) Answer(ctx context.Context, question string) (*Answer, error) {
	raw, err := s.generator.GenerateText(ctx, buildPrompt(question))
	if err != nil {
		s.logger.Warn("sql generation failed", "question", question, "error", err)
		return &Answer{Success: false, Message: FailureMessage}, nil
	}

	sql := StripFences(raw)
	if sql == "" {
		s.logger.Warn("sql generation returned empty statement", "question", question)
		return &Answer{Success: false, Message: FailureMessage}, nil
	}

	if keyword, blocked := BlockedKeyword(sql); blocked {
		s.logger.Warn("blocked sql statement", "keyword", keyword, "sql", sql)
		return &Answer{Success: false, Message: FailureMessage}, nil
	}

	result, err := s.runner.ReadOnlyQuery(ctx, sql)
	if err != nil {
		s.logger.Warn("analytical query failed", "sql", sql, "error", err)
		return &Answer{Success: false, Message: FailureMessage}, nil
	}

	s.logger.Debug("analytical query executed", "sql", sql, "rows", len(result.Rows))

	return &Answer{
		Success:     true,
		Question:    question,
		SQL:         sql,
		Columns:     result.Columns,
		Rows:        result.Rows,
		RowCount:    len(result.Rows),
		Explanation: Explain(sql, result.Columns, result.Rows),
	}, nil
}

var fencePattern = regexp.MustCompile("(?i)```(?:sql)?")

// StripFences removes markdown code fences the model may wrap the statement
// in and trims surrounding whitespace.
func StripFences(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// blockedPattern matches write and DDL keywords as whole tokens only, so
// column names like created_at never trip the filter.
var blockedPattern = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|REPLACE|GRANT|REVOKE)\b`)

// BlockedKeyword reports whether sql contains a forbidden statement keyword
// and returns the first match in upper case.
func BlockedKeyword(sql string) (string, bool) {
	match := blockedPattern.FindString(sql)
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

// Explain produces a one-line gloss keyed off the dominant aggregate in the
// statement. It is advisory text for the model, not a substitute for the
// rows themselves. The aggregate glosses read the first column of the first
// row, in the statement's own column order.
func Explain(sql string, columns []string, rows []map[string]any) string {
	if len(rows) == 0 {
		return "No results found."
	}

	upper := strings.ToUpper(sql)
	var first any
	if len(columns) > 0 {
		first = rows[0][columns[0]]
	}

	switch {
	case strings.Contains(upper, "COUNT"):
		return fmt.Sprintf("Found %s records matching your criteria.", formatValue(first))
	case strings.Contains(upper, "SUM"):
		if f, ok := asFloat(first); ok {
			return fmt.Sprintf("Total sum: $%.2f", f)
		}
		return fmt.Sprintf("Total: %v", first)
	case strings.Contains(upper, "AVG"):
		if f, ok := asFloat(first); ok {
			return fmt.Sprintf("Average value: %.2f", f)
		}
		return fmt.Sprintf("Average: %v", first)
	default:
		return fmt.Sprintf("Retrieved %d record(s).", len(rows))
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func formatValue(v any) string {
	if f, ok := asFloat(v); ok {
		if f == float64(int64(f)) {
			return fmt.Sprintf("%d", int64(f))
		}
		return fmt.Sprintf("%v", f)
	}
	return fmt.Sprintf("%v", v)
}
