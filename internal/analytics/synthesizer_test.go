package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmolNarang/orderassistant/internal/log"
	"github.com/AmolNarang/orderassistant/internal/store"
)

// scriptedGenerator returns a fixed completion or error.
type scriptedGenerator struct {
	response string
	err      error

	lastPrompt string
}

func (g *scriptedGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.lastPrompt = prompt
	return g.response, g.err
}

// fakeRunner records the executed SQL and returns a canned result.
type fakeRunner struct {
	result *store.Result
	err    error

	executed []string
}

func (r *fakeRunner) ReadOnlyQuery(_ context.Context, query string) (*store.Result, error) {
	r.executed = append(r.executed, query)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// TestStripFences tests markdown fence removal.
func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain statement", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"upper case fence tag", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"surrounding whitespace", "  SELECT 1  \n", "SELECT 1"},
		{"empty", "", ""},
		{"fences only", "```sql\n```", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, StripFences(tc.input))
		})
	}
}

// TestBlockedKeyword tests that write and DDL statements are rejected while
// identifiers containing keyword substrings pass.
func TestBlockedKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sql     string
		blocked bool
		keyword string
	}{
		{"select", "SELECT * FROM orders", false, ""},
		{"insert", "INSERT INTO orders VALUES (1)", true, "INSERT"},
		{"lower case delete", "delete from orders", true, "DELETE"},
		{"mixed case drop", "DrOp TABLE orders", true, "DROP"},
		{"update", "UPDATE orders SET status = 'x'", true, "UPDATE"},
		{"truncate", "TRUNCATE orders", true, "TRUNCATE"},
		{"grant", "GRANT ALL ON orders TO bob", true, "GRANT"},
		// Column names that merely contain a keyword must not trip the filter.
		{"created_at column", "SELECT created_at FROM orders", false, ""},
		{"updated_at column", "SELECT updated_at FROM orders", false, ""},
		{"replacement_cost column", "SELECT replacement_cost FROM products", false, ""},
		{"keyword inside string still flagged", "SELECT * FROM orders WHERE note = 'DELETE'", true, "DELETE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			keyword, blocked := BlockedKeyword(tc.sql)
			assert.Equal(t, tc.blocked, blocked)
			assert.Equal(t, tc.keyword, keyword)
		})
	}
}

// TestExplain tests the gloss shapes for each aggregate family.
func TestExplain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sql      string
		columns  []string
		rows     []map[string]any
		expected string
	}{
		{
			name:     "no rows",
			sql:      "SELECT * FROM orders",
			columns:  []string{"id"},
			rows:     nil,
			expected: "No results found.",
		},
		{
			name:     "count",
			sql:      "SELECT COUNT(*) FROM orders",
			columns:  []string{"count"},
			rows:     []map[string]any{{"count": int64(7)}},
			expected: "Found 7 records matching your criteria.",
		},
		{
			name:     "sum",
			sql:      "SELECT SUM(total_amount) FROM orders",
			columns:  []string{"sum"},
			rows:     []map[string]any{{"sum": 183.96}},
			expected: "Total sum: $183.96",
		},
		{
			name:     "avg",
			sql:      "SELECT AVG(total_amount) FROM orders",
			columns:  []string{"avg"},
			rows:     []map[string]any{{"avg": 61.32}},
			expected: "Average value: 61.32",
		},
		{
			name:     "plain select",
			sql:      "SELECT name FROM customers",
			columns:  []string{"name"},
			rows:     []map[string]any{{"name": "a"}, {"name": "b"}, {"name": "c"}},
			expected: "Retrieved 3 record(s).",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, Explain(tc.sql, tc.columns, tc.rows))
		})
	}
}

// TestExplain_FirstColumn tests that aggregate glosses read the first column
// of the statement, not an arbitrary map key.
func TestExplain_FirstColumn(t *testing.T) {
	t.Parallel()

	sql := "SELECT COUNT(*) AS count, status FROM orders GROUP BY status"
	columns := []string{"count", "status"}
	rows := []map[string]any{{"status": "pending", "count": int64(5)}}

	for range 200 {
		assert.Equal(t, "Found 5 records matching your criteria.", Explain(sql, columns, rows))
	}
}

// TestSynthesizer_Answer tests the full question-to-result pipeline.
func TestSynthesizer_Answer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := log.NewNop()

	t.Run("successful query", func(t *testing.T) {
		t.Parallel()

		gen := &scriptedGenerator{response: "```sql\nSELECT COUNT(*) FROM orders\n```"}
		runner := &fakeRunner{result: &store.Result{
			Columns: []string{"count"},
			Rows:    []map[string]any{{"count": int64(3)}},
		}}
		s := New(gen, runner, logger)

		answer, err := s.Answer(ctx, "How many orders are there?")
		require.NoError(t, err)
		assert.True(t, answer.Success)
		assert.Equal(t, "How many orders are there?", answer.Question)
		assert.Equal(t, "SELECT COUNT(*) FROM orders", answer.SQL)
		assert.Equal(t, []string{"count"}, answer.Columns)
		assert.Equal(t, 1, answer.RowCount)
		assert.Equal(t, "Found 3 records matching your criteria.", answer.Explanation)

		require.Len(t, runner.executed, 1)
		assert.Equal(t, "SELECT COUNT(*) FROM orders", runner.executed[0])
	})

	t.Run("prompt includes question", func(t *testing.T) {
		t.Parallel()

		gen := &scriptedGenerator{response: "SELECT 1"}
		runner := &fakeRunner{result: &store.Result{}}
		s := New(gen, runner, logger)

		_, err := s.Answer(ctx, "Which customer spent the most?")
		require.NoError(t, err)
		assert.Contains(t, gen.lastPrompt, "Which customer spent the most?")
		assert.Contains(t, gen.lastPrompt, "orders")
	})

	t.Run("generation error returns failure message", func(t *testing.T) {
		t.Parallel()

		gen := &scriptedGenerator{err: errors.New("provider down")}
		runner := &fakeRunner{}
		s := New(gen, runner, logger)

		answer, err := s.Answer(ctx, "anything")
		require.NoError(t, err)
		assert.False(t, answer.Success)
		assert.Equal(t, FailureMessage, answer.Message)
		assert.Empty(t, runner.executed)
	})

	t.Run("empty statement returns failure message", func(t *testing.T) {
		t.Parallel()

		gen := &scriptedGenerator{response: "```sql\n```"}
		runner := &fakeRunner{}
		s := New(gen, runner, logger)

		answer, err := s.Answer(ctx, "anything")
		require.NoError(t, err)
		assert.False(t, answer.Success)
		assert.Equal(t, FailureMessage, answer.Message)
		assert.Empty(t, runner.executed)
	})

	t.Run("blocked statement never reaches the runner", func(t *testing.T) {
		t.Parallel()

		gen := &scriptedGenerator{response: "DROP TABLE orders"}
		runner := &fakeRunner{}
		s := New(gen, runner, logger)

		answer, err := s.Answer(ctx, "anything")
		require.NoError(t, err)
		assert.False(t, answer.Success)
		assert.Equal(t, FailureMessage, answer.Message)
		assert.Empty(t, runner.executed)
	})

	t.Run("execution error returns failure message", func(t *testing.T) {
		t.Parallel()

		gen := &scriptedGenerator{response: "SELECT nope FROM orders"}
		runner := &fakeRunner{err: errors.New(`column "nope" does not exist`)}
		s := New(gen, runner, logger)

		answer, err := s.Answer(ctx, "anything")
		require.NoError(t, err)
		assert.False(t, answer.Success)
		assert.Equal(t, FailureMessage, answer.Message)
	})
}
