package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmolNarang/orderassistant/internal/analytics"
	"github.com/AmolNarang/orderassistant/internal/log"
)

// mockAnswerer returns a canned analytical answer.
type mockAnswerer struct {
	answer *analytics.Answer
	err    error

	lastQuestion string
}

func (m *mockAnswerer) Answer(_ context.Context, question string) (*analytics.Answer, error) {
	m.lastQuestion = question
	return m.answer, m.err
}

// TestQueryDatabase tests envelope passthrough for the analytical tool.
func TestQueryDatabase(t *testing.T) {
	t.Parallel()

	t.Run("relays the answer", func(t *testing.T) {
		t.Parallel()

		m := &mockAnswerer{answer: &analytics.Answer{
			Success:     true,
			Question:    "How many orders?",
			SQL:         "SELECT COUNT(*) FROM orders",
			RowCount:    1,
			Explanation: "Found 3 records matching your criteria.",
		}}
		a, err := NewAnalytics(m, log.NewNop())
		require.NoError(t, err)

		out, err := a.QueryDatabase(toolCtx(), QueryDatabaseInput{Question: "How many orders?"})
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, "SELECT COUNT(*) FROM orders", out.SQL)
		assert.Equal(t, "How many orders?", m.lastQuestion)
	})

	t.Run("failed synthesis stays in the envelope", func(t *testing.T) {
		t.Parallel()

		m := &mockAnswerer{answer: &analytics.Answer{
			Success: false,
			Message: analytics.FailureMessage,
		}}
		a, err := NewAnalytics(m, log.NewNop())
		require.NoError(t, err)

		out, err := a.QueryDatabase(toolCtx(), QueryDatabaseInput{Question: "gibberish"})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, analytics.FailureMessage, out.Message)
	})

	t.Run("infrastructure error propagates", func(t *testing.T) {
		t.Parallel()

		a, err := NewAnalytics(&mockAnswerer{err: errors.New("pool closed")}, log.NewNop())
		require.NoError(t, err)

		_, err = a.QueryDatabase(toolCtx(), QueryDatabaseInput{Question: "anything"})
		require.Error(t, err)
	})
}

// TestNewAnalytics tests constructor validation.
func TestNewAnalytics(t *testing.T) {
	t.Parallel()

	_, err := NewAnalytics(nil, log.NewNop())
	assert.Error(t, err)
}
