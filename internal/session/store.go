// Package session persists per-session conversation history in PostgreSQL.
//
// Each session owns an ordered stream of messages. Message content is stored
// as the JSON form of genkit message parts, so tool requests and responses
// survive a restart intact.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content []*ai.Part
}

// Session is conversation metadata without its messages.
type Session struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Store manages session persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// GetOrCreate ensures a session row exists for id and reports whether this
// call created it. A session created here with no messages yet is still
// considered new by callers that key the system prompt off it.
func (s *Store) GetOrCreate(ctx context.Context, id uuid.UUID) (created bool, err error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return false, fmt.Errorf("ensuring session %s: %w", id, err)
	}

	created = tag.RowsAffected() > 0
	if created {
		s.logger.Debug("created session", "session_id", id)
	}
	return created, nil
}

// Get retrieves session metadata. Returns pgx.ErrNoRows wrapped when the
// session does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	const query = `
		SELECT id, created_at, updated_at, message_count
		FROM sessions WHERE id = $1`

	var sess Session
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &sess, nil
}

// historyQuery loads the newest messages up to the cap while keeping the
// session's opening system message, so long conversations lose their middle
// rather than their latest turns.
const historyQuery = `
	(
		SELECT role, content, sequence_number
		FROM session_messages
		WHERE session_id = $1 AND role = 'system'
		ORDER BY sequence_number
		LIMIT 1
	)
	UNION
	(
		SELECT role, content, sequence_number
		FROM session_messages
		WHERE session_id = $1
		ORDER BY sequence_number DESC
		LIMIT $2
	)
	ORDER BY sequence_number`

// History returns up to limit of the most recent messages in sequence order,
// oldest first, with the opening system message pinned. Malformed rows are
// skipped with a warning rather than failing the whole load.
func (s *Store) History(ctx context.Context, id uuid.UUID, limit int32) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, historyQuery, id, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history for session %s: %w", id, err)
	}
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		var role string
		var contentJSON []byte
		var seq int32
		if err := rows.Scan(&role, &contentJSON, &seq); err != nil {
			return nil, fmt.Errorf("scanning session message: %w", err)
		}

		var content []*ai.Part
		if err := json.Unmarshal(contentJSON, &content); err != nil {
			s.logger.Warn("skipping malformed message content",
				"session_id", id, "error", err)
			continue
		}
		messages = append(messages, &Message{Role: role, Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session messages: %w", err)
	}

	s.logger.Debug("loaded history", "session_id", id, "messages", len(messages))
	return messages, nil
}

// AppendMessages appends messages to a session inside one transaction. The
// session row is locked for the duration so concurrent appends to the same
// session cannot collide on sequence numbers.
func (s *Store) AppendMessages(ctx context.Context, id uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	for i, msg := range messages {
		for j, part := range msg.Content {
			if part == nil {
				return fmt.Errorf("message %d has nil content at index %d", i, j)
			}
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("append rollback", "error", err)
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		return fmt.Errorf("locking session %s: %w", id, err)
	}

	var maxSeq int32
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM session_messages WHERE session_id = $1`, id).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, msg := range messages {
		contentJSON, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshaling message content at index %d: %w", i, err)
		}

		seq := maxSeq + int32(i) + 1 // #nosec G115 -- loop index bounded by slice length
		_, err = tx.Exec(ctx, `
			INSERT INTO session_messages (session_id, role, content, sequence_number)
			VALUES ($1, $2, $3, $4)`,
			id, msg.Role, contentJSON, seq)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	newCount := maxSeq + int32(len(messages)) // #nosec G115 -- len bounded in practice
	_, err = tx.Exec(ctx, `
		UPDATE sessions SET message_count = $1, updated_at = NOW()
		WHERE id = $2`, newCount, id)
	if err != nil {
		return fmt.Errorf("updating session metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}

	s.logger.Debug("appended messages", "session_id", id, "count", len(messages))
	return nil
}
