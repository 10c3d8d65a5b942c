// Package knowledge provides semantic retrieval over the built-in company
// knowledge documents (policies, FAQs, product information).
//
// Documents are chunked, embedded, and stored in PostgreSQL with pgvector.
// Retrieval is cosine-similarity top-k over the chunk embeddings.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultTopK is how many chunks a search returns when the caller does not
// say otherwise.
const DefaultTopK = 3

const searchTimeout = 10 * time.Second

// Result is one retrieved chunk with its cosine similarity to the query.
type Result struct {
	Content    string  `json:"content"`
	SourceType string  `json:"sourceType"`
	Similarity float64 `json:"similarity"`
}

// Store manages knowledge chunks with vector search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	splitter *Splitter
	logger   *slog.Logger

	mu sync.Mutex // serializes Ensure's first build
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:     pool,
		embedder: embedder,
		splitter: NewSplitter(DefaultChunkSize, DefaultOverlap),
		logger:   logger,
	}
}

// Ensure builds the knowledge index if the chunk table is empty. The index
// survives restarts; an already-populated table is loaded as-is with no
// re-embedding. Concurrent callers are serialized so the corpus is embedded
// at most once.
func (s *Store) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&count); err != nil {
		return fmt.Errorf("counting knowledge chunks: %w", err)
	}
	if count > 0 {
		s.logger.Debug("knowledge index already built", "chunks", count)
		return nil
	}

	return s.build(ctx)
}

// insertChunkSQL must name every column the schema requires a value for.
const insertChunkSQL = `
	INSERT INTO knowledge_chunks (id, content, source_type, embedding)
	VALUES ($1, $2, $3, $4)`

func (s *Store) build(ctx context.Context) error {
	type pending struct {
		sourceType string
		content    string
	}

	var chunks []pending
	docs := make([]*ai.Document, 0)
	for _, doc := range Corpus() {
		for _, content := range s.splitter.Split(doc.Content) {
			chunks = append(chunks, pending{sourceType: doc.SourceType, content: content})
			docs = append(docs, ai.DocumentFromText(content, nil))
		}
	}
	if len(chunks) == 0 {
		return errors.New("knowledge corpus produced no chunks")
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return fmt.Errorf("embedding knowledge chunks: %w", err)
	}
	if len(resp.Embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d embeddings for %d chunks",
			len(resp.Embeddings), len(chunks))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("index rollback", "error", err)
		}
	}()

	for i, chunk := range chunks {
		embedding := pgvector.NewVector(resp.Embeddings[i].Embedding)
		_, err := tx.Exec(ctx, insertChunkSQL,
			uuid.NewString(), chunk.content, chunk.sourceType, embedding)
		if err != nil {
			return fmt.Errorf("inserting knowledge chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing knowledge index: %w", err)
	}

	s.logger.Info("built knowledge index", "chunks", len(chunks))
	return nil
}

// Search returns the k chunks most similar to query, best first.
// k values outside [1, 100] fall back to DefaultTopK.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || k > 100 {
		k = DefaultTopK
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	queryEmbedding := pgvector.NewVector(resp.Embeddings[0].Embedding)

	rows, err := s.pool.Query(queryCtx, `
		SELECT content, source_type, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Content, &r.SourceType, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	return results, nil
}
