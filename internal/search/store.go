package search

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/easydom/hellosure/internal/log"
)

const (
	// searchTimeout caps vector search queries so a slow index cannot
	// block a chat run.
	searchTimeout = 10 * time.Second

	// Hybrid ranking weights: vector similarity dominates, lexical rank
	// breaks ties and rewards exact wording.
	weightVector = 0.7
	weightText   = 0.3
)

// Store provides hybrid (vector + full-text) search over the documents
// table. It is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder *Embedder
	logger   log.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, embedder *Embedder, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// Embed converts text into a query vector.
func (s *Store) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	return s.embedder.Embed(ctx, text)
}

// Search returns the topK documents for the query. The vector selects a
// candidate set (at least `candidates` rows by cosine distance); candidates
// are then re-ranked by a blend of vector similarity and Italian full-text
// rank before truncation to topK. Vector search generates candidates, it
// does not decide the final order alone.
func (s *Store) Search(ctx context.Context, query string, vector pgvector.Vector, publicOnly bool, candidates, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 3
	}
	if candidates < topK {
		candidates = 50
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`WITH candidates AS (
		     SELECT uri, title, content, search_text,
		            1 - (embedding <=> $1) AS vector_score
		     FROM documents
		     WHERE NOT $2::boolean OR public
		     ORDER BY embedding <=> $1
		     LIMIT $3
		 )
		 SELECT uri, title, content
		 FROM candidates
		 ORDER BY ($4 * vector_score
		         + $5 * LEAST(1.0, COALESCE(ts_rank_cd(search_text, plainto_tsquery('italian', $6), 1), 0))
		 ) DESC
		 LIMIT $7`,
		vector, publicOnly, candidates,
		weightVector, weightText, query,
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.URI, &d.Title, &d.Text); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	s.logger.Debug("documents retrieved",
		"count", len(docs),
		"candidates", candidates,
		"query_length", len(query))

	return docs, nil
}

// Add embeds a document and upserts it into the corpus. Used by the
// ingestion pipeline.
func (s *Store) Add(ctx context.Context, doc IndexedDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	vector, err := s.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, public, uri, title, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		     public = EXCLUDED.public,
		     uri = EXCLUDED.uri,
		     title = EXCLUDED.title,
		     content = EXCLUDED.content,
		     embedding = EXCLUDED.embedding`,
		doc.ID, doc.Public, doc.URI, doc.Title, doc.Text, vector,
	)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document indexed", "id", doc.ID, "content_length", len(doc.Text))
	return nil
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
