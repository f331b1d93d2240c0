package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ferraz/docqa/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrDimensionMismatch means a vector does not match the dimension
	// the store was initialized with. The write is rejected whole.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

type StoreConfig struct {
	ConnString string
	VectorDim  int
	IvfLists   int // ivfflat list count for the ANN index
}

// Store persists documents, chunks and embeddings in Postgres with
// pgvector, and answers approximate nearest-neighbor queries.
type Store struct {
	config StoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config StoreConfig) (*Store, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 384
	}
	if config.IvfLists == 0 {
		config.IvfLists = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			seq BIGINT GENERATED ALWAYS AS IDENTITY,
			UNIQUE (document_id, chunk_index)
		)`, s.config.VectorDim),
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_embedding_idx
			ON chunks
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = %d)`, s.config.IvfLists),
		`CREATE TABLE IF NOT EXISTS chat_history (
			session_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, turn)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return s.checkDimension(ctx)
}

// checkDimension fails fast when the existing chunks table was created
// with a different vector dimension. Changing the embedding model
// requires re-ingestion into a fresh schema, not a migration.
func (s *Store) checkDimension(ctx context.Context) error {
	var typmod int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`,
	).Scan(&typmod)
	if err != nil {
		return fmt.Errorf("failed to read embedding column dimension: %w", err)
	}

	if typmod != s.config.VectorDim {
		return fmt.Errorf("%w: store has dimension %d, configured %d; re-ingest into a fresh schema",
			ErrDimensionMismatch, typmod, s.config.VectorDim)
	}
	return nil
}

// InsertDocument commits the document row and all chunk rows in one
// transaction. On any failure nothing becomes visible.
func (s *Store) InsertDocument(ctx context.Context, doc models.Document, chunks []models.Chunk) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.config.VectorDim {
			return fmt.Errorf("%w: chunk %d has dimension %d, want %d",
				ErrDimensionMismatch, chunk.Index, len(chunk.Embedding), s.config.VectorDim)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, source, title, metadata) VALUES ($1, $2, $3, $4)`,
		doc.ID, doc.Source, doc.Title, doc.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	for _, chunk := range chunks {
		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			chunk.ID, doc.ID, chunk.Index, chunk.Content, pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SimilaritySearch returns up to k chunks ranked by descending cosine
// similarity. Ties break on insertion order, earlier first, so results
// are deterministic for identical inputs.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if len(query) != s.config.VectorDim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			ErrDimensionMismatch, len(query), s.config.VectorDim)
	}
	if k <= 0 {
		k = 5
	}

	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, c.chunk_index, c.content,
		        1 - (c.embedding <=> $1) AS similarity,
		        d.source, d.title
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 ORDER BY c.embedding <=> $1, c.seq
		 LIMIT $2`,
		pgvector.NewVector(query), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		err := rows.Scan(
			&sc.Chunk.ID,
			&sc.DocumentID,
			&sc.Chunk.Index,
			&sc.Content,
			&sc.Similarity,
			&sc.Source,
			&sc.Title,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, sc)
	}

	return results, rows.Err()
}

// DeleteDocument removes the document; its chunks go with it via the
// foreign key cascade.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ListDocuments returns all documents with their chunk counts, newest
// first.
func (s *Store) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.id, d.source, d.title, d.metadata, d.created_at, COUNT(c.id)
		 FROM documents d
		 LEFT JOIN chunks c ON c.document_id = d.id
		 GROUP BY d.id, d.source, d.title, d.metadata, d.created_at
		 ORDER BY d.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentInfo
	for rows.Next() {
		var info models.DocumentInfo
		var title *string
		err := rows.Scan(&info.ID, &info.Source, &title, &info.Metadata, &info.CreatedAt, &info.ChunkCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if title != nil {
			info.Title = *title
		}
		docs = append(docs, info)
	}

	return docs, rows.Err()
}

// Reindex rebuilds the approximate nearest-neighbor index. This is an
// administrative maintenance action, not part of the query path.
func (s *Store) Reindex(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `REINDEX INDEX chunks_embedding_idx`)
	if err != nil {
		return fmt.Errorf("failed to rebuild embedding index: %w", err)
	}
	return nil
}

// Memory returns the session memory backed by the same pool.
func (s *Store) Memory() *ChatMemory {
	return &ChatMemory{pool: s.pool}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
