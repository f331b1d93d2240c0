package types

import (
	"context"

	"github.com/ferraz/docqa/internal/models"
	"github.com/google/uuid"
)

// Extractor turns raw bytes plus a format tag into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format string) (models.Extraction, error)
}

// Chunker splits extracted text into ordered overlapping segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder produces one fixed-dimension vector per input text,
// preserving input order. The same path serves chunks and queries.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorStore persists documents with their chunks and answers
// similarity queries.
type VectorStore interface {
	InsertDocument(ctx context.Context, doc models.Document, chunks []models.Chunk) error
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	ListDocuments(ctx context.Context) ([]models.DocumentInfo, error)
}

// SessionMemory appends and reads ordered conversation turns.
type SessionMemory interface {
	AppendTurn(ctx context.Context, sessionID, role, content string) (int, error)
	ReadHistory(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error)
	ListSessions(ctx context.Context) ([]models.SessionInfo, error)
}

// Generator is the external generation service boundary.
type Generator interface {
	Generate(ctx context.Context, contextText string, history []models.ChatTurn, question string) (string, error)
}

// OCRClient is the external OCR service boundary.
type OCRClient interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// PageFetcher is the external scraping collaborator boundary.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (models.Page, error)
}
