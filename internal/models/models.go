package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat roles stored in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document is the unit of ingestion. It is immutable once fully
// ingested; re-ingesting the same content creates a new Document.
type Document struct {
	ID        uuid.UUID
	Source    string // "upload:<filename>" or "scrape:<url>"
	Title     string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Chunk is a bounded text segment of a document. Index is zero-based
// and unique within the document; it defines reconstruction order.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Content    string
	Embedding  []float32
}

// ScoredChunk is a search result: a chunk annotated with its cosine
// similarity to the query and its parent document's attribution.
type ScoredChunk struct {
	Chunk
	Similarity float32
	Source     string
	Title      string
}

// RetrievedContext is the assembled, budget-bounded context handed to
// the generation service, with the chunks that contributed to it.
type RetrievedContext struct {
	Text   string
	Chunks []ScoredChunk
}

// Section describes one logical unit of an extracted document, such as
// a PDF page, a slide, or a spreadsheet sheet.
type Section struct {
	Kind  string // "page", "slide", "sheet", "row", "image"
	Index int    // zero-based within the document
	Label string // optional, e.g. sheet name
}

// Extraction is the output of the format extractor.
type Extraction struct {
	Text     string
	Sections []Section
}

// Page is a scraped web page reduced to a single text blob.
type Page struct {
	URL   string
	Title string
	Text  string
}

// ChatTurn is one role-tagged message in a session. Turn numbers start
// at 1 and are strictly increasing per session with no gaps.
type ChatTurn struct {
	SessionID string
	Turn      int
	Role      string
	Content   string
	CreatedAt time.Time
}

// SessionInfo summarizes one session for listings.
type SessionInfo struct {
	SessionID string
	TurnCount int
	LastTurn  time.Time
}

// DocumentInfo is a document listing entry with its chunk count.
type DocumentInfo struct {
	Document
	ChunkCount int
}
