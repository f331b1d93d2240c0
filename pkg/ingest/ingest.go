package ingest

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ferraz/docqa/internal/models"
	"github.com/ferraz/docqa/internal/types"
	"github.com/ferraz/docqa/pkg/extract"
	"github.com/ferraz/docqa/pkg/logging"
	"github.com/google/uuid"
)

// Pipeline runs extract, chunk, embed and store as one unit. A failure
// at any stage leaves the store untouched; there is never a document
// row without its chunks or embedded chunks that were never persisted.
type Pipeline struct {
	extractor types.Extractor
	chunker   types.Chunker
	embedder  types.Embedder
	store     types.VectorStore
	fetcher   types.PageFetcher
	log       *logging.Logger
}

func New(
	extractor types.Extractor,
	chunker types.Chunker,
	embedder types.Embedder,
	store types.VectorStore,
	fetcher types.PageFetcher,
	log *logging.Logger,
) *Pipeline {
	if log == nil {
		log = logging.NewNop()
	}

	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		fetcher:   fetcher,
		log:       log,
	}
}

// Ingest extracts text from raw bytes in the given format and persists
// it as one document. The source descriptor becomes the document's
// provenance, e.g. "upload:report.pdf". Returns the new document id
// and the number of chunks stored.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, format, source string) (uuid.UUID, int, error) {
	extraction, err := p.extractor.Extract(ctx, raw, format)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("extraction failed for %s: %w", source, err)
	}

	metadata := map[string]interface{}{
		"format":     strings.ToLower(strings.TrimPrefix(format, ".")),
		"size_bytes": len(raw),
	}
	if len(extraction.Sections) > 0 {
		metadata["sections"] = len(extraction.Sections)
	}

	return p.ingestText(ctx, extraction.Text, source, titleFromSource(source), metadata)
}

// IngestFromURL fetches one page and ingests its text blob with source
// "scrape:"+url.
func (p *Pipeline) IngestFromURL(ctx context.Context, url string) (uuid.UUID, int, error) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	metadata := map[string]interface{}{
		"url":        page.URL,
		"size_bytes": len(page.Text),
	}

	return p.ingestText(ctx, page.Text, "scrape:"+url, page.Title, metadata)
}

func (p *Pipeline) ingestText(ctx context.Context, text, source, title string, metadata map[string]interface{}) (uuid.UUID, int, error) {
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return uuid.Nil, 0, fmt.Errorf("no chunks produced for %s: %w", source, extract.ErrEmptyContent)
	}

	p.log.Debug("embedding chunks", "source", source, "chunks", len(pieces))

	vectors, err := p.embedder.EmbedTexts(ctx, pieces)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("embedding failed for %s: %w", source, err)
	}

	doc := models.Document{
		ID:       uuid.New(),
		Source:   source,
		Title:    title,
		Metadata: metadata,
	}

	chunks := make([]models.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    piece,
			Embedding:  vectors[i],
		}
	}

	if err := p.store.InsertDocument(ctx, doc, chunks); err != nil {
		return uuid.Nil, 0, fmt.Errorf("failed to store %s: %w", source, err)
	}

	p.log.Info("document ingested", "source", source, "id", doc.ID, "chunks", len(chunks))

	return doc.ID, len(chunks), nil
}

// titleFromSource reduces a descriptor like "upload:dir/report.pdf" to
// "report.pdf".
func titleFromSource(source string) string {
	if _, rest, ok := strings.Cut(source, ":"); ok {
		source = rest
	}
	return path.Base(source)
}
