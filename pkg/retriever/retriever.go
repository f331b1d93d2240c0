package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferraz/docqa/internal/models"
	"github.com/ferraz/docqa/internal/types"
)

// Searcher is the slice of the vector store the retriever needs.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
}

type RetrieverConfig struct {
	TopK            int
	MaxContextChars int
	// MinSimilarity drops chunks scored below it. Zero means no floor.
	MinSimilarity float32
}

// Retriever answers a question-shaped query with the most relevant
// stored chunks assembled into a bounded context string.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	searcher Searcher
}

func NewWithConfig(config RetrieverConfig, embedder types.Embedder, searcher Searcher) *Retriever {
	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.MaxContextChars == 0 {
		config.MaxContextChars = 2000
	}

	return &Retriever{
		config:   config,
		embedder: embedder,
		searcher: searcher,
	}
}

func New(embedder types.Embedder, searcher Searcher) *Retriever {
	return NewWithConfig(RetrieverConfig{}, embedder, searcher)
}

const separator = "\n\n"

// Retrieve embeds the query, ranks stored chunks against it, and packs
// the best ones into a context no longer than MaxContextChars. A chunk
// that would overflow the budget is skipped, never truncated, and
// lower-ranked chunks are still considered. An empty result is not an
// error; it means nothing relevant is stored.
func (r *Retriever) Retrieve(ctx context.Context, query string) (models.RetrievedContext, error) {
	vectors, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return models.RetrievedContext{}, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.searcher.SimilaritySearch(ctx, vectors[0], r.config.TopK)
	if err != nil {
		return models.RetrievedContext{}, fmt.Errorf("similarity search failed: %w", err)
	}

	var (
		parts  []string
		chunks []models.ScoredChunk
		used   int
	)
	for _, result := range results {
		if result.Similarity < r.config.MinSimilarity {
			continue
		}

		cost := len([]rune(result.Content))
		if len(parts) > 0 {
			cost += len(separator)
		}
		if used+cost > r.config.MaxContextChars {
			continue
		}

		parts = append(parts, result.Content)
		chunks = append(chunks, result)
		used += cost
	}

	return models.RetrievedContext{
		Text:   strings.Join(parts, separator),
		Chunks: chunks,
	}, nil
}
