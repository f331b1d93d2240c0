package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms/ollama"
)

var (
	// ErrEmbeddingUnavailable marks transient embedding service
	// failures after retries are exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrDimensionMismatch means the service returned a vector of an
	// unexpected length. Fatal for the current operation.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// embeddingClient is the transport boundary to the inference service.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type EmbedderConfig struct {
	Model      string
	BaseURL    string // Ollama server URL
	Dimension  int
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
}

// Embedder turns texts into fixed-dimension vectors. The same path
// serves chunk embedding during ingestion and query embedding during
// retrieval, so both get identical normalization.
type Embedder struct {
	config EmbedderConfig
	client embeddingClient
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "all-minilm"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Dimension == 0 {
		config.Dimension = 384
	}
	if config.BatchSize == 0 {
		config.BatchSize = 32
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{
		config: config,
		client: client,
	}, nil
}

// Dimension returns the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

// EmbedTexts returns one vector per input text, preserving input
// order. Inputs are batched to bound the number of service calls.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(texts))
	for i, text := range texts {
		normalized[i] = normalizeText(text)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(normalized); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(normalized) {
			end = len(normalized)
		}

		batch, err := e.embedBatch(ctx, normalized[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		result, err := e.client.CreateEmbedding(callCtx, batch)
		if err != nil {
			return err
		}
		if len(result) != len(batch) {
			return backoff.Permanent(fmt.Errorf("%w: got %d vectors for %d inputs",
				ErrDimensionMismatch, len(result), len(batch)))
		}
		for _, vec := range result {
			if len(vec) != e.config.Dimension {
				return backoff.Permanent(fmt.Errorf("%w: got %d, want %d",
					ErrDimensionMismatch, len(vec), e.config.Dimension))
			}
		}

		vectors = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.config.MaxRetries)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	return vectors, nil
}

// normalizeText collapses runs of whitespace so chunk and query
// vectors are comparable regardless of source formatting.
func normalizeText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
