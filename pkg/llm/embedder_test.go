package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbeddingClient struct {
	dimension int
	calls     [][]string
	failures  int // fail this many calls before succeeding
}

func (s *stubEmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, texts)
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection refused")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.dimension)
		vec[0] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}

func newTestEmbedder(client embeddingClient, batchSize int) *Embedder {
	return &Embedder{
		config: EmbedderConfig{
			Dimension:  384,
			BatchSize:  batchSize,
			MaxRetries: 2,
			Timeout:    time.Second,
		},
		client: client,
	}
}

func TestEmbedTextsPreservesOrder(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384}
	e := newTestEmbedder(client, 32)

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
	assert.Equal(t, float32(3), vectors[2][0])
}

func TestEmbedTextsBatches(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384}
	e := newTestEmbedder(client, 2)

	texts := []string{"one", "two", "three", "four", "five"}
	vectors, err := e.EmbedTexts(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0], 2)
	assert.Len(t, client.calls[2], 1)
}

func TestEmbedTextsNormalization(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384}
	e := newTestEmbedder(client, 32)

	_, err := e.EmbedTexts(context.Background(), []string{"  hello \n\t world  "})

	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	assert.Equal(t, "hello world", client.calls[0][0])
}

func TestEmbedQueryMatchesChunkPath(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384}
	e := newTestEmbedder(client, 32)

	query, err := e.EmbedQuery(context.Background(), "some   query")
	require.NoError(t, err)

	chunks, err := e.EmbedTexts(context.Background(), []string{"some query"})
	require.NoError(t, err)

	assert.Equal(t, chunks[0], query)
}

func TestEmbedTextsRetriesTransientFailures(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384, failures: 2}
	e := newTestEmbedder(client, 32)

	vectors, err := e.EmbedTexts(context.Background(), []string{"text"})

	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Len(t, client.calls, 3)
}

func TestEmbedTextsUnavailableAfterRetries(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384, failures: 10}
	e := newTestEmbedder(client, 32)

	_, err := e.EmbedTexts(context.Background(), []string{"text"})

	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedTextsDimensionMismatch(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 768}
	e := newTestEmbedder(client, 32)

	_, err := e.EmbedTexts(context.Background(), []string{"text"})

	assert.ErrorIs(t, err, ErrDimensionMismatch)
	// A wrong dimension is not retryable.
	assert.Len(t, client.calls, 1)
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	client := &stubEmbeddingClient{dimension: 384}
	e := newTestEmbedder(client, 32)

	vectors, err := e.EmbedTexts(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestNewEmbedderDefaults(t *testing.T) {
	e, err := NewEmbedderWithConfig(EmbedderConfig{})

	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimension())
}
