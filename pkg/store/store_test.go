package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/ferraz/docqa/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

// openTestStore connects to the database named by DATABASE_URL and
// starts from empty tables. Tests are skipped when no database is
// available.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set; skipping store tests")
	}

	ctx := context.Background()
	s, err := NewWithConfig(ctx, StoreConfig{
		ConnString: connString,
		VectorDim:  testDim,
		IvfLists:   1,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.pool.Exec(ctx, `TRUNCATE documents, chunks, chat_history`)
	require.NoError(t, err)

	return s
}

func testDocument(source string) models.Document {
	return models.Document{
		ID:     uuid.New(),
		Source: source,
		Title:  "Test Document",
		Metadata: map[string]interface{}{
			"origin": "test",
		},
	}
}

func unitVector(axis int) []float32 {
	vec := make([]float32, testDim)
	vec[axis] = 1
	return vec
}

func testChunks(docID uuid.UUID, n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:         uuid.New(),
			DocumentID: docID,
			Index:      i,
			Content:    fmt.Sprintf("chunk %d", i),
			Embedding:  unitVector(i % testDim),
		}
	}
	return chunks
}

func TestInsertAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("upload:test.txt")
	require.NoError(t, s.InsertDocument(ctx, doc, testChunks(doc.ID, 3)))

	// Searching with chunk 1's own embedding must return it first with
	// similarity close to 1.
	results, err := s.SimilaritySearch(ctx, unitVector(1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, "chunk 1", results[0].Content)
	assert.InDelta(t, 1.0, float64(results[0].Similarity), 1e-5)
	assert.Equal(t, "upload:test.txt", results[0].Source)
	assert.Equal(t, "Test Document", results[0].Title)
}

func TestSearchEmptyStore(t *testing.T) {
	s := openTestStore(t)

	results, err := s.SimilaritySearch(context.Background(), unitVector(0), 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTieBreakInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Two documents with identical embeddings: the earlier insert wins.
	first := testDocument("upload:first.txt")
	require.NoError(t, s.InsertDocument(ctx, first, []models.Chunk{{
		ID: uuid.New(), DocumentID: first.ID, Index: 0, Content: "first", Embedding: unitVector(0),
	}}))

	second := testDocument("upload:second.txt")
	require.NoError(t, s.InsertDocument(ctx, second, []models.Chunk{{
		ID: uuid.New(), DocumentID: second.ID, Index: 0, Content: "second", Embedding: unitVector(0),
	}}))

	results, err := s.SimilaritySearch(ctx, unitVector(0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, "second", results[1].Content)
}

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("upload:bad.txt")
	chunks := []models.Chunk{{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Index:      0,
		Content:    "bad",
		Embedding:  make([]float32, testDim+1),
	}}

	err := s.InsertDocument(ctx, doc, chunks)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// Nothing was written.
	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDeleteCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("upload:cascade.txt")
	require.NoError(t, s.InsertDocument(ctx, doc, testChunks(doc.ID, 3)))

	var docRows, chunkRows int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docRows))
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunkRows))
	assert.Equal(t, 1, docRows)
	assert.Equal(t, 3, chunkRows)

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docRows))
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunkRows))
	assert.Zero(t, docRows)
	assert.Zero(t, chunkRows)
}

func TestListDocuments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("scrape:https://example.com")
	require.NoError(t, s.InsertDocument(ctx, doc, testChunks(doc.ID, 2)))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, 2, docs[0].ChunkCount)
}

func TestAppendTurnSequence(t *testing.T) {
	s := openTestStore(t)
	m := s.Memory()
	ctx := context.Background()

	turn, err := m.AppendTurn(ctx, "s1", models.RoleUser, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, turn)

	turn, err = m.AppendTurn(ctx, "s1", models.RoleAssistant, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, turn)

	history, err := m.ReadHistory(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "hello", history[1].Content)
}

func TestAppendTurnConcurrent(t *testing.T) {
	s := openTestStore(t)
	m := s.Memory()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AppendTurn(ctx, "busy", models.RoleUser, "message")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	history, err := m.ReadHistory(ctx, "busy", n)
	require.NoError(t, err)
	require.Len(t, history, n)

	// Turns 1..n with no duplicates or gaps.
	for i, turn := range history {
		assert.Equal(t, i+1, turn.Turn)
	}
}

func TestReadHistoryLimit(t *testing.T) {
	s := openTestStore(t)
	m := s.Memory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.AppendTurn(ctx, "s2", models.RoleUser, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	history, err := m.ReadHistory(ctx, "s2", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].Turn)
	assert.Equal(t, 5, history[1].Turn)
}

func TestAppendTurnRejectsBadRole(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Memory().AppendTurn(context.Background(), "s1", "narrator", "hi")

	assert.Error(t, err)
}

func TestListSessions(t *testing.T) {
	s := openTestStore(t)
	m := s.Memory()
	ctx := context.Background()

	_, err := m.AppendTurn(ctx, "a", models.RoleUser, "1")
	require.NoError(t, err)
	_, err = m.AppendTurn(ctx, "a", models.RoleAssistant, "2")
	require.NoError(t, err)
	_, err = m.AppendTurn(ctx, "b", models.RoleUser, "3")
	require.NoError(t, err)

	sessions, err := m.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	counts := map[string]int{}
	for _, info := range sessions {
		counts[info.SessionID] = info.TurnCount
	}
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 1, counts["b"])
}
