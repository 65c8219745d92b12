package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinic-labs/memgate/internal/storage/memory"
)

// newTestStore connects to the database named by MEMGATE_POSTGRES_DSN.
// The test is skipped when no DSN is configured, so the suite stays green
// without a PostgreSQL instance.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("MEMGATE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEMGATE_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := NewStore(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testMemoryID gives each test run its own namespace in a shared database.
func testMemoryID(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test-%s-%d", strings.ToLower(t.Name()), time.Now().UnixNano())
}

func TestStore_ReceiptsMatchMemoryEngine(t *testing.T) {
	pg := newTestStore(t)
	mem := memory.NewStore()
	ctx := context.Background()
	id := testMemoryID(t)

	contents := []struct{ tag, content string }{
		{"greeting", "hello world"},
		{"note", "merkle roots chain in insertion order"},
		{"farewell", "goodbye"},
	}

	for _, c := range contents {
		pgReceipt, err := pg.Insert(ctx, id, c.tag, c.content)
		require.NoError(t, err)
		memReceipt, err := mem.Insert(ctx, id, c.tag, c.content)
		require.NoError(t, err)

		// Hashes and roots are engine-independent.
		assert.Equal(t, memReceipt.ContentHash, pgReceipt.ContentHash)
		assert.Equal(t, memReceipt.EmbeddingHash, pgReceipt.EmbeddingHash)
		assert.Equal(t, memReceipt.MerkleRoot, pgReceipt.MerkleRoot)
	}

	pgCommit, err := pg.Commitment(ctx, id)
	require.NoError(t, err)
	memCommit, err := mem.Commitment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, memCommit.MerkleRoot, pgCommit.MerkleRoot)
	assert.Equal(t, memCommit.MemoryCount, pgCommit.MemoryCount)
}

func TestStore_SearchStaysInLexicalBand(t *testing.T) {
	pg := newTestStore(t)
	ctx := context.Background()
	id := testMemoryID(t)

	_, err := pg.Insert(ctx, id, "greeting", "hello world")
	require.NoError(t, err)
	_, err = pg.Insert(ctx, id, "note", "unrelated content entirely")
	require.NoError(t, err)

	results, err := pg.Search(ctx, id, "hello world", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Best match first, scores mapped into the shared band.
	assert.Equal(t, "hello world", results[0].Content)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.75)
		assert.LessOrEqual(t, r.Similarity, 0.98)
	}
}

func TestStore_CreateResets(t *testing.T) {
	pg := newTestStore(t)
	ctx := context.Background()
	id := testMemoryID(t)

	_, err := pg.Insert(ctx, id, "t", "content")
	require.NoError(t, err)
	require.NoError(t, pg.Create(ctx, id, "fresh", "recreated"))

	commit, err := pg.Commitment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), commit.MerkleRoot)
	assert.Zero(t, commit.MemoryCount)
}

func TestStore_UnknownIDDegrades(t *testing.T) {
	pg := newTestStore(t)
	ctx := context.Background()

	commit, err := pg.Commitment(ctx, testMemoryID(t)+"-ghost")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), commit.MerkleRoot)
	assert.Zero(t, commit.MemoryCount)

	results, err := pg.Search(ctx, testMemoryID(t)+"-ghost", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
