// Package postgres implements storage.Store on PostgreSQL with pgvector.
// Unlike the in-memory and sqlite engines, which rank records with the
// lexical scorer, this engine stores a keyword embedding per record and
// searches by cosine distance in the database. Scores are mapped into the
// same [0.75, 0.98] band the lexical scorer produces so the response shape
// of the facade does not depend on the configured engine.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"

	"github.com/kinic-labs/memgate/internal/embedding"
	"github.com/kinic-labs/memgate/internal/storage"
	"github.com/kinic-labs/memgate/pkg/types"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory_stores (
	memory_id   TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_records (
	id             BIGSERIAL PRIMARY KEY,
	memory_id      TEXT NOT NULL REFERENCES memory_stores(memory_id),
	tag            TEXT NOT NULL,
	content        TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	embedding_hash TEXT NOT NULL,
	embedding      vector(1024),
	inserted_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_records_store ON memory_records(memory_id, id);
`

// Store implements storage.Store using PostgreSQL and pgvector.
type Store struct {
	db    *sql.DB
	embed embedding.Func
}

// NewStore connects to PostgreSQL at dsn and ensures the schema. The
// embed function produces the record vectors used by Search; pass nil to
// use the default keyword embedder.
func NewStore(dsn string, embed embedding.Func) (*Store, error) {
	if embed == nil {
		embed = embedding.Keyword
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	return &Store{db: db, embed: embed}, nil
}

// Create resets memoryID to an empty record sequence with fresh metadata.
func (s *Store) Create(ctx context.Context, memoryID, name, description string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_stores (memory_id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (memory_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			created_at = EXCLUDED.created_at
	`, memoryID, name, description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: upsert store: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_records WHERE memory_id = $1", memoryID); err != nil {
		return fmt.Errorf("postgres: reset records: %w", err)
	}

	return tx.Commit()
}

// Insert appends a record. The store row is locked for the duration of
// the transaction so concurrent appends to the same memory id are
// serialized and the returned root reflects a consistent snapshot.
func (s *Store) Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, error) {
	contentHash := storage.HashContent(content)
	embeddingHash := storage.HashEmbedding(content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_stores (memory_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (memory_id) DO NOTHING
	`, memoryID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: ensure store: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"SELECT memory_id FROM memory_stores WHERE memory_id = $1 FOR UPDATE", memoryID); err != nil {
		return nil, fmt.Errorf("postgres: lock store: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_records (memory_id, tag, content, content_hash, embedding_hash, embedding, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, memoryID, tag, content, contentHash, embeddingHash,
		pgvector.NewVector(s.embed(content)), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: append record: %w", err)
	}

	hashes, err := s.contentHashes(ctx, tx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: commit insert: %w", err)
	}

	return &types.InsertReceipt{
		ContentHash:   contentHash,
		EmbeddingHash: embeddingHash,
		MerkleRoot:    storage.ChainRoot(hashes),
	}, nil
}

// Search orders records by cosine distance to the query embedding and
// maps cosine similarity into the facade's scoring band. Records with no
// positive similarity are excluded, mirroring the lexical scorer's
// zero-match exclusion.
func (s *Store) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		return []types.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, content, content_hash, 1 - (embedding <=> $2) AS cosine
		FROM memory_records
		WHERE memory_id = $1
		ORDER BY embedding <=> $2, id
		LIMIT $3
	`, memoryID, pgvector.NewVector(s.embed(query)), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	results := []types.SearchResult{}
	for rows.Next() {
		var res types.SearchResult
		var cosine float64
		if err := rows.Scan(&res.Tag, &res.Content, &res.ContentHash, &cosine); err != nil {
			return nil, fmt.Errorf("postgres: scan result: %w", err)
		}
		if cosine <= 0 {
			continue
		}
		sim := 0.75 + cosine*0.23
		if sim > 0.98 {
			sim = 0.98
		}
		res.Similarity = math.Round(sim*1000) / 1000
		results = append(results, res)
	}
	return results, rows.Err()
}

// Commitment recomputes the chained root over the stored hash sequence.
func (s *Store) Commitment(ctx context.Context, memoryID string) (*types.Commitment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, inserted_at
		FROM memory_records WHERE memory_id = $1 ORDER BY id
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	var lastUpdated time.Time
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash, &lastUpdated); err != nil {
			return nil, fmt.Errorf("postgres: scan hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate hashes: %w", err)
	}

	c := &types.Commitment{
		MerkleRoot:  storage.ChainRoot(hashes),
		MemoryCount: len(hashes),
	}
	if len(hashes) > 0 {
		c.LastUpdated = lastUpdated.UTC().Format(time.RFC3339Nano)
	}
	return c, nil
}

// List returns every memory identifier known to this database.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT memory_id FROM memory_stores ORDER BY memory_id")
	if err != nil {
		return nil, fmt.Errorf("postgres: list stores: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan store id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) contentHashes(ctx context.Context, tx *sql.Tx, memoryID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT content_hash FROM memory_records WHERE memory_id = $1 ORDER BY id
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query hash chain: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("postgres: scan hash chain: %w", err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}
