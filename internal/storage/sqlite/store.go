// Package sqlite implements storage.Store on SQLite via modernc.org/sqlite.
// The default ":memory:" DSN keeps the process-lifetime semantics of the
// in-memory engine; a file DSN can be configured by operators who want the
// emulation store to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kinic-labs/memgate/internal/storage"
	"github.com/kinic-labs/memgate/pkg/types"
)

// Schema creates the two tables backing the emulation store. Records are
// append-only; the autoincrement id preserves insertion order per memory.
const Schema = `
CREATE TABLE IF NOT EXISTS memory_stores (
	memory_id   TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id      TEXT NOT NULL,
	tag            TEXT NOT NULL,
	content        TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	embedding_hash TEXT NOT NULL,
	inserted_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_records_store ON memory_records(memory_id, id);
`

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dsn and creates the schema.
// Use ":memory:" for a purely in-process store.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises appends to the same memory id, which is exactly the
	// exclusion the commitment computation needs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Create resets memoryID to an empty record sequence with fresh metadata.
func (s *Store) Create(ctx context.Context, memoryID, name, description string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin create: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_records WHERE memory_id = ?", memoryID); err != nil {
		return fmt.Errorf("sqlite: reset records: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_stores (memory_id, name, description, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			created_at = excluded.created_at
	`, memoryID, name, description, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: upsert store: %w", err)
	}

	return tx.Commit()
}

// Insert appends a record and returns the hashes plus the new root,
// computed inside the same transaction as the append.
func (s *Store) Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, error) {
	contentHash := storage.HashContent(content)
	embeddingHash := storage.HashEmbedding(content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_stores (memory_id, name, description, created_at)
		VALUES (?, '', '', ?)
		ON CONFLICT(memory_id) DO NOTHING
	`, memoryID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("sqlite: ensure store: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_records (memory_id, tag, content, content_hash, embedding_hash, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, memoryID, tag, content, contentHash, embeddingHash, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("sqlite: append record: %w", err)
	}

	hashes, err := contentHashesTx(ctx, tx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit insert: %w", err)
	}

	return &types.InsertReceipt{
		ContentHash:   contentHash,
		EmbeddingHash: embeddingHash,
		MerkleRoot:    storage.ChainRoot(hashes),
	}, nil
}

// Search loads the record sequence and ranks it with the shared lexical
// scorer so all engines produce identical scores.
func (s *Store) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, content, content_hash, embedding_hash, inserted_at
		FROM memory_records WHERE memory_id = ? ORDER BY id
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query records: %w", err)
	}
	defer rows.Close()

	var records []types.MemoryRecord
	for rows.Next() {
		var rec types.MemoryRecord
		var insertedAt string
		if err := rows.Scan(&rec.Tag, &rec.Content, &rec.ContentHash, &rec.EmbeddingHash, &insertedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		rec.InsertedAt, _ = time.Parse(time.RFC3339Nano, insertedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate records: %w", err)
	}

	results := storage.Rank(records, query, limit)
	if results == nil {
		results = []types.SearchResult{}
	}
	return results, nil
}

// Commitment recomputes the chained root over the stored hash sequence.
func (s *Store) Commitment(ctx context.Context, memoryID string) (*types.Commitment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, inserted_at
		FROM memory_records WHERE memory_id = ? ORDER BY id
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	var lastUpdated string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash, &lastUpdated); err != nil {
			return nil, fmt.Errorf("sqlite: scan hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate hashes: %w", err)
	}

	c := &types.Commitment{
		MerkleRoot:  storage.ChainRoot(hashes),
		MemoryCount: len(hashes),
	}
	if len(hashes) > 0 {
		c.LastUpdated = lastUpdated
	}
	return c, nil
}

// List returns every memory identifier known to this database.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT memory_id FROM memory_stores ORDER BY memory_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list stores: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan store id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func contentHashesTx(ctx context.Context, tx *sql.Tx, memoryID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT content_hash FROM memory_records WHERE memory_id = ? ORDER BY id
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query hash chain: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("sqlite: scan hash chain: %w", err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}
