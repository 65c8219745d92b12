// Package memory implements storage.Store entirely in process memory.
// It is the terminal backend of the router: every operation is a total
// function over the store state and cannot fail for a known or unknown
// memory identifier.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kinic-labs/memgate/internal/storage"
	"github.com/kinic-labs/memgate/pkg/types"
)

// Store holds one record sequence per memory identifier for the lifetime
// of the process. Nothing is persisted across restarts.
type Store struct {
	mu     sync.RWMutex // guards the stores map itself
	stores map[string]*memoryStore
}

// memoryStore is a single namespace of records. Its lock serializes
// appends so the Merkle root is always computed over a consistent
// snapshot; concurrent reads share the lock.
type memoryStore struct {
	mu      sync.RWMutex
	meta    types.StoreMetadata
	records []types.MemoryRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{stores: make(map[string]*memoryStore)}
}

// Create idempotently (re)initializes memoryID with an empty record
// sequence and fresh metadata. It always succeeds.
func (s *Store) Create(_ context.Context, memoryID, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stores[memoryID] = &memoryStore{
		meta: types.StoreMetadata{
			Name:        name,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		},
	}
	return nil
}

// Insert appends a record to memoryID, auto-creating the store when it
// does not exist yet, and returns the record hashes plus the new root.
func (s *Store) Insert(_ context.Context, memoryID, tag, content string) (*types.InsertReceipt, error) {
	ms := s.getOrCreate(memoryID)

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now().UTC()
	if n := len(ms.records); n > 0 && !now.After(ms.records[n-1].InsertedAt) {
		// Keep timestamps strictly monotonic per store even when the
		// clock does not advance between inserts.
		now = ms.records[n-1].InsertedAt.Add(time.Nanosecond)
	}

	rec := types.MemoryRecord{
		Tag:           tag,
		Content:       content,
		ContentHash:   storage.HashContent(content),
		EmbeddingHash: storage.HashEmbedding(content),
		InsertedAt:    now,
	}
	ms.records = append(ms.records, rec)

	return &types.InsertReceipt{
		ContentHash:   rec.ContentHash,
		EmbeddingHash: rec.EmbeddingHash,
		MerkleRoot:    storage.ChainRoot(contentHashes(ms.records)),
	}, nil
}

// Search ranks the records of memoryID against query. An unknown
// memoryID yields an empty result set, never an error.
func (s *Store) Search(_ context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	ms := s.get(memoryID)
	if ms == nil {
		return []types.SearchResult{}, nil
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return storage.Rank(ms.records, query, limit), nil
}

// Commitment returns the current root and count for memoryID. Unknown
// or empty stores degrade to the all-zero root.
func (s *Store) Commitment(_ context.Context, memoryID string) (*types.Commitment, error) {
	ms := s.get(memoryID)
	if ms == nil {
		return &types.Commitment{MerkleRoot: storage.EmptyRoot}, nil
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	c := &types.Commitment{
		MerkleRoot:  storage.ChainRoot(contentHashes(ms.records)),
		MemoryCount: len(ms.records),
	}
	if n := len(ms.records); n > 0 {
		c.LastUpdated = ms.records[n-1].InsertedAt.Format(time.RFC3339Nano)
	}
	return c, nil
}

// List returns the identifiers of every store seen this process lifetime.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.stores))
	for id := range s.stores {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close is a no-op for the in-memory engine.
func (s *Store) Close() error { return nil }

func (s *Store) get(memoryID string) *memoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stores[memoryID]
}

func (s *Store) getOrCreate(memoryID string) *memoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.stores[memoryID]
	if !ok {
		ms = &memoryStore{meta: types.StoreMetadata{CreatedAt: time.Now().UTC()}}
		s.stores[memoryID] = ms
	}
	return ms
}

func contentHashes(records []types.MemoryRecord) []string {
	hashes := make([]string, len(records))
	for i, rec := range records {
		hashes[i] = rec.ContentHash
	}
	return hashes
}
