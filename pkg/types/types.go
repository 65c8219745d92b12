// Package types defines the domain types shared between the storage
// engines, the backend router, and the HTTP handlers.
package types

import "time"

// MemoryRecord is one inserted item in a memory store. Records are
// immutable once inserted and there is no delete operation.
type MemoryRecord struct {
	Tag           string    `json:"tag"`            // caller-supplied label, not unique
	Content       string    `json:"content"`        // arbitrary text body
	ContentHash   string    `json:"content_hash"`   // sha256 hex of Content
	EmbeddingHash string    `json:"embedding_hash"` // sha256 hex of the embedding commitment string
	InsertedAt    time.Time `json:"timestamp"`      // monotonic per store
}

// StoreMetadata is set once when a memory store is created.
type StoreMetadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// InsertReceipt carries the hashes produced by an insert. ZKProof is only
// populated when the insert was served by a proof-generating backend.
type InsertReceipt struct {
	ContentHash   string `json:"content_hash"`
	EmbeddingHash string `json:"embedding_hash"`
	MerkleRoot    string `json:"merkle_root"`
	ZKProof       string `json:"zk_proof,omitempty"`
}

// SearchResult is a single scored record from a search.
// Tag may be empty when the serving backend does not carry tags.
type SearchResult struct {
	Content     string  `json:"content"`
	Tag         string  `json:"tag"`
	Similarity  float64 `json:"similarity"`
	ContentHash string  `json:"content_hash"`
}

// Commitment is the integrity summary of a memory store: a hash-chained
// root over all content hashes in insertion order.
type Commitment struct {
	MerkleRoot  string `json:"merkle_root"`
	MemoryCount int    `json:"memory_count"`
	LastUpdated string `json:"last_updated,omitempty"` // RFC3339; empty when the store is empty
	StorageURI  string `json:"storage_uri,omitempty"`
}

// CreateResult is the outcome of creating a memory store.
type CreateResult struct {
	MemoryID   string `json:"memory_id"`
	CanisterID string `json:"canister_id,omitempty"`
}
