package handlers

import "github.com/kinic-labs/memgate/pkg/types"

// CreateMemoryRequest is the body of POST /memories.
type CreateMemoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Identity    string `json:"identity"`
	UseIC       *bool  `json:"use_ic"` // pointer so an absent field defaults to true
}

// CreateMemoryResponse is the body returned by POST /memories.
type CreateMemoryResponse struct {
	Success    bool   `json:"success"`
	MemoryID   string `json:"memory_id"`
	CanisterID string `json:"canister_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// InsertMemoryRequest is the body of POST /memories/{id}/insert.
type InsertMemoryRequest struct {
	Tag      string         `json:"tag"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"` // accepted, currently unused
}

// InsertMemoryResponse is the body returned by POST /memories/{id}/insert.
type InsertMemoryResponse struct {
	Success       bool   `json:"success"`
	ContentHash   string `json:"content_hash"`
	EmbeddingHash string `json:"embedding_hash"`
	MerkleRoot    string `json:"merkle_root"`
	ZKProof       string `json:"zk_proof,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SearchRequest is the body of POST /memories/{id}/search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchResponse is the body returned by POST /memories/{id}/search.
type SearchResponse struct {
	Success     bool                 `json:"success"`
	Results     []types.SearchResult `json:"results"`
	MerkleProof string               `json:"merkle_proof,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// CommitmentResponse is the body returned by GET /memories/{id}/commitment.
type CommitmentResponse struct {
	Success     bool   `json:"success"`
	MemoryID    string `json:"memory_id"`
	MerkleRoot  string `json:"merkle_root"`
	MemoryCount int    `json:"memory_count"`
	LastUpdated string `json:"last_updated"`
	StorageURI  string `json:"storage_uri"`
	Error       string `json:"error,omitempty"`
}

// ListMemoriesResponse is the body returned by GET /memories.
type ListMemoriesResponse struct {
	Memories []string `json:"memories"`
}

// HealthResponse is the body returned by GET /health. mode is the only
// signal distinguishing remote-backed answers from emulated ones.
type HealthResponse struct {
	Status         string `json:"status"`
	KinicAvailable bool   `json:"kinic_available"`
	Version        string `json:"version"`
	Mode           string `json:"mode"`
	CanisterID     string `json:"canister_id,omitempty"`
}

// InsertEvent is broadcast on the WebSocket feed after a successful insert.
type InsertEvent struct {
	Event       string `json:"event"`
	MemoryID    string `json:"memory_id"`
	MerkleRoot  string `json:"merkle_root"`
	MemoryCount int    `json:"memory_count"`
}
