// Package handlers provides the HTTP handlers and middleware for the
// memgate REST API. Backend failures never surface as transport errors:
// business problems come back as success=false JSON bodies.
package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/kinic-labs/memgate/internal/config"
	"github.com/kinic-labs/memgate/internal/router"
	"github.com/kinic-labs/memgate/pkg/types"
)

// Version reported by the health endpoint.
const Version = "0.1.0"

const defaultSearchLimit = 5

// Broadcaster pushes events to connected WebSocket clients. The hub
// implements it; handlers tolerate a nil broadcaster.
type Broadcaster interface {
	Broadcast(message interface{})
}

// Handlers contains the HTTP handlers for the REST API.
type Handlers struct {
	gateway *router.Router
	config  *config.Config
	hub     Broadcaster
}

// NewHandlers creates a Handlers instance. hub may be nil when no
// WebSocket feed is wired.
func NewHandlers(gateway *router.Router, cfg *config.Config, hub Broadcaster) *Handlers {
	return &Handlers{gateway: gateway, config: cfg, hub: hub}
}

// CreateMemory handles POST /memories.
func (h *Handlers) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, CreateMemoryResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	if req.Name == "" {
		respondJSON(w, http.StatusOK, CreateMemoryResponse{
			Success: false,
			Error:   "name is required",
		})
		return
	}
	if req.Identity == "" {
		req.Identity = "default"
	}
	useIC := true
	if req.UseIC != nil {
		useIC = *req.UseIC
	}

	result, _, err := h.gateway.Create(r.Context(), req.Name, req.Description, req.Identity, useIC)
	if err != nil {
		respondJSON(w, http.StatusOK, CreateMemoryResponse{Success: false, Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, CreateMemoryResponse{
		Success:    true,
		MemoryID:   result.MemoryID,
		CanisterID: result.CanisterID,
	})
}

// InsertMemory handles POST /memories/{id}/insert.
func (h *Handlers) InsertMemory(w http.ResponseWriter, r *http.Request) {
	memoryID := r.PathValue("id")

	var req InsertMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, InsertMemoryResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	if req.Content == "" {
		respondJSON(w, http.StatusOK, InsertMemoryResponse{
			Success: false,
			Error:   "content is required",
		})
		return
	}

	receipt, _, err := h.gateway.Insert(r.Context(), memoryID, req.Tag, req.Content)
	if err != nil {
		respondJSON(w, http.StatusOK, InsertMemoryResponse{Success: false, Error: err.Error()})
		return
	}

	h.notifyInsert(r, memoryID, receipt.MerkleRoot)

	respondJSON(w, http.StatusOK, InsertMemoryResponse{
		Success:       true,
		ContentHash:   receipt.ContentHash,
		EmbeddingHash: receipt.EmbeddingHash,
		MerkleRoot:    receipt.MerkleRoot,
		ZKProof:       receipt.ZKProof,
	})
}

// SearchMemories handles POST /memories/{id}/search.
func (h *Handlers) SearchMemories(w http.ResponseWriter, r *http.Request) {
	memoryID := r.PathValue("id")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, SearchResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	if req.Query == "" {
		respondJSON(w, http.StatusOK, SearchResponse{
			Success: false,
			Error:   "query is required",
		})
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	results, _, err := h.gateway.Search(r.Context(), memoryID, req.Query, req.Limit)
	if err != nil {
		respondJSON(w, http.StatusOK, SearchResponse{Success: false, Results: nil, Error: err.Error()})
		return
	}
	if results == nil {
		// Keep the results array present even when empty.
		results = []types.SearchResult{}
	}

	respondJSON(w, http.StatusOK, SearchResponse{Success: true, Results: results})
}

// GetCommitment handles GET /memories/{id}/commitment.
func (h *Handlers) GetCommitment(w http.ResponseWriter, r *http.Request) {
	memoryID := r.PathValue("id")

	commitment, _, err := h.gateway.Commitment(r.Context(), memoryID)
	if err != nil {
		respondJSON(w, http.StatusOK, CommitmentResponse{
			Success:  false,
			MemoryID: memoryID,
			Error:    err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, CommitmentResponse{
		Success:     true,
		MemoryID:    memoryID,
		MerkleRoot:  commitment.MerkleRoot,
		MemoryCount: commitment.MemoryCount,
		LastUpdated: commitment.LastUpdated,
		StorageURI:  commitment.StorageURI,
	})
}

// ListMemories handles GET /memories.
func (h *Handlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	ids, _, err := h.gateway.List(r.Context())
	if err != nil {
		// The local store cannot fail; kept for interface completeness.
		respondJSON(w, http.StatusOK, ListMemoriesResponse{Memories: []string{}})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, ListMemoriesResponse{Memories: ids})
}

// notifyInsert publishes the post-insert commitment to the WebSocket feed.
func (h *Handlers) notifyInsert(r *http.Request, memoryID, merkleRoot string) {
	if h.hub == nil {
		return
	}
	event := InsertEvent{Event: "insert", MemoryID: memoryID, MerkleRoot: merkleRoot}
	if commitment, _, err := h.gateway.Commitment(r.Context(), memoryID); err == nil {
		event.MemoryCount = commitment.MemoryCount
	}
	h.hub.Broadcast(event)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing more to do.
		log.Printf("failed to encode JSON response: %v", err)
	}
}
