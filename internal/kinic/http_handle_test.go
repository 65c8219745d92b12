package kinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPHandle_RequiresURL(t *testing.T) {
	h, err := NewHTTPHandle("", "default", true)
	assert.Error(t, err)
	assert.Nil(t, h)
}

func TestHTTPHandle_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdk/create", r.URL.Path)

		var req bridgeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Identity)
		assert.True(t, req.UseIC)
		assert.Equal(t, "notes", req.Name)

		json.NewEncoder(w).Encode(bridgeResponse{
			Success:    true,
			MemoryID:   "abc123",
			CanisterID: "aaaaa-aa",
		})
	}))
	defer srv.Close()

	h, err := NewHTTPHandle(srv.URL, "alice", true)
	require.NoError(t, err)

	result, err := h.Create(context.Background(), "notes", "my notes")
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.MemoryID)
	assert.Equal(t, "aaaaa-aa", result.CanisterID)
}

func TestHTTPHandle_BridgeFailureIsSdkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bridgeResponse{Success: false, Error: "canister out of cycles"})
	}))
	defer srv.Close()

	h, err := NewHTTPHandle(srv.URL, "alice", true)
	require.NoError(t, err)

	_, err = h.InsertMarkdown(context.Background(), "m1", "tag", "text")
	require.Error(t, err)

	var sdkErr *SdkError
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, "insert_markdown", sdkErr.Op)
	assert.Contains(t, sdkErr.Error(), "canister out of cycles")
}

func TestHTTPHandle_SearchTruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": []map[string]any{
				{"content": "a", "similarity": 0.9},
				{"content": "b", "similarity": 0.8},
				{"content": "c", "similarity": 0.7},
			},
		})
	}))
	defer srv.Close()

	h, err := NewHTTPHandle(srv.URL, "alice", true)
	require.NoError(t, err)

	results, err := h.Search(context.Background(), "m1", "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Content)
	// SDK-served results may drop the tag; an empty tag is allowed.
	assert.Equal(t, "", results[0].Tag)
}

func TestHTTPHandle_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h, err := NewHTTPHandle(srv.URL, "alice", true)
	require.NoError(t, err)

	_, err = h.List(context.Background())
	var sdkErr *SdkError
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, "list", sdkErr.Op)
}
