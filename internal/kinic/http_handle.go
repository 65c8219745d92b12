package kinic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kinic-labs/memgate/pkg/types"
)

// httpHandle talks to a Kinic SDK bridge: a sidecar process that owns the
// real SDK and its keyring, exposed over local HTTP. All calls go through
// the circuit breaker so a dead bridge is probed, not hammered.
type httpHandle struct {
	baseURL  string
	identity string
	useIC    bool
	client   *http.Client
	breaker  *Breaker
}

// NewHTTPHandle builds a Handle bound to the bridge at baseURL for the
// given identity and routing mode. It fails when baseURL is empty, which
// the cache treats as a transient construction failure.
func NewHTTPHandle(baseURL, identity string, useIC bool) (Handle, error) {
	if baseURL == "" {
		return nil, errors.New("kinic: bridge URL not configured")
	}
	return &httpHandle{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		useIC:    useIC,
		client:   &http.Client{Timeout: 30 * time.Second},
		breaker:  NewBreaker(),
	}, nil
}

type bridgeRequest struct {
	Identity string `json:"identity"`
	UseIC    bool   `json:"use_ic"`
	MemoryID string `json:"memory_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Desc     string `json:"description,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Text     string `json:"text,omitempty"`
	Query    string `json:"query,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type bridgeResponse struct {
	Success       bool                 `json:"success"`
	Error         string               `json:"error,omitempty"`
	MemoryID      string               `json:"memory_id,omitempty"`
	CanisterID    string               `json:"canister_id,omitempty"`
	ContentHash   string               `json:"content_hash,omitempty"`
	EmbeddingHash string               `json:"embedding_hash,omitempty"`
	MerkleRoot    string               `json:"merkle_root,omitempty"`
	ZKProof       string               `json:"zk_proof,omitempty"`
	Results       []types.SearchResult `json:"results,omitempty"`
	Memories      []string             `json:"memories,omitempty"`
}

func (h *httpHandle) Create(ctx context.Context, name, description string) (*types.CreateResult, error) {
	resp, err := h.call(ctx, "create", bridgeRequest{Name: name, Desc: description})
	if err != nil {
		return nil, &SdkError{Op: "create", Err: err}
	}
	return &types.CreateResult{MemoryID: resp.MemoryID, CanisterID: resp.CanisterID}, nil
}

func (h *httpHandle) InsertMarkdown(ctx context.Context, memoryID, tag, text string) (*types.InsertReceipt, error) {
	resp, err := h.call(ctx, "insert", bridgeRequest{MemoryID: memoryID, Tag: tag, Text: text})
	if err != nil {
		return nil, &SdkError{Op: "insert_markdown", Err: err}
	}
	return &types.InsertReceipt{
		ContentHash:   resp.ContentHash,
		EmbeddingHash: resp.EmbeddingHash,
		MerkleRoot:    resp.MerkleRoot,
		ZKProof:       resp.ZKProof,
	}, nil
}

func (h *httpHandle) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	resp, err := h.call(ctx, "search", bridgeRequest{MemoryID: memoryID, Query: query, Limit: limit})
	if err != nil {
		return nil, &SdkError{Op: "search", Err: err}
	}
	results := resp.Results
	if results == nil {
		results = []types.SearchResult{}
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (h *httpHandle) List(ctx context.Context) ([]string, error) {
	resp, err := h.call(ctx, "list", bridgeRequest{})
	if err != nil {
		return nil, &SdkError{Op: "list", Err: err}
	}
	if resp.Memories == nil {
		return []string{}, nil
	}
	return resp.Memories, nil
}

// call posts one bridge operation through the circuit breaker and
// decodes the envelope. A success=false envelope is an error carrying
// the bridge's message.
func (h *httpHandle) call(ctx context.Context, op string, req bridgeRequest) (*bridgeResponse, error) {
	req.Identity = h.identity
	req.UseIC = h.useIC

	result, err := h.breaker.Execute(ctx, func() (interface{}, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			h.baseURL+"/sdk/"+op, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := h.client.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("bridge returned status %d", httpResp.StatusCode)
		}

		var decoded bridgeResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("malformed bridge response: %w", err)
		}
		if !decoded.Success {
			return nil, errors.New(decoded.Error)
		}
		return &decoded, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*bridgeResponse), nil
}
