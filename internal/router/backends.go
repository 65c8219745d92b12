package router

import (
	"context"
	"errors"
	"math"

	"github.com/kinic-labs/memgate/internal/embedding"
	"github.com/kinic-labs/memgate/internal/icp"
	"github.com/kinic-labs/memgate/internal/kinic"
	"github.com/kinic-labs/memgate/internal/storage"
	"github.com/kinic-labs/memgate/pkg/types"
)

// ErrSkip signals that a backend does not apply to the current request
// (wrong target, no handle available). Skips never mutate health.
var ErrSkip = errors.New("backend does not apply")

// CreateRequest carries the inputs of a store creation. MemoryID is
// generated by the router before the chain runs so every backend agrees
// on the fallback identifier.
type CreateRequest struct {
	MemoryID    string
	Name        string
	Description string
	Identity    string
	UseIC       bool
}

// Backend is the capability interface every backend adapter implements.
// Operations return ErrSkip when the backend does not serve them; any
// other error is a failure the router converts into a fall-through.
type Backend interface {
	Kind() Kind
	Create(ctx context.Context, req CreateRequest) (*types.CreateResult, error)
	Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, error)
	Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error)
	Commitment(ctx context.Context, memoryID string) (*types.Commitment, error)
	List(ctx context.Context) ([]string, error)
}

// availabilityReporter is implemented by backends that can probe their
// collaborator without performing a real operation. Used by /health.
type availabilityReporter interface {
	Available(ctx context.Context) bool
}

// localBackend adapts a storage.Store. It is the terminal backend: none
// of its operations can fail for a well-formed request.
type localBackend struct {
	store storage.Store
}

// NewLocalBackend wraps the configured store engine as the terminal
// backend of every chain.
func NewLocalBackend(store storage.Store) Backend {
	return &localBackend{store: store}
}

func (b *localBackend) Kind() Kind { return KindLocal }

func (b *localBackend) Create(ctx context.Context, req CreateRequest) (*types.CreateResult, error) {
	if err := b.store.Create(ctx, req.MemoryID, req.Name, req.Description); err != nil {
		return nil, err
	}
	return &types.CreateResult{
		MemoryID:   req.MemoryID,
		CanisterID: "mock-canister-" + req.MemoryID,
	}, nil
}

func (b *localBackend) Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, error) {
	return b.store.Insert(ctx, memoryID, tag, content)
}

func (b *localBackend) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	return b.store.Search(ctx, memoryID, query, limit)
}

func (b *localBackend) Commitment(ctx context.Context, memoryID string) (*types.Commitment, error) {
	c, err := b.store.Commitment(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	c.StorageURI = "mock://" + memoryID
	return c, nil
}

func (b *localBackend) List(ctx context.Context) ([]string, error) {
	return b.store.List(ctx)
}

// remoteBackend adapts the direct canister query client. It serves only
// search, and only when the target identifier is the canister the client
// is bound to.
type remoteBackend struct {
	client     *icp.Client
	canisterID string
	embed      embedding.Func
}

// NewRemoteBackend wraps an icp.Client bound to canisterID. The embed
// function turns query text into the vector the canister expects.
func NewRemoteBackend(client *icp.Client, canisterID string, embed embedding.Func) Backend {
	if embed == nil {
		embed = embedding.Keyword
	}
	return &remoteBackend{client: client, canisterID: canisterID, embed: embed}
}

func (b *remoteBackend) Kind() Kind { return KindRemote }

func (b *remoteBackend) Available(ctx context.Context) bool {
	return b.client.IsAvailable(ctx)
}

func (b *remoteBackend) Create(context.Context, CreateRequest) (*types.CreateResult, error) {
	return nil, ErrSkip
}

func (b *remoteBackend) Insert(context.Context, string, string, string) (*types.InsertReceipt, error) {
	return nil, ErrSkip
}

func (b *remoteBackend) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	if memoryID != b.canisterID {
		return nil, ErrSkip
	}

	hits, err := b.client.Search(ctx, b.canisterID, b.embed(query), limit)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.SearchResult{
			Content: hit.Payload,
			// The canister payload carries no tag; the loss is accepted.
			Tag:         "",
			Similarity:  math.Round(hit.Similarity*1000) / 1000,
			ContentHash: storage.HashContent(hit.Payload),
		})
	}
	return results, nil
}

func (b *remoteBackend) Commitment(context.Context, string) (*types.Commitment, error) {
	return nil, ErrSkip
}

func (b *remoteBackend) List(context.Context) ([]string, error) {
	return nil, ErrSkip
}

// sdkBackend adapts the cached SDK handle. A missing handle (failed
// construction) is a Skip, not a failure: only operation-level errors
// drive the permanent demotion decision.
type sdkBackend struct {
	cache    *kinic.Cache
	identity string
	useIC    bool
}

// NewSDKBackend wraps a handle cache with the default identity and
// routing mode used for operations that do not carry their own.
func NewSDKBackend(cache *kinic.Cache, identity string, useIC bool) Backend {
	return &sdkBackend{cache: cache, identity: identity, useIC: useIC}
}

func (b *sdkBackend) Kind() Kind { return KindSDK }

func (b *sdkBackend) Available(ctx context.Context) bool {
	return b.cache.Get(b.identity, b.useIC) != nil
}

func (b *sdkBackend) Create(ctx context.Context, req CreateRequest) (*types.CreateResult, error) {
	h := b.cache.Get(req.Identity, req.UseIC)
	if h == nil {
		return nil, ErrSkip
	}

	result, err := h.Create(ctx, req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	if result.MemoryID == "" {
		result.MemoryID = req.MemoryID
	}
	return result, nil
}

func (b *sdkBackend) Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, error) {
	h := b.cache.Get(b.identity, b.useIC)
	if h == nil {
		return nil, ErrSkip
	}
	return h.InsertMarkdown(ctx, memoryID, tag, content)
}

func (b *sdkBackend) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error) {
	h := b.cache.Get(b.identity, b.useIC)
	if h == nil {
		return nil, ErrSkip
	}
	return h.Search(ctx, memoryID, query, limit)
}

func (b *sdkBackend) Commitment(context.Context, string) (*types.Commitment, error) {
	return nil, ErrSkip
}

func (b *sdkBackend) List(ctx context.Context) ([]string, error) {
	h := b.cache.Get(b.identity, b.useIC)
	if h == nil {
		return nil, ErrSkip
	}
	return h.List(ctx)
}
