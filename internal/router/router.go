// Package router is the degradation core of the gateway. Each operation
// walks a fixed priority chain of backends: a backend whose first test
// failed is skipped for the rest of the process, failures fall through
// to the next backend, and the chain always ends in the local store,
// which cannot fail. Callers therefore always get an answer; the only
// signal of which backend served them is the informational mode field
// on the health endpoint.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kinic-labs/memgate/pkg/types"
)

// Router owns the backend chains and the process-lifetime health flags.
type Router struct {
	health *HealthRegistry

	searchChain []Backend
	writeChain  []Backend // create and insert
	localChain  []Backend // commitment and list
}

// New assembles a router. remote and sdk may be nil when the deployment
// has no canister client or no SDK bridge; local is mandatory and
// terminates every chain.
func New(remote, sdk, local Backend) *Router {
	r := &Router{health: NewHealthRegistry()}

	if remote != nil {
		r.searchChain = append(r.searchChain, remote)
	}
	if sdk != nil {
		r.searchChain = append(r.searchChain, sdk)
		r.writeChain = append(r.writeChain, sdk)
	}
	r.searchChain = append(r.searchChain, local)
	r.writeChain = append(r.writeChain, local)
	// Commitment and list are answered by the local store only.
	r.localChain = []Backend{local}

	return r
}

// Health exposes the registry for the health endpoint.
func (r *Router) Health() *HealthRegistry { return r.health }

// Available reports whether any non-local backend can currently answer,
// probing lazily-initialized collaborators as a side effect.
func (r *Router) Available(ctx context.Context) bool {
	for _, b := range r.searchChain {
		if b.Kind() == KindLocal {
			continue
		}
		if !r.health.Viable(b.Kind()) {
			continue
		}
		if probe, ok := b.(availabilityReporter); ok && probe.Available(ctx) {
			return true
		}
	}
	return false
}

// Mode returns "real" when a non-local backend is available, "mock"
// when every answer comes from the emulation store.
func (r *Router) Mode(ctx context.Context) string {
	if r.Available(ctx) {
		return "real"
	}
	return "mock"
}

// Create provisions a memory store. The memory identifier is generated
// here so that every backend in the chain reports the same fallback id.
func (r *Router) Create(ctx context.Context, name, description, identity string, useIC bool) (*types.CreateResult, Kind, error) {
	req := CreateRequest{
		MemoryID:    generateMemoryID(name, identity),
		Name:        name,
		Description: description,
		Identity:    identity,
		UseIC:       useIC,
	}
	return attempt(r, r.writeChain, func(b Backend) (*types.CreateResult, error) {
		return b.Create(ctx, req)
	})
}

// Insert appends tagged text to a memory store.
func (r *Router) Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, Kind, error) {
	return attempt(r, r.writeChain, func(b Backend) (*types.InsertReceipt, error) {
		return b.Insert(ctx, memoryID, tag, content)
	})
}

// Search runs semantic search over a memory store.
func (r *Router) Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, Kind, error) {
	return attempt(r, r.searchChain, func(b Backend) ([]types.SearchResult, error) {
		return b.Search(ctx, memoryID, query, limit)
	})
}

// Commitment returns the current Merkle root for a memory store.
func (r *Router) Commitment(ctx context.Context, memoryID string) (*types.Commitment, Kind, error) {
	return attempt(r, r.localChain, func(b Backend) (*types.Commitment, error) {
		return b.Commitment(ctx, memoryID)
	})
}

// List returns all known memory store identifiers.
func (r *Router) List(ctx context.Context) ([]string, Kind, error) {
	return attempt(r, r.localChain, func(b Backend) ([]string, error) {
		return b.List(ctx)
	})
}

// attempt walks a chain in priority order. Per backend: skip without
// attempting when a previous first test failed; attempt otherwise; a
// Skip result moves on without touching health; the first completed
// attempt (success or failure) fixes the backend's health flags for the
// process lifetime. The terminal backend's answer is returned as-is.
func attempt[T any](r *Router, chain []Backend, call func(Backend) (T, error)) (T, Kind, error) {
	var zero T
	for i, b := range chain {
		last := i == len(chain)-1

		if !last && !r.health.Viable(b.Kind()) {
			continue
		}

		v, err := call(b)
		if errors.Is(err, ErrSkip) {
			if last {
				return zero, b.Kind(), fmt.Errorf("router: terminal backend skipped: %w", err)
			}
			continue
		}

		if !last {
			r.health.Record(b.Kind(), err == nil)
		}
		if err == nil {
			return v, b.Kind(), nil
		}
		if last {
			return zero, b.Kind(), err
		}
		log.Printf("router: %s backend failed, falling through: %v", b.Kind(), err)
	}
	return zero, KindLocal, errors.New("router: no backend configured")
}

// generateMemoryID derives a 16-character identifier from the store name,
// the identity and the current time, matching the canister-side scheme.
func generateMemoryID(name, identity string) string {
	seed := fmt.Sprintf("%s:%s:%s", name, identity, time.Now().UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
