// Package kinic wraps the higher-level Kinic SDK behind a narrow handle
// interface. Handles are cached per (identity, routing-mode) key; the SDK
// itself is an external collaborator reached through an HTTP bridge.
package kinic

import (
	"context"
	"fmt"

	"github.com/kinic-labs/memgate/pkg/types"
)

// Handle is the SDK surface the router depends on. Each method may fail
// with a *SdkError carrying the underlying message.
type Handle interface {
	// Create provisions a new memory canister.
	Create(ctx context.Context, name, description string) (*types.CreateResult, error)

	// InsertMarkdown inserts tagged text into a memory and returns the
	// proof-bearing receipt.
	InsertMarkdown(ctx context.Context, memoryID, tag, text string) (*types.InsertReceipt, error)

	// Search performs semantic search over a memory.
	Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error)

	// List returns the identifiers of all memories owned by the identity.
	List(ctx context.Context) ([]string, error)
}

// SdkError wraps a failure from the underlying SDK with the operation
// that produced it.
type SdkError struct {
	Op  string
	Err error
}

func (e *SdkError) Error() string {
	return fmt.Sprintf("kinic sdk: %s: %v", e.Op, e.Err)
}

func (e *SdkError) Unwrap() error { return e.Err }
