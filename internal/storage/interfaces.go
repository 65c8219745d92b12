// Package storage defines the contract every memory store engine
// implements, together with the hashing scheme that makes stores
// content-addressed.
//
// Store operations are total: an unknown memoryID behaves like an empty
// store rather than producing a not-found error. The backend router relies
// on this to guarantee that the terminal local backend can always answer.
package storage

import (
	"context"

	"github.com/kinic-labs/memgate/pkg/types"
)

// Store provides the memory-store operations served by the local
// emulation layer. Implementations must preserve insertion order per
// memoryID and serialize concurrent inserts to the same memoryID so that
// the Merkle root is computed over a consistent snapshot.
type Store interface {
	// Create idempotently (re)initializes an empty record sequence and
	// metadata for memoryID.
	Create(ctx context.Context, memoryID, name, description string) error

	// Insert appends a record, auto-creating the store if absent, and
	// returns the content hash, embedding hash and the new Merkle root.
	Insert(ctx context.Context, memoryID, tag, content string) (*types.InsertReceipt, error)

	// Search scores every record in the store against the query and
	// returns up to limit results, best first. Records with no matching
	// query term are excluded.
	Search(ctx context.Context, memoryID, query string, limit int) ([]types.SearchResult, error)

	// Commitment returns the current Merkle root, record count and last
	// update time for memoryID. Unknown or empty stores yield the
	// degenerate all-zero root with a count of zero.
	Commitment(ctx context.Context, memoryID string) (*types.Commitment, error)

	// List returns the identifiers of all stores created or written in
	// this process lifetime, in no particular order.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
