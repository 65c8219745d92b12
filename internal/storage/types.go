package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// EmptyRoot is the Merkle root of a store with no records.
const EmptyRoot = "0000000000000000000000000000000000000000000000000000000000000000"

// HashContent returns the sha256 hex digest of content. It is the
// content address of a record.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HashEmbedding returns the embedding commitment for content: the sha256
// hex digest of a synthetic "embed:" string. It stands in for a
// zkML-verified embedding hash.
func HashEmbedding(content string) string {
	sum := sha256.Sum256([]byte("embed:" + content))
	return hex.EncodeToString(sum[:])
}

// ChainRoot computes the Merkle root emulation over an ordered sequence
// of content hashes: the sha256 hex digest of their concatenation. The
// root is order-sensitive and changes on every append. An empty sequence
// yields EmptyRoot.
func ChainRoot(contentHashes []string) string {
	if len(contentHashes) == 0 {
		return EmptyRoot
	}
	sum := sha256.Sum256([]byte(strings.Join(contentHashes, "")))
	return hex.EncodeToString(sum[:])
}
