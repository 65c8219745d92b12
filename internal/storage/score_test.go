package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		content string
		tag     string
		want    float64
		matched bool
	}{
		{"single term full match", "hello", "hello world", "t", 0.98, true},
		{"case insensitive", "HELLO", "say Hello", "t", 0.98, true},
		{"substring match", "ell", "hello", "t", 0.98, true},
		{"tag match", "greeting", "hello", "greeting", 0.98, true},
		{"one of three", "quick missing nothere", "the quick fox", "t", 0.827, true},
		{"two of three", "quick fox nothere", "the quick fox", "t", 0.903, true},
		{"no match", "zzz", "hello world", "t", 0, false},
		{"empty query", "", "hello", "t", 0, false},
		{"whitespace query", "   ", "hello", "t", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := Score(tt.query, tt.content, tt.tag)
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChainRoot(t *testing.T) {
	assert.Equal(t, strings.Repeat("0", 64), ChainRoot(nil))
	assert.Equal(t, EmptyRoot, ChainRoot([]string{}))

	h1 := HashContent("a")
	h2 := HashContent("b")

	// Order sensitivity.
	assert.NotEqual(t, ChainRoot([]string{h1, h2}), ChainRoot([]string{h2, h1}))
	// Determinism.
	assert.Equal(t, ChainRoot([]string{h1, h2}), ChainRoot([]string{h1, h2}))
	assert.Len(t, ChainRoot([]string{h1}), 64)
}

func TestHashHelpers(t *testing.T) {
	assert.Len(t, HashContent("hello"), 64)
	assert.NotEqual(t, HashContent("hello"), HashEmbedding("hello"))
	// The embedding hash commits to the synthetic embed string, not the
	// raw content.
	assert.Equal(t, HashContent("embed:hello"), HashEmbedding("hello"))
}
