// Package embedding turns text into fixed-length vectors for canister
// queries. The default implementation is a deterministic keyword
// hash-scatter embedder; it is not a semantic model, but it produces
// stable unit vectors of the dimensionality the Kinic canister expects,
// which is all the query path requires. The function is replaceable —
// only the signature is part of the contract.
package embedding

import (
	"crypto/sha256"
	"math"
	"strings"
)

// Dim is the vector dimensionality the Kinic canister operates on.
const Dim = 1024

// Func maps text to a fixed-length numeric vector.
type Func func(text string) []float32

// Keyword returns a hash-scatter embedding of text: each lowercased
// whitespace-delimited word is sha256-hashed and scattered into the
// vector, which is then L2-normalized. Identical text always yields an
// identical vector.
func Keyword(text string) []float32 {
	return KeywordDim(text, Dim)
}

// KeywordDim is Keyword with an explicit dimensionality, used by tests
// and by stores configured for other vector widths.
func KeywordDim(text string, dim int) []float32 {
	vec := make([]float32, dim)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := sha256.Sum256([]byte(word))
		n := 32
		if dim < n {
			n = dim
		}
		for i := 0; i < n; i++ {
			idx := (int(h[i%len(h)]) + i*37) % dim
			vec[idx] += 0.1
		}
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if mag := math.Sqrt(sumSq); mag > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / mag)
		}
	}
	return vec
}
