package storage

import (
	"math"
	"sort"
	"strings"

	"github.com/kinic-labs/memgate/pkg/types"
)

// Similarity scoring bounds for the lexical search stand-in. The band
// keeps scores in the range a real embedding search over this corpus
// would produce, so callers see the same response shape either way.
const (
	baseSimilarity = 0.75
	maxSimilarity  = 0.98
	similaritySpan = 0.23
)

// Score computes the lexical similarity of a record against a query:
// the fraction of whitespace-delimited lowercased query terms that occur
// (as substrings) in the lowercased content or tag, mapped into
// [baseSimilarity, maxSimilarity] and rounded to 3 decimals.
// The second return value is false when no term matches; such records
// are excluded from results entirely.
func Score(query, content, tag string) (float64, bool) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0, false
	}

	loContent := strings.ToLower(content)
	loTag := strings.ToLower(tag)

	matched := 0
	for _, term := range terms {
		if strings.Contains(loContent, term) || strings.Contains(loTag, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0, false
	}

	sim := baseSimilarity + float64(matched)/float64(len(terms))*similaritySpan
	if sim > maxSimilarity {
		sim = maxSimilarity
	}
	return math.Round(sim*1000) / 1000, true
}

// Rank scores records against query, drops non-matches, sorts by
// similarity descending (ties keep insertion order) and truncates to
// limit. A limit <= 0 returns no results.
func Rank(records []types.MemoryRecord, query string, limit int) []types.SearchResult {
	if limit <= 0 {
		return nil
	}

	results := make([]types.SearchResult, 0, len(records))
	for _, rec := range records {
		sim, ok := Score(query, rec.Content, rec.Tag)
		if !ok {
			continue
		}
		results = append(results, types.SearchResult{
			Content:     rec.Content,
			Tag:         rec.Tag,
			Similarity:  sim,
			ContentHash: rec.ContentHash,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
