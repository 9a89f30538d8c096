// Package search implements the HybridSearcher: reciprocal rank fusion
// of vector similarity hits and keyword (BM25/tsvector) hits.
package search

import "github.com/katanaquant/ragengine/internal/domain"

// DefaultK0 is the RRF smoothing constant used across the industry
// (Azure AI Search, OpenSearch) absent an explicit override.
const DefaultK0 = 60

// fuse combines vector and keyword result lists with Reciprocal Rank
// Fusion: score(c) = 1/(k0+r_v(c)) + 1/(k0+r_k(c)), where a chunk
// missing from one list contributes 0 for that term. Results are
// sorted by score descending, then by chunk ID ascending to break
// ties deterministically.
func fuse(vector, keyword []domain.SearchResult, k0 int, topK int) []domain.SearchResult {
	if k0 <= 0 {
		k0 = DefaultK0
	}

	type entry struct {
		result domain.SearchResult
		score  float64
	}
	byID := make(map[int64]*entry, len(vector)+len(keyword))

	order := make([]int64, 0, len(vector)+len(keyword))
	get := func(r domain.SearchResult) *entry {
		e, ok := byID[r.ChunkID]
		if !ok {
			e = &entry{result: r}
			byID[r.ChunkID] = e
			order = append(order, r.ChunkID)
		}
		return e
	}

	for rank, r := range vector {
		e := get(r)
		e.score += 1.0 / float64(k0+rank+1)
	}
	for rank, r := range keyword {
		e := get(r)
		e.score += 1.0 / float64(k0+rank+1)
	}

	fused := make([]domain.SearchResult, 0, len(order))
	for _, id := range order {
		e := byID[id]
		e.result.Score = e.score
		fused = append(fused, e.result)
	}

	sortByScoreDesc(fused)

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

func sortByScoreDesc(results []domain.SearchResult) {
	// insertion sort is fine: result sets are bounded by top_k*K, a
	// few hundred entries at most.
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && less(results[j], results[j-1]) {
			results[j], results[j-1] = results[j-1], results[j]
			j--
		}
	}
}

// less reports whether a should sort before b: higher score first,
// then lower chunk ID for a stable, deterministic order.
func less(a, b domain.SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ChunkID < b.ChunkID
}
