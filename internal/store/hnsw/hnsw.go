// Package hnsw wraps coder/hnsw's pure-Go approximate nearest
// neighbor graph behind a string-keyed, cosine-distance vector index,
// the shape the embedded backend's vec_chunks table needs. Deletions
// are lazy (the backing graph library has no stable delete for the
// last remaining node), so Count and AllIDs consult the ID map, not
// the graph's internal node count.
package hnsw

import (
	"fmt"
	"math"
	"sync"

	coderhnsw "github.com/coder/hnsw"
)

// Settings mirrors spec §4.5's ANN index parameters.
type Settings struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultSettings returns M=16, ef_construction=64, ef_search=64.
func DefaultSettings() Settings {
	return Settings{M: 16, EfConstruction: 64, EfSearch: 64}
}

// Result is one nearest-neighbor hit.
type Result struct {
	ID       string
	Distance float32
}

// Index is a cosine-distance ANN index over string-identified vectors.
type Index struct {
	mu     sync.RWMutex
	graph  *coderhnsw.Graph[uint64]
	dim    int
	idMap  map[string]uint64
	keyMap map[uint64]string
	next   uint64
}

// New builds an empty index for vectors of the given dimension.
func New(dim int, settings Settings) *Index {
	graph := coderhnsw.NewGraph[uint64]()
	graph.Distance = coderhnsw.CosineDistance
	graph.M = settings.M
	graph.EfSearch = settings.EfSearch
	graph.Ml = 0.25 // default level generation factor (~1/ln(M))

	return &Index{
		graph:  graph,
		dim:    dim,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts or replaces the vector for id.
func (idx *Index) Add(id string, vector []float32) error {
	if len(vector) != idx.dim {
		return fmt.Errorf("hnsw: dimension mismatch: want %d, got %d", idx.dim, len(vector))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if oldKey, exists := idx.idMap[id]; exists {
		delete(idx.keyMap, oldKey)
	}

	key := idx.next
	idx.next++

	normalized := normalize(vector)
	idx.graph.Add(coderhnsw.MakeNode(key, normalized))
	idx.idMap[id] = key
	idx.keyMap[key] = id
	return nil
}

// Delete orphans id's key; the vector stays in the graph but is
// filtered out of search results and Count/AllIDs.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if key, ok := idx.idMap[id]; ok {
		delete(idx.idMap, id)
		delete(idx.keyMap, key)
	}
}

// Search returns the k nearest neighbors to query, live IDs only.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("hnsw: dimension mismatch: want %d, got %d", idx.dim, len(query))
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	normalized := normalize(query)
	neighbors := idx.graph.Search(normalized, k)

	out := make([]Result, 0, len(neighbors))
	for _, n := range neighbors {
		id, ok := idx.keyMap[n.Key]
		if !ok {
			// Lazily-deleted node still resident in the graph.
			continue
		}
		out = append(out, Result{ID: id, Distance: idx.graph.Distance(normalized, n.Value)})
	}
	return out, nil
}

func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.idMap[id]
	return ok
}

// AllIDs returns every live (non-orphaned) vector ID currently in the
// index.
func (idx *Index) AllIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.idMap))
	for id := range idx.idMap {
		ids = append(ids, id)
	}
	return ids
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}
	return out
}
