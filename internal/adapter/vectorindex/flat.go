// Package vectorindex provides the in-memory index backends that the cache
// manager builds from embedded chunks.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"docchat/internal/domain"
	"docchat/internal/port"
)

// FlatStore builds FlatIndex values.
type FlatStore struct{}

func NewFlatStore() *FlatStore {
	return &FlatStore{}
}

func (s *FlatStore) Name() string {
	return "flat"
}

func (s *FlatStore) Build(chunks []domain.Chunk, vectors [][]float32) (port.VectorIndex, error) {
	dim, err := checkInput(chunks, vectors)
	if err != nil {
		return nil, err
	}

	idx := &FlatIndex{
		chunks:    append([]domain.Chunk(nil), chunks...),
		vectors:   make([][]float32, len(vectors)),
		norms:     make([]float64, len(vectors)),
		dimension: dim,
	}
	for i, v := range vectors {
		idx.vectors[i] = append([]float32(nil), v...)
		idx.norms[i] = norm(v)
	}
	return idx, nil
}

// FlatIndex answers queries by brute-force cosine similarity. It is immutable
// once built and safe for concurrent use.
type FlatIndex struct {
	chunks    []domain.Chunk
	vectors   [][]float32
	norms     []float64
	dimension int
}

// Search finds the k nearest chunks to the query. Equal scores keep build order.
func (x *FlatIndex) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(x.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", x.dimension, len(query))
	}

	qn := norm(query)
	scores := make([]domain.ScoredChunk, len(x.chunks))
	for i := range x.chunks {
		scores[i] = domain.ScoredChunk{
			Chunk: x.chunks[i],
			Score: cosine(query, qn, x.vectors[i], x.norms[i]),
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

func (x *FlatIndex) Len() int               { return len(x.chunks) }
func (x *FlatIndex) Dimension() int         { return x.dimension }
func (x *FlatIndex) Chunks() []domain.Chunk { return x.chunks }
func (x *FlatIndex) Vectors() [][]float32   { return x.vectors }

// checkInput validates a build and returns the common vector dimension.
func checkInput(chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("empty vector for chunk %s", chunks[0].ID)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("vector dimension mismatch at %d: expected %d, got %d", i, dim, len(v))
		}
	}
	return dim, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
