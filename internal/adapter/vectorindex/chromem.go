package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docchat/internal/domain"
	"docchat/internal/port"
)

const collectionName = "chunks"

// ChromemStore builds indexes backed by an in-memory chromem-go collection.
type ChromemStore struct{}

func NewChromemStore() *ChromemStore {
	return &ChromemStore{}
}

func (s *ChromemStore) Name() string {
	return "chromem"
}

// errNoEmbeddingFunc guards against chromem embedding text itself; every
// document and query arrives with its vector.
var errNoEmbeddingFunc = errors.New("chromem index: embeddings must be precomputed")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (s *ChromemStore) Build(chunks []domain.Chunk, vectors [][]float32) (port.VectorIndex, error) {
	dim, err := checkInput(chunks, vectors)
	if err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		if norm(vectors[i]) == 0 {
			return nil, fmt.Errorf("zero vector for chunk %s", ch.ID)
		}
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   ch.Text,
			Embedding: append([]float32(nil), vectors[i]...),
		}
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(context.Background(), docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("add documents: %w", err)
		}
	}

	return &ChromemIndex{
		collection: col,
		chunks:     append([]domain.Chunk(nil), chunks...),
		vectors:    vectors,
		dimension:  dim,
	}, nil
}

// ChromemIndex keeps the original chunks and vectors alongside the collection
// so it can be persisted like any other index.
type ChromemIndex struct {
	collection *chromem.Collection
	chunks     []domain.Chunk
	vectors    [][]float32
	dimension  int
}

func (x *ChromemIndex) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	n := x.collection.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", x.dimension, len(query))
	}
	if norm(query) == 0 {
		return nil, fmt.Errorf("query vector is zero")
	}
	if k > n {
		k = n
	}

	results, err := x.collection.QueryEmbedding(context.Background(), append([]float32(nil), query...), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		i, err := strconv.Atoi(r.ID)
		if err != nil || i < 0 || i >= len(x.chunks) {
			return nil, fmt.Errorf("unknown document id %q in collection", r.ID)
		}
		out = append(out, domain.ScoredChunk{Chunk: x.chunks[i], Score: float64(r.Similarity)})
	}
	return out, nil
}

func (x *ChromemIndex) Len() int               { return len(x.chunks) }
func (x *ChromemIndex) Dimension() int         { return x.dimension }
func (x *ChromemIndex) Chunks() []domain.Chunk { return x.chunks }
func (x *ChromemIndex) Vectors() [][]float32   { return x.vectors }
