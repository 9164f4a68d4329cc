package port

import (
	"context"

	"docchat/internal/domain"
)

// Embedder generates vector embeddings for text.
// Implementations must be deterministic for a fixed model configuration.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex is a built, searchable set of embedded chunks.
type VectorIndex interface {
	// Search returns at most k chunks ordered by descending similarity.
	Search(query []float32, k int) ([]domain.ScoredChunk, error)

	Len() int
	Dimension() int

	// Chunks and Vectors expose the index contents in build order,
	// chunk i corresponding to vector i.
	Chunks() []domain.Chunk
	Vectors() [][]float32
}

// IndexStore builds vector indexes from (chunk, vector) pairs.
type IndexStore interface {
	Build(chunks []domain.Chunk, vectors [][]float32) (VectorIndex, error)

	// Name identifies the backend; it is part of the build fingerprint.
	Name() string
}
