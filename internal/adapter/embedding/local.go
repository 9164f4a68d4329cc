package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"docchat/internal/adapter/analyzer"
)

const DefaultLocalDimension = 512

// LocalEmbedder is an offline embedder using feature hashing. Word tokens
// and character trigrams are hashed into a fixed number of buckets and the
// result is L2-normalised, so cosine similarity reflects shared vocabulary.
// Weights are never negative, so any text with a non-space character maps
// to a non-zero vector.
type LocalEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &LocalEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

// word features outweigh trigram features
const (
	wordWeight    = 1.0
	trigramWeight = 0.35
)

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float64, e.dimension)

	for _, tok := range e.tokenizer.Tokenize(text) {
		e.add(vec, "w:"+tok, wordWeight)
	}
	for _, gram := range analyzer.Trigrams(text) {
		e.add(vec, "g:"+gram, trigramWeight)
	}

	return normalize(vec)
}

func (e *LocalEmbedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	vec[sum%uint64(e.dimension)] += weight
}

func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func (e *LocalEmbedder) ModelName() string {
	return "local-hashing-v1"
}
