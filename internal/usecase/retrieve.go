package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docchat/internal/adapter/cache"
	"docchat/internal/adapter/chunker"
	"docchat/internal/domain"
	"docchat/internal/logger"
	"docchat/internal/port"
)

// RetrieveUseCase handles search and retrieval operations.
type RetrieveUseCase struct {
	embedder          port.Embedder
	cache             *cache.QueryCache
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
	log               *slog.Logger
}

// NewRetrieveUseCase creates a new retrieve use case. queryCache may be nil.
func NewRetrieveUseCase(
	embedder port.Embedder,
	queryCache *cache.QueryCache,
	minScoreThreshold float64,
	log *slog.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:          embedder,
		cache:             queryCache,
		minScoreThreshold: minScoreThreshold,
		log:               logger.OrDefault(log),
	}
}

// Search returns at most k chunks of index ordered by descending similarity
// to query.
func (u *RetrieveUseCase) Search(ctx context.Context, index port.VectorIndex, query string, k int) ([]domain.ScoredChunk, error) {
	if index == nil {
		return nil, domain.ErrIndexUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if index.Len() == 0 {
		return nil, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	results, err := index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}
	return results, nil
}

// SearchWorkspace searches the index loaded in ws. Results are cached per
// index digest when a query cache is configured.
func (u *RetrieveUseCase) SearchWorkspace(ctx context.Context, ws *Workspace, query string, k int) ([]domain.ScoredChunk, error) {
	if !ws.HasIndex() {
		return nil, domain.ErrIndexUnavailable
	}

	cacheable := u.cache != nil && ws.IndexDigest != ""
	if cacheable {
		if hit, ok := u.cache.Get(ws.IndexDigest, query, k); ok {
			u.log.Debug("query cache hit", "k", k)
			return hit, nil
		}
	}

	results, err := u.Search(ctx, ws.Index, query, k)
	if err != nil {
		return nil, err
	}
	if cacheable {
		u.cache.Put(ws.IndexDigest, query, k, results)
	}
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.ScoredChunk) []domain.ScoredChunk {
	filtered := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ScoredChunkResult is a simplified result for CLI output.
type ScoredChunkResult struct {
	Source string  `json:"source"`
	Page   int     `json:"page,omitempty"`
	Offset int     `json:"offset"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// ToResults converts scored chunks to CLI results. previewLen > 0 shortens
// the text.
func ToResults(chunks []domain.ScoredChunk, previewLen int) []ScoredChunkResult {
	results := make([]ScoredChunkResult, len(chunks))
	for i, sc := range chunks {
		text := sc.Chunk.Text
		if previewLen > 0 {
			text = chunker.Preview(text, previewLen)
		}
		results[i] = ScoredChunkResult{
			Source: sc.Chunk.Source,
			Page:   sc.Chunk.Page,
			Offset: sc.Chunk.Offset,
			Score:  sc.Score,
			Text:   text,
		}
	}
	return results
}
