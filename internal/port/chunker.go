package port

import "docchat/internal/domain"

type Chunker interface {
	Chunk(docs []domain.Document) []domain.Chunk
}
