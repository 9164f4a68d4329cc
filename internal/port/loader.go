package port

import "docchat/internal/domain"

// Loader extracts raw text documents from one source file.
type Loader interface {
	Load(path string) ([]domain.Document, error)
	Kind() domain.DocumentKind
}

// DocumentLoader extracts documents from any supported file.
type DocumentLoader interface {
	Load(path string) ([]domain.Document, error)
}
