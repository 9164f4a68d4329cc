package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrIndexUnavailable is returned when a query is made without a built index.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	ErrEmptyQuery = errors.New("empty query")

	// ErrUnsupportedVersion indicates a persisted artifact written in a format
	// this build does not understand.
	ErrUnsupportedVersion = errors.New("unsupported artifact version")

	// ErrCorruptArtifact indicates a persisted artifact that could not be decoded.
	ErrCorruptArtifact = errors.New("corrupt artifact")

	// ErrCacheWrite indicates the index was built but could not be persisted.
	ErrCacheWrite = errors.New("cache write failed")

	ErrLLMUnavailable = errors.New("language model unavailable")
)
