package usecase

import "docchat/internal/port"

// Workspace is the state one conversation works against: which session it
// belongs to, where its index is persisted and the index currently loaded.
type Workspace struct {
	SessionID string
	CacheDir  string

	// Index is nil until GetOrBuild has produced one.
	Index       port.VectorIndex
	IndexDigest string
}

// HasIndex reports whether an index is loaded.
func (ws *Workspace) HasIndex() bool {
	return ws != nil && ws.Index != nil
}
