package domain

import "time"

// SourceFile describes one source file at a point in time.
// Identity is Path; the other fields are what staleness compares.
type SourceFile struct {
	Path    string `json:"path"`
	ModTime int64  `json:"mod_time"` // unix nanoseconds
	Size    int64  `json:"size"`
	Digest  string `json:"digest,omitempty"` // sha256 of the content
}

// Snapshot is the state of the source files captured when an index was built.
type Snapshot struct {
	Fingerprint string                `json:"fingerprint"`
	IndexDigest string                `json:"index_digest"`
	Chunks      int                   `json:"chunks"`
	CreatedAt   time.Time             `json:"created_at"`
	Files       map[string]SourceFile `json:"files"`
}

// DocumentKind names the extraction capability that produced a document.
type DocumentKind string

const (
	KindPlainText    DocumentKind = "plain-text"
	KindTabular      DocumentKind = "tabular"
	KindPageDocument DocumentKind = "page-document"
	KindGeneric      DocumentKind = "generic"
)

// Document is raw text extracted from a source file. Page is 1-based for
// page-oriented formats and sheets, 0 when the format has no pages.
type Document struct {
	Source string
	Page   int
	Kind   DocumentKind
	Text   string
}

type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
	Offset int    `json:"offset"` // character offset within the document
	Index  int    `json:"index"`  // position in the chunk sequence
	Text   string `json:"text"`
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of a conversation log.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"content"`
	At   time.Time `json:"at"`
}

type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SkippedFile records a source that contributed nothing to a build.
type SkippedFile struct {
	Path   string
	Reason string
}
