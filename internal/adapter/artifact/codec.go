// Package artifact persists a built index together with the snapshot of the
// sources it was built from. Both are versioned JSON envelopes; the snapshot
// carries the digest of the index bytes so a mismatched pair is detectable.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"docchat/internal/domain"
)

const (
	IndexFormat    = "docchat-index"
	SnapshotFormat = "docchat-snapshot"

	// FormatVersion is the only envelope version this build reads or writes.
	// Increment it when making breaking changes to either artifact.
	FormatVersion = 1
)

// IndexData is the persisted form of a vector index.
type IndexData struct {
	Backend   string
	Model     string
	Dimension int
	Chunks    []domain.Chunk
	Vectors   [][]float32
}

type header struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
}

type indexEnvelope struct {
	header
	Backend   string       `json:"backend"`
	Model     string       `json:"model"`
	Dimension int          `json:"dimension"`
	Entries   []indexEntry `json:"entries"`
}

type indexEntry struct {
	Chunk  domain.Chunk `json:"chunk"`
	Vector []float32    `json:"vector"`
}

type snapshotEnvelope struct {
	header
	Snapshot domain.Snapshot `json:"snapshot"`
}

// EncodeIndex serializes an index.
func EncodeIndex(d *IndexData) ([]byte, error) {
	if len(d.Chunks) != len(d.Vectors) {
		return nil, fmt.Errorf("encode index: %d chunks but %d vectors", len(d.Chunks), len(d.Vectors))
	}
	env := indexEnvelope{
		header:    header{Format: IndexFormat, Version: FormatVersion},
		Backend:   d.Backend,
		Model:     d.Model,
		Dimension: d.Dimension,
		Entries:   make([]indexEntry, len(d.Chunks)),
	}
	for i := range d.Chunks {
		env.Entries[i] = indexEntry{Chunk: d.Chunks[i], Vector: d.Vectors[i]}
	}
	return json.Marshal(env)
}

// DecodeIndex parses an index blob. It fails with domain.ErrUnsupportedVersion
// for a foreign format or version and domain.ErrCorruptArtifact otherwise.
func DecodeIndex(data []byte) (*IndexData, error) {
	if err := checkHeader(data, IndexFormat); err != nil {
		return nil, err
	}

	var env indexEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: index: %v", domain.ErrCorruptArtifact, err)
	}

	d := &IndexData{
		Backend:   env.Backend,
		Model:     env.Model,
		Dimension: env.Dimension,
		Chunks:    make([]domain.Chunk, len(env.Entries)),
		Vectors:   make([][]float32, len(env.Entries)),
	}
	for i, e := range env.Entries {
		if len(e.Vector) != env.Dimension {
			return nil, fmt.Errorf("%w: index entry %d has dimension %d, header says %d",
				domain.ErrCorruptArtifact, i, len(e.Vector), env.Dimension)
		}
		d.Chunks[i] = e.Chunk
		d.Vectors[i] = e.Vector
	}
	return d, nil
}

// EncodeSnapshot serializes a snapshot.
func EncodeSnapshot(s *domain.Snapshot) ([]byte, error) {
	return json.Marshal(snapshotEnvelope{
		header:   header{Format: SnapshotFormat, Version: FormatVersion},
		Snapshot: *s,
	})
}

// DecodeSnapshot parses a snapshot blob, with the same errors as DecodeIndex.
func DecodeSnapshot(data []byte) (*domain.Snapshot, error) {
	if err := checkHeader(data, SnapshotFormat); err != nil {
		return nil, err
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", domain.ErrCorruptArtifact, err)
	}
	if env.Snapshot.Files == nil {
		env.Snapshot.Files = make(map[string]domain.SourceFile)
	}
	return &env.Snapshot, nil
}

func checkHeader(data []byte, format string) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
	}
	if h.Format != format {
		return fmt.Errorf("%w: format %q, expected %q", domain.ErrUnsupportedVersion, h.Format, format)
	}
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: %s version %d, expected %d", domain.ErrUnsupportedVersion, format, h.Version, FormatVersion)
	}
	return nil
}

// Digest returns the hex SHA-256 of an artifact blob.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BuildSettings are the parameters that shape a built index. Changing any of
// them makes a persisted index stale.
type BuildSettings struct {
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	EmbedModel     string `json:"embed_model"`
	EmbedDimension int    `json:"embed_dimension"`
	Backend        string `json:"backend"`
}

// Fingerprint hashes the build settings together with the artifact format
// version.
func Fingerprint(s BuildSettings) string {
	relevant := struct {
		BuildSettings
		FormatVersion int `json:"format_version"`
	}{s, FormatVersion}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
