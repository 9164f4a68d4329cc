package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"docchat/internal/domain"
)

const (
	IndexFile    = "index.json"
	SnapshotFile = "snapshot.json"
)

// PairStore reads and writes the index/snapshot pair in one cache directory.
// It assumes a single writer per directory.
type PairStore struct {
	dir string
}

func NewPairStore(dir string) *PairStore {
	return &PairStore{dir: dir}
}

func (p *PairStore) Dir() string          { return p.dir }
func (p *PairStore) IndexPath() string    { return filepath.Join(p.dir, IndexFile) }
func (p *PairStore) SnapshotPath() string { return filepath.Join(p.dir, SnapshotFile) }

// ReadSnapshot returns the raw snapshot blob. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func (p *PairStore) ReadSnapshot() ([]byte, error) {
	return os.ReadFile(p.SnapshotPath())
}

// ReadIndex returns the raw index blob.
func (p *PairStore) ReadIndex() ([]byte, error) {
	return os.ReadFile(p.IndexPath())
}

// WritePair persists index and snapshot. The snapshot's IndexDigest is set to
// the digest of the encoded index. Files are replaced atomically, the index
// first and the snapshot last, so an interrupted write leaves either no
// snapshot or one bound to the exact index bytes on disk.
func (p *PairStore) WritePair(index *IndexData, snap *domain.Snapshot) error {
	indexBlob, err := EncodeIndex(index)
	if err != nil {
		return err
	}
	snap.IndexDigest = Digest(indexBlob)
	snapBlob, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := writeFileAtomic(p.dir, IndexFile, indexBlob); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeFileAtomic(p.dir, SnapshotFile, snapBlob); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Invalidate removes the pair, snapshot first. Missing files are not errors.
func (p *PairStore) Invalidate() error {
	for _, path := range []string{p.SnapshotPath(), p.IndexPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("invalidate cache: %w", err)
		}
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
