package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"docchat/config"
	"docchat/internal/adapter/artifact"
	"docchat/internal/domain"
	"docchat/internal/logger"
	"docchat/internal/port"
)

// Outcome says how GetOrBuild produced its result.
type Outcome string

const (
	OutcomeReused  Outcome = "reused"
	OutcomeRebuilt Outcome = "rebuilt"
	OutcomeEmpty   Outcome = "empty"
)

// Reasons a persisted index is not reused.
const (
	ReasonForced          = "forced"
	ReasonNoSnapshot      = "no snapshot"
	ReasonSnapshotBad     = "snapshot unreadable"
	ReasonSnapshotVersion = "unsupported snapshot version"
	ReasonSettings        = "build settings changed"
	ReasonSourcesChanged  = "source files changed"
	ReasonIndexMissing    = "index missing"
	ReasonIndexBad        = "index unreadable"
	ReasonDigestMismatch  = "index digest mismatch"
)

const reasonNoText = "no extractable text"

// ProgressFunc receives build progress per stage ("load", "embed").
type ProgressFunc func(stage string, done, total int)

// BuildResult contains the result of GetOrBuild.
type BuildResult struct {
	Index    port.VectorIndex
	Outcome  Outcome
	Reason   string
	Snapshot *domain.Snapshot
	Skipped  []domain.SkippedFile
	Chunks   int
}

// CacheStatus describes a persisted index without loading it.
type CacheStatus struct {
	Fresh    bool
	Reason   string
	Snapshot *domain.Snapshot
	Current  map[string]domain.SourceFile
}

// IndexCacheOptions carries the settings that shape a build.
type IndexCacheOptions struct {
	ChunkSize       int
	ChunkOverlap    int
	BatchSize       int
	ChangeDetection string
	Logger          *slog.Logger
	Progress        ProgressFunc
}

// IndexCache returns a vector index over a set of source files, reusing the
// persisted one when nothing that shaped it has changed and rebuilding it
// otherwise. It assumes a single writer per cache directory.
type IndexCache struct {
	loader   port.DocumentLoader
	chunker  port.Chunker
	embedder port.Embedder
	store    port.IndexStore

	settings  artifact.BuildSettings
	strict    bool
	batchSize int
	log       *slog.Logger
	progress  ProgressFunc
	now       func() time.Time
}

// NewIndexCache creates a new index cache.
func NewIndexCache(
	loader port.DocumentLoader,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.IndexStore,
	opts IndexCacheOptions,
) *IndexCache {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 64
	}
	return &IndexCache{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		settings: artifact.BuildSettings{
			ChunkSize:      opts.ChunkSize,
			ChunkOverlap:   opts.ChunkOverlap,
			EmbedModel:     embedder.ModelName(),
			EmbedDimension: embedder.Dimension(),
			Backend:        store.Name(),
		},
		strict:    opts.ChangeDetection != config.ChangeDetectionMtime,
		batchSize: batch,
		log:       logger.OrDefault(opts.Logger),
		progress:  opts.Progress,
		now:       time.Now,
	}
}

// Fingerprint returns the fingerprint of the current build settings.
func (c *IndexCache) Fingerprint() string {
	return artifact.Fingerprint(c.settings)
}

// GetOrBuild returns an index over the files that exist among files. On
// success the index is also stored in ws. When no file yields any text the
// outcome is OutcomeEmpty with a nil index and nil error, and nothing is
// persisted. If the index is built but cannot be persisted, the result is
// returned together with an error wrapping domain.ErrCacheWrite.
func (c *IndexCache) GetOrBuild(ctx context.Context, ws *Workspace, files []string, force bool) (*BuildResult, error) {
	if ws == nil {
		return nil, fmt.Errorf("%w: workspace is required", domain.ErrInvalidInput)
	}
	current := c.describe(files)
	pair := artifact.NewPairStore(ws.CacheDir)

	reason := ReasonForced
	if !force {
		check := c.check(pair, current, true)
		if check.fresh {
			c.log.Info("index reused", "chunks", check.index.Len(), "files", len(current))
			ws.Index, ws.IndexDigest = check.index, check.snapshot.IndexDigest
			return &BuildResult{
				Index:    check.index,
				Outcome:  OutcomeReused,
				Snapshot: check.snapshot,
				Chunks:   check.index.Len(),
			}, nil
		}
		reason = check.reason
	}

	c.log.Info("rebuilding index", "reason", reason, "files", len(current))
	if err := pair.Invalidate(); err != nil {
		c.log.Warn("could not remove stale index", "error", err)
	}
	ws.Index, ws.IndexDigest = nil, ""

	return c.build(ctx, ws, pair, current, reason)
}

// Status reports whether the persisted index would be reused for files,
// without loading or changing anything. A cache directory that exists but
// cannot be inspected is an error; a missing one is reported as ReasonNoSnapshot.
func (c *IndexCache) Status(ws *Workspace, files []string) (*CacheStatus, error) {
	if ws == nil {
		return nil, fmt.Errorf("%w: workspace is required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(ws.CacheDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to inspect cache dir: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cache dir %s is not a directory", ws.CacheDir)
	}

	current := c.describe(files)
	check := c.check(artifact.NewPairStore(ws.CacheDir), current, false)
	return &CacheStatus{
		Fresh:    check.fresh,
		Reason:   check.reason,
		Snapshot: check.snapshot,
		Current:  current,
	}, nil
}

// Invalidate removes the persisted index and unloads it from ws.
func (c *IndexCache) Invalidate(ws *Workspace) error {
	ws.Index, ws.IndexDigest = nil, ""
	return artifact.NewPairStore(ws.CacheDir).Invalidate()
}

type checkResult struct {
	fresh    bool
	reason   string
	snapshot *domain.Snapshot
	index    port.VectorIndex
}

// check decides whether the persisted pair matches current. With load set it
// also decodes and builds the index, and any failure there is a reason too.
func (c *IndexCache) check(pair *artifact.PairStore, current map[string]domain.SourceFile, load bool) checkResult {
	snapBlob, err := pair.ReadSnapshot()
	if errors.Is(err, fs.ErrNotExist) {
		return checkResult{reason: ReasonNoSnapshot}
	}
	if err != nil {
		c.log.Warn("snapshot unreadable", "error", err)
		return checkResult{reason: ReasonSnapshotBad}
	}

	snap, err := artifact.DecodeSnapshot(snapBlob)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedVersion) {
			c.log.Warn("snapshot version not supported", "error", err)
			return checkResult{reason: ReasonSnapshotVersion}
		}
		c.log.Warn("snapshot unreadable", "error", err)
		return checkResult{reason: ReasonSnapshotBad}
	}

	res := checkResult{snapshot: snap}
	if snap.Fingerprint != c.Fingerprint() {
		res.reason = ReasonSettings
		return res
	}
	if !c.sameFiles(snap.Files, current) {
		res.reason = ReasonSourcesChanged
		return res
	}

	indexBlob, err := pair.ReadIndex()
	if errors.Is(err, fs.ErrNotExist) {
		res.reason = ReasonIndexMissing
		return res
	}
	if err != nil {
		c.log.Warn("index unreadable", "error", err)
		res.reason = ReasonIndexBad
		return res
	}
	if artifact.Digest(indexBlob) != snap.IndexDigest {
		res.reason = ReasonDigestMismatch
		return res
	}
	if !load {
		res.fresh = true
		return res
	}

	data, err := artifact.DecodeIndex(indexBlob)
	if err != nil {
		c.log.Warn("index unreadable", "error", err)
		res.reason = ReasonIndexBad
		return res
	}
	idx, err := c.store.Build(data.Chunks, data.Vectors)
	if err != nil {
		c.log.Warn("index unreadable", "error", err)
		res.reason = ReasonIndexBad
		return res
	}

	res.fresh = true
	res.index = idx
	return res
}

func (c *IndexCache) build(ctx context.Context, ws *Workspace, pair *artifact.PairStore, current map[string]domain.SourceFile, reason string) (*BuildResult, error) {
	result := &BuildResult{Outcome: OutcomeEmpty, Reason: reason}

	paths := make([]string, 0, len(current))
	for p := range current {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var docs []domain.Document
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := c.loader.Load(path)
		switch {
		case err != nil:
			c.log.Warn("skipping file", "path", path, "error", err)
			result.Skipped = append(result.Skipped, domain.SkippedFile{Path: path, Reason: err.Error()})
		case len(loaded) == 0:
			c.log.Debug("skipping file", "path", path, "reason", reasonNoText)
			result.Skipped = append(result.Skipped, domain.SkippedFile{Path: path, Reason: reasonNoText})
		default:
			docs = append(docs, loaded...)
		}
		c.report("load", i+1, len(paths))
	}

	chunks := c.chunker.Chunk(docs)
	if len(chunks) == 0 {
		c.log.Info("nothing to index", "files", len(paths), "skipped", len(result.Skipped))
		return result, nil
	}

	vectors, err := c.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	idx, err := c.store.Build(chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	snap := &domain.Snapshot{
		Fingerprint: c.Fingerprint(),
		Chunks:      len(chunks),
		CreatedAt:   c.now().UTC(),
		Files:       current,
	}
	result.Index = idx
	result.Outcome = OutcomeRebuilt
	result.Snapshot = snap
	result.Chunks = len(chunks)
	ws.Index = idx

	err = pair.WritePair(&artifact.IndexData{
		Backend:   c.store.Name(),
		Model:     c.embedder.ModelName(),
		Dimension: idx.Dimension(),
		Chunks:    chunks,
		Vectors:   vectors,
	}, snap)
	if err != nil {
		c.log.Error("index built but not persisted", "dir", pair.Dir(), "error", err)
		return result, fmt.Errorf("%w: %v", domain.ErrCacheWrite, err)
	}
	ws.IndexDigest = snap.IndexDigest

	c.log.Info("index rebuilt", "chunks", len(chunks), "files", len(paths), "skipped", len(result.Skipped))
	return result, nil
}

func (c *IndexCache) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += c.batchSize {
		end := start + c.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i, ch := range chunks[start:end] {
			texts[i] = ch.Text
		}

		batch, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
		c.report("embed", end, len(chunks))
	}
	return vectors, nil
}

func (c *IndexCache) report(stage string, done, total int) {
	if c.progress != nil {
		c.progress(stage, done, total)
	}
}

// describe captures the current state of the files that exist. Paths are
// made absolute and deduplicated; directories and missing files are left out.
func (c *IndexCache) describe(files []string) map[string]domain.SourceFile {
	current := make(map[string]domain.SourceFile, len(files))
	for _, f := range files {
		path, err := filepath.Abs(f)
		if err != nil {
			path = filepath.Clean(f)
		}
		if _, seen := current[path]; seen {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.log.Warn("cannot stat source file", "path", path, "error", err)
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		sf := domain.SourceFile{Path: path, ModTime: info.ModTime().UnixNano(), Size: info.Size()}
		if c.strict {
			digest, err := fileDigest(path)
			if err != nil {
				c.log.Warn("cannot read source file", "path", path, "error", err)
				continue
			}
			sf.Digest = digest
		}
		current[path] = sf
	}
	return current
}

func (c *IndexCache) sameFiles(recorded, current map[string]domain.SourceFile) bool {
	if len(recorded) != len(current) {
		return false
	}
	for path, cur := range current {
		old, ok := recorded[path]
		if !ok || old.ModTime != cur.ModTime {
			return false
		}
		if c.strict && (old.Size != cur.Size || old.Digest != cur.Digest) {
			return false
		}
	}
	return true
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
