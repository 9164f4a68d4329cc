package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docchat/config"
	"docchat/internal/adapter/cache"
	"docchat/internal/adapter/chunker"
	"docchat/internal/adapter/embedding"
	"docchat/internal/adapter/fs"
	"docchat/internal/adapter/llm"
	"docchat/internal/adapter/loader"
	"docchat/internal/adapter/store"
	"docchat/internal/adapter/vectorindex"
	"docchat/internal/port"
	"docchat/internal/usecase"
)

const queryCacheTTL = 10 * time.Minute

// app holds the components shared by the commands of one invocation.
type app struct {
	cfg      *config.Config
	root     string
	embedder port.Embedder
	cache    *usecase.IndexCache
	retrieve *usecase.RetrieveUseCase
}

// newApp wires the indexing and retrieval components from the config.
// progress may be nil.
func newApp(ctx context.Context, progress usecase.ProgressFunc) (*app, error) {
	cfg := GetConfig()

	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	indexStore, err := vectorindex.New(cfg.Index.Backend)
	if err != nil {
		return nil, err
	}

	chk := chunker.NewTextChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	indexCache := usecase.NewIndexCache(loader.NewSelector(), chk, embedder, indexStore, usecase.IndexCacheOptions{
		ChunkSize:       chk.Size(),
		ChunkOverlap:    chk.Overlap(),
		BatchSize:       cfg.Embedding.BatchSize,
		ChangeDetection: cfg.Cache.ChangeDetection,
		Logger:          log,
		Progress:        progress,
	})

	var queryCache *cache.QueryCache
	if cfg.Retrieve.CacheEntries > 0 {
		queryCache = cache.NewQueryCache(cfg.Retrieve.CacheEntries, queryCacheTTL)
	}

	return &app{
		cfg:      cfg,
		root:     GetRootDir(),
		embedder: embedder,
		cache:    indexCache,
		retrieve: usecase.NewRetrieveUseCase(embedder, queryCache, cfg.Retrieve.MinScoreThreshold, log),
	}, nil
}

func (a *app) uploadsDir() string {
	return config.Resolve(a.root, a.cfg.Uploads.Dir)
}

// sourceFiles lists the files currently in the upload area.
func (a *app) sourceFiles() ([]string, error) {
	walker := fs.NewWalker(a.cfg.Uploads.Includes, a.cfg.Uploads.Excludes)
	files, err := walker.Paths(a.uploadsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to scan uploads: %w", err)
	}
	return files, nil
}

func (a *app) workspace(sessionID string) *usecase.Workspace {
	return &usecase.Workspace{
		SessionID: sessionID,
		CacheDir:  config.Resolve(a.root, a.cfg.Cache.Dir),
	}
}

// load returns ws with the index over the current uploads, building it if
// it is stale. A failure to persist is reported but not fatal.
func (a *app) load(ctx context.Context, ws *usecase.Workspace) (*usecase.BuildResult, error) {
	files, err := a.sourceFiles()
	if err != nil {
		return nil, err
	}
	res, err := a.cache.GetOrBuild(ctx, ws, files, false)
	if err != nil {
		if res == nil {
			return nil, err
		}
		log.Warn("index is in memory only", "error", err)
	}
	return res, nil
}

func (a *app) newAsk(ctx context.Context, chat port.ChatStore) (*usecase.AskUseCase, error) {
	model, err := llm.New(ctx, a.cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}
	return usecase.NewAskUseCase(a.retrieve, model, chat, usecase.AskOptions{
		TopK:         a.cfg.Retrieve.TopK,
		HistoryTurns: a.cfg.Chat.HistoryTurns,
		Logger:       log,
	})
}

// openChatStore opens the session database. Opening migrates its schema.
func openChatStore() (*store.BoltStore, error) {
	root := GetRootDir()
	if err := config.EnsureDataDir(root); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := config.Resolve(root, GetConfig().Chat.DB)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat store: %w", err)
	}
	return st, nil
}
