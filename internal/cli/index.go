package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docchat/internal/adapter/fs"
	"docchat/internal/domain"
	"docchat/internal/usecase"
)

var (
	indexRebuild bool
	indexWatch   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or reuse the document index",
	Long: `Build the vector index over the uploaded documents. The index is kept in
the cache directory and reused as long as the uploads and the build settings
are unchanged.

Examples:
  docchat index             # Reuse the index if it is fresh
  docchat index --rebuild   # Rebuild unconditionally
  docchat index --watch     # Keep the index current as uploads change`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "rebuild even if the index is fresh")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "watch the upload area and rebuild on changes")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var progress *stageProgress
	var onProgress usecase.ProgressFunc
	if term.IsTerminal(int(os.Stdout.Fd())) {
		progress = newStageProgress()
		onProgress = progress.update
	}

	a, err := newApp(ctx, onProgress)
	if err != nil {
		return err
	}
	ws := a.workspace("")

	build := func(force bool) error {
		files, err := a.sourceFiles()
		if err != nil {
			return err
		}
		fmt.Printf("Scanning %s... %d files\n", a.uploadsDir(), len(files))

		res, err := a.cache.GetOrBuild(ctx, ws, files, force)
		progress.finish()
		if err != nil && res == nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		printBuild(res, len(files), ws.CacheDir, err)
		return nil
	}

	if err := build(indexRebuild); err != nil {
		return err
	}
	if !indexWatch {
		return nil
	}

	if err := os.MkdirAll(a.uploadsDir(), 0755); err != nil {
		return err
	}
	fmt.Printf("\nWatching %s for changes. Press Ctrl-C to stop.\n", a.uploadsDir())
	watcher := fs.NewWatcher(a.uploadsDir(), 0, log)
	return watcher.Watch(ctx, func() {
		fmt.Println()
		if err := build(false); err != nil {
			log.Error("rebuild failed", "error", err)
		}
	})
}

func printBuild(res *usecase.BuildResult, files int, cacheDir string, persistErr error) {
	switch res.Outcome {
	case usecase.OutcomeReused:
		fmt.Printf("\nIndex is up to date (%d chunks).\n", res.Chunks)
	case usecase.OutcomeEmpty:
		fmt.Printf("\nNothing to index: no extractable text in %d files.\n", files)
	default:
		fmt.Printf("\nIndexing complete (%s):\n", res.Reason)
		fmt.Printf("  Files:          %d\n", len(res.Snapshot.Files))
		fmt.Printf("  Files skipped:  %d\n", len(res.Skipped))
		fmt.Printf("  Chunks created: %d\n", res.Chunks)
		fmt.Printf("  Fingerprint:    %s\n", res.Snapshot.Fingerprint)
	}
	printSkipped(res.Skipped)

	if persistErr != nil {
		fmt.Printf("\nWarning: %v\n", persistErr)
		return
	}
	if res.Outcome == usecase.OutcomeRebuilt {
		fmt.Printf("\nIndex stored at: %s\n", cacheDir)
	}
}

func printSkipped(skipped []domain.SkippedFile) {
	if len(skipped) == 0 {
		return
	}
	fmt.Printf("\nSkipped:\n")
	for _, sf := range skipped {
		fmt.Printf("  - %s: %s\n", filepath.Base(sf.Path), sf.Reason)
	}
}

var stageLabels = map[string]string{
	"load":  "Loading",
	"embed": "Embedding",
}

// stageProgress shows one progress bar per build stage.
type stageProgress struct {
	mu      sync.Mutex
	stage   string
	bar     *progressbar.ProgressBar
	started time.Time
}

func newStageProgress() *stageProgress {
	return &stageProgress{}
}

func (p *stageProgress) update(stage string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := stageLabels[stage]
	if label == "" {
		label = stage
	}

	if p.bar == nil || stage != p.stage {
		if p.bar != nil {
			p.bar.Finish()
		}
		p.stage = stage
		p.started = time.Now()
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", label)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	p.bar.Set(done)

	if done > 0 && done < total {
		elapsed := time.Since(p.started)
		rate := float64(done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			p.bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
		}
	}
}

// finish closes the current bar. It is safe on a nil receiver.
func (p *stageProgress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && !p.bar.IsFinished() {
		p.bar.Finish()
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
