package fs

import (
	"context"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"docchat/internal/logger"
)

// Watcher reports changes to the upload area. Bursts of events, such as a
// file being written in several parts, are coalesced into one notification.
type Watcher struct {
	dir      string
	debounce time.Duration
	log      *slog.Logger
}

func NewWatcher(dir string, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{dir: dir, debounce: debounce, log: logger.OrDefault(log)}
}

// Watch calls onChange after each burst of relevant events until ctx is
// done. Directories created while watching are watched too. A missing
// upload area is created first.
func (w *Watcher) Watch(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	err = filepath.WalkDir(w.dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.dir && isHidden(path) {
				return filepath.SkipDir
			}
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) && !isHidden(ev.Name) {
				if err := fw.Add(ev.Name); err != nil {
					w.log.Warn("cannot watch directory", "path", ev.Name, "error", err)
				}
			}
			if !relevant(ev) {
				continue
			}
			w.log.Debug("upload area changed", "path", ev.Name, "op", ev.Op.String())
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}

// relevant reports whether ev can change the set of indexed files.
// Permission changes and hidden files, including staging temp files, are not.
func relevant(ev fsnotify.Event) bool {
	if isHidden(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
