package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"docchat/internal/domain"
	"docchat/internal/port"
)

var _ port.FileWalker = (*Walker)(nil)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(rel), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_IncludeExclude(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b.txt", "a.pdf", "sub/c.md", ".hidden", ".git/config", "sub/~$lock.docx"} {
		touch(t, root, rel)
	}

	w := NewWalker([]string{"**/*"}, []string{"**/.*", "**/.*/**", "**/~$*"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	var got []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		got = append(got, filepath.ToSlash(rel))
		if f.Size == 0 || f.ModTime == 0 {
			t.Errorf("missing size or mtime for %s", rel)
		}
	}
	want := []string{"a.pdf", "b.txt", "sub/c.md"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalker_Includes(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.txt")
	touch(t, root, "b.csv")

	paths, err := NewWalker([]string{"**/*.csv"}, nil).Paths(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "b.csv" {
		t.Errorf("unexpected paths %v", paths)
	}
	if !filepath.IsAbs(paths[0]) {
		t.Errorf("expected absolute path, got %s", paths[0])
	}
}

func TestWalker_MissingRoot(t *testing.T) {
	files, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files, got %d", len(files))
	}
}

func TestStager_Stage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewStager(dir)

	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\notes.txt`, "notes.txt"},
	}

	for _, tt := range tests {
		path, err := s.Stage(tt.name, strings.NewReader("bytes of "+tt.want))
		if err != nil {
			t.Fatalf("Stage(%q) failed: %v", tt.name, err)
		}
		if filepath.Base(path) != tt.want || filepath.Dir(path) != dir {
			t.Errorf("Stage(%q) = %s", tt.name, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "bytes of "+tt.want {
			t.Errorf("content not written verbatim: %q", data)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("expected 3 staged files and no temp leftovers, got %d", len(entries))
	}
}

func TestStager_InvalidName(t *testing.T) {
	s := NewStager(t.TempDir())
	for _, name := range []string{"", "dir/", "..", "  "} {
		if _, err := s.Stage(name, strings.NewReader("x")); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Stage(%q): expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestStager_Remove(t *testing.T) {
	s := NewStager(t.TempDir())
	if _, err := s.Stage("a.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("a.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove("a.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create", fsnotify.Event{Name: "/u/a.txt", Op: fsnotify.Create}, true},
		{"write", fsnotify.Event{Name: "/u/a.txt", Op: fsnotify.Write}, true},
		{"remove", fsnotify.Event{Name: "/u/a.txt", Op: fsnotify.Remove}, true},
		{"rename", fsnotify.Event{Name: "/u/a.txt", Op: fsnotify.Rename}, true},
		{"chmod", fsnotify.Event{Name: "/u/a.txt", Op: fsnotify.Chmod}, false},
		{"staging temp file", fsnotify.Event{Name: "/u/.upload-123", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.ev); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

func TestWatcher_CoalescesChanges(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	s := NewStager(dir)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if _, err := s.Stage(name, strings.NewReader(name)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatcher_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	w := NewWatcher(dir, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() {})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("upload area should exist, stat error: %v", err)
	}
}
