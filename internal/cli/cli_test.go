package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docchat/internal/adapter/artifact"
	"docchat/internal/adapter/store"
)

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	rootCmd.SetArgs(append([]string{"--dir", dir, "--log-level", "error"}, args...))
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("docchat %v: %v", args, err)
	}
}

func TestUploadAndIndex(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "france.txt")
	if err := os.WriteFile(src, []byte("The capital of France is Paris."), 0644); err != nil {
		t.Fatal(err)
	}

	run(t, dir, "upload", src)
	if _, err := os.Stat(filepath.Join(dir, "uploads", "france.txt")); err != nil {
		t.Fatalf("file not staged: %v", err)
	}

	run(t, dir, "index")
	for _, name := range []string{artifact.IndexFile, artifact.SnapshotFile} {
		if _, err := os.Stat(filepath.Join(dir, ".docchat", "cache", name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	run(t, dir, "status")
	run(t, dir, "query", "-q", "capital of France", "--json")
}

func TestSessionCommands(t *testing.T) {
	dir := t.TempDir()

	run(t, dir, "session", "new", "Travel")
	run(t, dir, "session", "rename", "Travel", "Trips", "2026")

	st, err := store.NewBoltStore(filepath.Join(dir, ".docchat", "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := st.ListSessions()
	st.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Name != "Trips 2026" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}

	run(t, dir, "session", "delete", "Trips 2026")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestSourceLabel(t *testing.T) {
	if got := sourceLabel("/up/report.pdf", 3); got != "report.pdf p.3" {
		t.Errorf("got %q", got)
	}
	if got := sourceLabel("/up/notes.txt", 0); got != "notes.txt" {
		t.Errorf("got %q", got)
	}
}
