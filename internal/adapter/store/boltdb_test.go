package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"docchat/internal/domain"
	"docchat/internal/port"
)

var _ port.ChatStore = (*BoltStore)(nil)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewBoltStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_CreateSession(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.CreateSession("")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !strings.HasPrefix(sess.ID, "session_") || len(sess.ID) != len("session_")+6 {
		t.Errorf("unexpected generated id %q", sess.ID)
	}
	if sess.Name != sess.ID {
		t.Errorf("generated session should be named by its id, got %q", sess.Name)
	}

	named, err := s.CreateSession("Research")
	if err != nil {
		t.Fatal(err)
	}
	if named.Name != "Research" {
		t.Errorf("unexpected name %q", named.Name)
	}

	if _, err := s.CreateSession("Research"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestBoltStore_RenameSession(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.CreateSession("alpha")
	if _, err := s.CreateSession("beta"); err != nil {
		t.Fatal(err)
	}

	renamed, err := s.RenameSession(a.ID, "Paris Chat")
	if err != nil {
		t.Fatalf("RenameSession failed: %v", err)
	}
	if renamed.Name != "Paris Chat" || renamed.ID != a.ID {
		t.Errorf("unexpected rename result %+v", renamed)
	}

	kept, err := s.RenameSession(a.ID, "   ")
	if err != nil {
		t.Fatalf("blank rename failed: %v", err)
	}
	if kept.Name != "Paris Chat" {
		t.Errorf("blank rename should keep the name, got %q", kept.Name)
	}

	if _, err := s.RenameSession(a.ID, "beta"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := s.RenameSession("session_nope", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBoltStore_History(t *testing.T) {
	s := newTestStore(t)
	sess, _ := s.CreateSession("")

	history, err := s.LoadHistory(sess.ID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}

	// more than 255 turns checks that key order is numeric, not lexical
	for i := 0; i < 300; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if err := s.SaveTurn(sess.ID, role, strings.Repeat("x", i)); err != nil {
			t.Fatalf("SaveTurn %d failed: %v", i, err)
		}
	}

	history, err = s.LoadHistory(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 300 {
		t.Fatalf("expected 300 turns, got %d", len(history))
	}
	for i, turn := range history {
		if len(turn.Text) != i {
			t.Fatalf("turn %d out of order (text length %d)", i, len(turn.Text))
		}
	}
	if history[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected role %q", history[1].Role)
	}
}

func TestBoltStore_SaveTurnErrors(t *testing.T) {
	s := newTestStore(t)
	sess, _ := s.CreateSession("")

	if err := s.SaveTurn(sess.ID, "system", "x"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := s.SaveTurn("session_nope", domain.RoleUser, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoadHistory("session_nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBoltStore_ListAndDelete(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, _ := s.CreateSession("first")
	second, _ := s.CreateSession("second")
	if err := s.SaveTurn(first.ID, domain.RoleUser, "hello"); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("unexpected list order: %+v", list)
	}

	if err := s.DeleteSession(first.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := s.GetSession(first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSession(first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	list, _ = s.ListSessions()
	if len(list) != 1 {
		t.Errorf("expected 1 session left, got %d", len(list))
	}
}

func TestBoltStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	sess, _ := s.CreateSession("kept")
	if err := s.SaveTurn(sess.ID, domain.RoleUser, "remember me"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	history, err := s.LoadHistory(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Text != "remember me" {
		t.Errorf("history not persisted: %+v", history)
	}
}

func TestMigrate_Version(t *testing.T) {
	s := newTestStore(t)

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != CurrentSchemaVersion {
		t.Errorf("expected schema v%d, got v%d", CurrentSchemaVersion, v)
	}
}

func TestMigrate_NewerDatabaseRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		data, _ := json.Marshal(CurrentSchemaVersion + 1)
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := NewBoltStore(path); err == nil {
		t.Error("expected error opening a newer database")
	}
}
