package memstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/domain"
)

// MemoryStore is an in-memory session and conversation store with the same
// semantics as the bbolt store. Useful for tests and one-shot commands.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	turns    map[string][]domain.Turn
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		turns:    make(map[string][]domain.Turn),
		now:      time.Now,
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) CreateSession(name string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newSessionID()
	for {
		if _, taken := s.sessions[id]; !taken {
			break
		}
		id = newSessionID()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}
	if s.nameTaken(name) {
		return domain.Session{}, fmt.Errorf("session %q: %w", name, domain.ErrAlreadyExists)
	}

	sess := domain.Session{ID: id, Name: name, CreatedAt: s.now().UTC()}
	s.sessions[id] = sess
	return sess, nil
}

func (s *MemoryStore) GetSession(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

func (s *MemoryStore) RenameSession(id, name string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	name = strings.TrimSpace(name)
	if name == "" || name == sess.Name {
		return sess, nil
	}
	if s.nameTaken(name) {
		return domain.Session{}, fmt.Errorf("session %q: %w", name, domain.ErrAlreadyExists)
	}

	sess.Name = name
	s.sessions[id] = sess
	return sess, nil
}

func (s *MemoryStore) ListSessions() ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	delete(s.sessions, id)
	delete(s.turns, id)
	return nil
}

func (s *MemoryStore) SaveTurn(sessionID, role, text string) error {
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return fmt.Errorf("role %q: %w", role, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	s.turns[sessionID] = append(s.turns[sessionID], domain.Turn{Role: role, Text: text, At: s.now().UTC()})
	return nil
}

func (s *MemoryStore) LoadHistory(sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return append([]domain.Turn{}, s.turns[sessionID]...), nil
}

// nameTaken must be called with the lock held.
func (s *MemoryStore) nameTaken(name string) bool {
	for _, sess := range s.sessions {
		if sess.Name == name {
			return true
		}
	}
	return false
}

func newSessionID() string {
	return "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
