package usecase

import (
	"errors"
	"fmt"
	"strings"

	"docchat/internal/domain"
	"docchat/internal/port"
)

// SessionUseCase manages chat sessions. Sessions are referred to by id or
// by name.
type SessionUseCase struct {
	store port.ChatStore
}

func NewSessionUseCase(store port.ChatStore) *SessionUseCase {
	return &SessionUseCase{store: store}
}

// New creates a session. An empty name gets a generated one.
func (u *SessionUseCase) New(name string) (domain.Session, error) {
	return u.store.CreateSession(strings.TrimSpace(name))
}

// List returns all sessions, oldest first.
func (u *SessionUseCase) List() ([]domain.Session, error) {
	return u.store.ListSessions()
}

func (u *SessionUseCase) Rename(ref, name string) (domain.Session, error) {
	sess, err := u.Resolve(ref)
	if err != nil {
		return domain.Session{}, err
	}
	return u.store.RenameSession(sess.ID, name)
}

func (u *SessionUseCase) History(ref string) (domain.Session, []domain.Turn, error) {
	sess, err := u.Resolve(ref)
	if err != nil {
		return domain.Session{}, nil, err
	}
	turns, err := u.store.LoadHistory(sess.ID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	return sess, turns, nil
}

func (u *SessionUseCase) Delete(ref string) error {
	sess, err := u.Resolve(ref)
	if err != nil {
		return err
	}
	return u.store.DeleteSession(sess.ID)
}

// Resolve finds a session by id, then by name.
func (u *SessionUseCase) Resolve(ref string) (domain.Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Session{}, fmt.Errorf("%w: empty session reference", domain.ErrInvalidInput)
	}

	sess, err := u.store.GetSession(ref)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, err
	}

	all, err := u.store.ListSessions()
	if err != nil {
		return domain.Session{}, err
	}
	for _, s := range all {
		if s.Name == ref {
			return s, nil
		}
	}
	return domain.Session{}, fmt.Errorf("session %q: %w", ref, domain.ErrNotFound)
}

// Ensure resolves ref, or with an empty ref returns the most recent session,
// creating one when there is none.
func (u *SessionUseCase) Ensure(ref string) (domain.Session, error) {
	if strings.TrimSpace(ref) != "" {
		return u.Resolve(ref)
	}

	all, err := u.store.ListSessions()
	if err != nil {
		return domain.Session{}, err
	}
	if len(all) > 0 {
		return all[len(all)-1], nil
	}
	return u.store.CreateSession("")
}
