package port

import "docchat/internal/domain"

// HistoryStore is the per-session conversation log.
type HistoryStore interface {
	SaveTurn(sessionID, role, text string) error

	// LoadHistory returns the turns of a session in the order they were saved.
	LoadHistory(sessionID string) ([]domain.Turn, error)
}

// SessionStore keeps the list of named chat sessions.
type SessionStore interface {
	CreateSession(name string) (domain.Session, error)

	GetSession(id string) (domain.Session, error)

	RenameSession(id, name string) (domain.Session, error)

	ListSessions() ([]domain.Session, error)

	DeleteSession(id string) error
}

// ChatStore is a store that keeps both sessions and their history.
type ChatStore interface {
	HistoryStore
	SessionStore
	Close() error
}
