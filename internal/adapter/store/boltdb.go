package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"docchat/internal/domain"
)

var (
	bucketSessions = []byte("sessions")
	bucketTurns    = []byte("turns")
	bucketMeta     = []byte("meta")
)

// BoltStore keeps chat sessions and their conversation logs in one bbolt
// file. Each session's turns live in a nested bucket keyed by a big-endian
// sequence number, so iteration order is save order.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	s := &BoltStore{db: db, now: time.Now}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateSession adds a session. A blank name gets a generated
// "session_<hex>" name which doubles as the id.
func (s *BoltStore) CreateSession(name string) (domain.Session, error) {
	name = strings.TrimSpace(name)
	var sess domain.Session

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		id := newSessionID()
		for b.Get([]byte(id)) != nil {
			id = newSessionID()
		}
		if name == "" {
			name = id
		}
		if _, found, err := findByName(b, name); err != nil {
			return err
		} else if found {
			return fmt.Errorf("session %q: %w", name, domain.ErrAlreadyExists)
		}

		sess = domain.Session{ID: id, Name: name, CreatedAt: s.now().UTC()}
		return putSession(b, sess)
	})
	return sess, err
}

func (s *BoltStore) GetSession(id string) (domain.Session, error) {
	var sess domain.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		sess, err = getSession(tx.Bucket(bucketSessions), id)
		return err
	})
	return sess, err
}

// RenameSession gives a session a new name. A blank name keeps the current
// one; a name held by another session is rejected.
func (s *BoltStore) RenameSession(id, name string) (domain.Session, error) {
	name = strings.TrimSpace(name)
	var sess domain.Session

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		var err error
		sess, err = getSession(b, id)
		if err != nil {
			return err
		}
		if name == "" || name == sess.Name {
			return nil
		}
		if _, found, err := findByName(b, name); err != nil {
			return err
		} else if found {
			return fmt.Errorf("session %q: %w", name, domain.ErrAlreadyExists)
		}

		sess.Name = name
		return putSession(b, sess)
	})
	return sess, err
}

// ListSessions returns all sessions, oldest first.
func (s *BoltStore) ListSessions() ([]domain.Session, error) {
	var sessions []domain.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var sess domain.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("decode session %s: %w", k, err)
			}
			sessions = append(sessions, sess)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a session and its conversation log.
func (s *BoltStore) DeleteSession(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		turns := tx.Bucket(bucketTurns)
		if turns.Bucket([]byte(id)) != nil {
			return turns.DeleteBucket([]byte(id))
		}
		return nil
	})
}

type storedTurn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// SaveTurn appends one turn to a session's log.
func (s *BoltStore) SaveTurn(sessionID, role, text string) error {
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return fmt.Errorf("role %q: %w", role, domain.ErrInvalidInput)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSessions).Get([]byte(sessionID)) == nil {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}

		log, err := tx.Bucket(bucketTurns).CreateBucketIfNotExists([]byte(sessionID))
		if err != nil {
			return err
		}
		seq, err := log.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(storedTurn{Role: role, Content: text, At: s.now().UTC()})
		if err != nil {
			return err
		}
		return log.Put(seqKey(seq), data)
	})
}

// LoadHistory returns a session's turns in the order they were saved.
func (s *BoltStore) LoadHistory(sessionID string) ([]domain.Turn, error) {
	turns := []domain.Turn{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSessions).Get([]byte(sessionID)) == nil {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		log := tx.Bucket(bucketTurns).Bucket([]byte(sessionID))
		if log == nil {
			return nil
		}
		return log.ForEach(func(_, v []byte) error {
			var st storedTurn
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			turns = append(turns, domain.Turn{Role: st.Role, Text: st.Content, At: st.At})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

func newSessionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "session_" + hex[:6]
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func putSession(b *bbolt.Bucket, sess domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return b.Put([]byte(sess.ID), data)
}

func getSession(b *bbolt.Bucket, id string) (domain.Session, error) {
	var sess domain.Session
	data := b.Get([]byte(id))
	if data == nil {
		return sess, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err := json.Unmarshal(data, &sess); err != nil {
		return sess, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

func findByName(b *bbolt.Bucket, name string) (domain.Session, bool, error) {
	var (
		match domain.Session
		found bool
	)
	err := b.ForEach(func(k, v []byte) error {
		if found {
			return nil
		}
		var sess domain.Session
		if err := json.Unmarshal(v, &sess); err != nil {
			return fmt.Errorf("decode session %s: %w", k, err)
		}
		if sess.Name == name {
			match, found = sess, true
		}
		return nil
	})
	return match, found, err
}
