// Package session keeps short conversational histories in process memory.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/platform/apperr"

	"github.com/google/uuid"
)

// MaxMessages is the number of messages a session retains.
const MaxMessages = 20

type entry struct {
	mu      sync.Mutex
	session domain.Session
	removed bool // set under mu once the entry left the map
}

// Store is safe for concurrent use. Each session has its own lock, so
// traffic on one session never waits for another.
type Store struct {
	entries sync.Map // session id -> *entry
	seq     atomic.Uint64
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// GetOrCreate returns the session when sessionID names one owned by the
// account. Any other id, including one owned by a different account, mints
// a fresh session.
func (s *Store) GetOrCreate(accountID uuid.UUID, sessionID, language string) domain.Session {
	if existing, ok := s.Get(sessionID); ok && existing.AccountID == accountID {
		return existing
	}

	now := s.now()
	sess := domain.Session{
		ID:        s.newID(accountID, now),
		AccountID: accountID,
		Language:  language,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.entries.Store(sess.ID, &entry{session: sess})
	return copySession(sess)
}

// newID is unique per call, even for two calls in the same millisecond.
func (s *Store) newID(accountID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", accountID, now.UnixMilli(), s.seq.Add(1))
}

// Get returns a copy of the session.
func (s *Store) Get(sessionID string) (domain.Session, bool) {
	v, ok := s.entries.Load(sessionID)
	if !ok {
		return domain.Session{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.Session{}, false
	}
	return copySession(e.session), true
}

// Append adds messages in order, then drops the oldest until at most
// MaxMessages remain.
func (s *Store) Append(sessionID string, messages ...domain.Message) error {
	v, ok := s.entries.Load(sessionID)
	if !ok {
		return apperr.NotFound("session not found")
	}
	return s.appendTo(v.(*entry), messages)
}

// appendTo fails for an entry that was pruned or cleared after it was
// loaded, rather than writing to a session nobody can read.
func (s *Store) appendTo(e *entry, messages []domain.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return apperr.NotFound("session not found")
	}

	msgs := append(e.session.Messages, messages...)
	if over := len(msgs) - MaxMessages; over > 0 {
		msgs = append([]domain.Message(nil), msgs[over:]...)
	}
	e.session.Messages = msgs
	e.session.UpdatedAt = s.now()
	return nil
}

// History returns the retained messages, oldest first.
func (s *Store) History(sessionID string) []domain.Message {
	sess, ok := s.Get(sessionID)
	if !ok {
		return nil
	}
	return sess.Messages
}

// Clear destroys the session. It reports whether one existed.
func (s *Store) Clear(sessionID string) bool {
	v, loaded := s.entries.LoadAndDelete(sessionID)
	if loaded {
		e := v.(*entry)
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
	return loaded
}

// Prune removes sessions idle for longer than idle and returns how many went.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	removed := 0
	s.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.session.UpdatedAt.Before(cutoff) && s.entries.CompareAndDelete(key, value) {
			e.removed = true
			removed++
		}
		return true
	})
	return removed
}

func copySession(s domain.Session) domain.Session {
	s.Messages = append([]domain.Message(nil), s.Messages...)
	return s
}
