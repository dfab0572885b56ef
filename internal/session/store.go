package session

import "errors"

// ErrNotFound signals a lookup for a session id not present in the store.
var ErrNotFound = errors.New("session not found")

// Store is an ordered in-memory collection of sessions, newest first.
// It has no deletion operation; the whole store is dropped on process exit.
//
// Store is not safe for concurrent use on its own; the Controller
// serializes all access to it.
type Store struct {
	sessions []*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Insert prepends a session so the most recent one is always first.
func (st *Store) Insert(s *Session) {
	st.sessions = append([]*Session{s}, st.sessions...)
}

// FindByID does a linear scan for the given id.
func (st *Store) FindByID(id string) (*Session, error) {
	for _, s := range st.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

// Recent returns up to n sessions from the front of the store.
func (st *Store) Recent(n int) []*Session {
	if n <= 0 || n > len(st.sessions) {
		n = len(st.sessions)
	}
	out := make([]*Session, n)
	copy(out, st.sessions[:n])
	return out
}

// All returns every stored session, newest first.
func (st *Store) All() []*Session {
	out := make([]*Session, len(st.sessions))
	copy(out, st.sessions)
	return out
}

// Len reports the number of stored sessions.
func (st *Store) Len() int { return len(st.sessions) }

// Reset drops all sessions.
func (st *Store) Reset() { st.sessions = nil }
