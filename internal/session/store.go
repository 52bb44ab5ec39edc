// Package session holds per-user pending-transaction state. Each user
// has at most one live session; replacing or clearing it is destructive
// and final, no history is retained.
package session

import (
	"sync"

	"github.com/danuarif/duitbot/pkg/api"
)

// State is the position of a user's session in the confirmation flow.
type State int

const (
	// Idle means no pending session exists; it is never stored.
	Idle State = iota
	// AwaitingConfirmation means a complete record is waiting for the
	// user to confirm, cancel, or request a correction.
	AwaitingConfirmation
	// AwaitingCorrection means the user is mid-edit of the category or
	// account field.
	AwaitingCorrection
)

// Session is the single pending transaction for one user.
type Session struct {
	UserID      string
	Transaction *api.Transaction
	// OriginalText is present only for free-text-sourced transactions.
	OriginalText string
	State        State
}

// Store is an in-memory session map with per-user mutual exclusion. The
// map guard protects the bookkeeping; the per-user locks serialize whole
// events (message, button press, webhook) so no two events for the same
// user ever interleave. Different users proceed concurrently.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-user event lock and returns its release func.
// Callers hold it for the full handling of one event.
func (s *Store) Lock(userID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the user's session, or nil when the user is Idle.
func (s *Store) Get(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// Put installs a session for the user, replacing any prior one. Last
// write wins; the previous pending transaction is discarded entirely.
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// Delete clears the user's session and reports whether one existed.
func (s *Store) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	delete(s.sessions, userID)
	return ok
}

// StateOf returns the user's current state, Idle when no session exists.
func (s *Store) StateOf(userID string) State {
	if sess := s.Get(userID); sess != nil {
		return sess.State
	}
	return Idle
}
