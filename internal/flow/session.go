// Package flow owns the per-chat conversation state machine that walks a
// user from free text to a site, a category, and finally a composed search
// URL read from the catalog.
package flow

import (
	"sync"
	"time"
)

// State enumerates the conversation phases a session can be in.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingSite       State = "awaiting_site"
	StateAwaitingCategory   State = "awaiting_category"
	StateAwaitingQuery      State = "awaiting_query"
	StateSearching          State = "searching"
	StateAwaitingMenuChoice State = "awaiting_menu_choice"
)

// Session is one chat's conversation position. Fields are only touched via
// Sessions.Update, under the repository lock.
type Session struct {
	ChatID           string
	State            State
	SelectedSite     string
	SelectedCategory string
	PendingQuery     string
	UpdatedAt        time.Time
}

func (s *Session) clearSelection() {
	s.SelectedSite = ""
	s.SelectedCategory = ""
	s.PendingQuery = ""
}

// Sessions is the session repository. One coarse lock serializes all field
// access; updates are small in-memory mutations so the lock is never held
// across I/O.
type Sessions struct {
	mu sync.Mutex
	m  map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{m: map[string]*Session{}}
}

// Update runs fn against the chat's session, creating an idle session on
// first contact. All mutation goes through here.
func (r *Sessions) Update(chatID string, fn func(s *Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[chatID]
	if !ok {
		s = &Session{ChatID: chatID, State: StateIdle}
		r.m[chatID] = s
	}
	fn(s)
	s.UpdatedAt = time.Now()
}

// Peek returns a copy of the chat's session for inspection.
func (r *Sessions) Peek(chatID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[chatID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Reset drops the chat back to a fresh idle session.
func (r *Sessions) Reset(chatID string) {
	r.Update(chatID, func(s *Session) {
		s.State = StateIdle
		s.clearSelection()
	})
}
