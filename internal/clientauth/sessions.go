package clientauth

import (
	"sync"
	"time"
)

// Session is the server-side state bound to a client access token.
// Sessions live only in memory and are lost on process restart.
type Session struct {
	Token        string    `json:"token"`
	SubmissionID string    `json:"submission_id"`
	Email        string    `json:"email"`
	IP           string    `json:"ip"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	Expires      time.Time `json:"expires"`
	Used         bool      `json:"used"`
}

// ExpiredAt reports whether the session is expired at the given time.
// The expiry deadline itself counts as expired.
func (s Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.Expires)
}

// SessionStore holds sessions keyed by token. Implementations must be safe
// for concurrent use.
type SessionStore interface {
	Get(token string) (Session, bool)
	Set(token string, session Session)
	Delete(token string)
	Sweep(now time.Time) int
}

// NewMemorySessionStore returns a mutex-guarded in-memory session store.
func NewMemorySessionStore() SessionStore {
	return &memorySessions{sessions: make(map[string]Session)}
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func (m *memorySessions) Get(token string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	return session, ok
}

func (m *memorySessions) Set(token string, session Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = session
}

func (m *memorySessions) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *memorySessions) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, session := range m.sessions {
		if session.ExpiredAt(now) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed
}
