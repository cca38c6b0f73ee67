package bot

import (
	"sync"
	"time"
)

// SessionState enumerates where a conversation stands in the two-image cycle.
// Idle is represented by the absence of a session.
type SessionState int

const (
	StateAwaitingFirstImage SessionState = iota + 1
	StateAwaitingSecondImage
)

// Session is the per-chat conversational state between /start and its
// natural end. It only ever references the user id; everything persistent
// lives in the sheets.
type Session struct {
	UserID           int64
	State            SessionState
	FirstImagePath   string
	SecondImagePath  string
	LastUpdated      time.Time
}

// SessionManager holds sessions keyed by user id. Updates are dispatched on
// separate goroutines, so handlers serialize per user through Lock/Unlock;
// sm.mu only protects the maps themselves.
type SessionManager struct {
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Lock serializes update handling for one user. A photo arriving while a
// generation is still in flight waits here instead of driving the same
// session through the state machine a second time.
func (sm *SessionManager) Lock(userID int64) {
	sm.mu.Lock()
	l, ok := sm.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		sm.locks[userID] = l
	}
	sm.mu.Unlock()
	l.Lock()
}

func (sm *SessionManager) Unlock(userID int64) {
	sm.mu.RLock()
	l := sm.locks[userID]
	sm.mu.RUnlock()
	l.Unlock()
}

func (sm *SessionManager) Set(userID int64, session *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session.LastUpdated = time.Now()
	sm.sessions[userID] = session
}

func (sm *SessionManager) Get(userID int64) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[userID]
	return session, ok
}

func (sm *SessionManager) Clear(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}
