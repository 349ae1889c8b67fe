package store

import (
	"strings"
	"sync"
)

// SessionIndex maps candidate ids to question session ids issued by the
// backend. Entries are never removed for the lifetime of the index.
type SessionIndex struct {
	mu       sync.RWMutex
	sessions map[int]string
}

func NewSessionIndex() *SessionIndex {
	return &SessionIndex{sessions: make(map[int]string)}
}

// Set records the session for the candidate. Empty ids are ignored so an entry
// can never be cleared.
func (i *SessionIndex) Set(candidateID int, sessionID string) bool {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.sessions[candidateID] = sessionID
	return true
}

// Merge records every non-empty entry of sessions.
func (i *SessionIndex) Merge(sessions map[int]string) {
	for id, session := range sessions {
		i.Set(id, session)
	}
}

func (i *SessionIndex) Lookup(candidateID int) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	session, ok := i.sessions[candidateID]
	return session, ok
}

func (i *SessionIndex) Has(candidateID int) bool {
	_, ok := i.Lookup(candidateID)
	return ok
}

func (i *SessionIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.sessions)
}
