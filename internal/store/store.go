// Package store keeps the in-memory candidate collection shared by the console.
//
// All mutation goes through ReplaceAll and Patch. Each mutation bumps the store
// version, which derived views use as their cache key.
package store

import (
	"sync"
	"time"

	"github.com/spigell/candidate-console/internal/recruiting"
)

// Recorder receives mutation events. metrics.Metrics implements it.
type Recorder interface {
	StoreMutation(op string)
}

// CandidatePatch names the fields to merge into a candidate. Nil fields are
// left untouched.
type CandidatePatch struct {
	Score         *float64
	HasTranscript *bool
	IsOnline      *bool
	OnlineStatus  *string
	LastActivity  *time.Time
}

func (p CandidatePatch) empty() bool {
	return p.Score == nil && p.HasTranscript == nil && p.IsOnline == nil &&
		p.OnlineStatus == nil && p.LastActivity == nil
}

// Snapshot is an immutable copy of the store at a given version.
type Snapshot struct {
	Version    uint64
	Candidates []recruiting.Candidate
}

type Store struct {
	mu         sync.RWMutex
	version    uint64
	candidates []recruiting.Candidate
	index      map[int]int

	subMu       sync.Mutex
	subscribers map[int]chan uint64
	nextSub     int

	recorder Recorder
}

func New(recorder Recorder) *Store {
	return &Store{
		index:       make(map[int]int),
		subscribers: make(map[int]chan uint64),
		recorder:    recorder,
	}
}

// ReplaceAll installs a fresh collection. It is the only operation that may
// remove or reorder candidates.
func (s *Store) ReplaceAll(candidates []recruiting.Candidate) {
	fresh := make([]recruiting.Candidate, len(candidates))
	index := make(map[int]int, len(candidates))
	for i, c := range candidates {
		fresh[i] = c.Clone()
		index[c.ID] = i
	}

	s.mu.Lock()
	s.candidates = fresh
	s.index = index
	s.version++
	s.notify(s.version)
	s.mu.Unlock()

	s.record("replace_all")
}

// Patch merges the given fields into the candidate with the id. An unknown id
// is not an error: the candidate may have been dropped by a concurrent refresh.
func (s *Store) Patch(id int, patch CandidatePatch) bool {
	if patch.empty() {
		return false
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	c := &s.candidates[i]
	if patch.Score != nil {
		score := *patch.Score
		c.Score = &score
	}
	if patch.HasTranscript != nil {
		c.HasTranscript = *patch.HasTranscript
	}
	if patch.IsOnline != nil {
		c.IsOnline = *patch.IsOnline
	}
	if patch.OnlineStatus != nil {
		c.OnlineStatus = *patch.OnlineStatus
	}
	if patch.LastActivity != nil {
		c.LastActivity = *patch.LastActivity
	}

	s.version++
	s.notify(s.version)
	s.mu.Unlock()

	s.record("patch")

	return true
}

// ApplyPresence merges an online-status roster. Candidates missing from the
// roster keep their current presence. It returns the number of patched entries.
func (s *Store) ApplyPresence(roster []recruiting.Presence) int {
	patched := 0
	for _, p := range roster {
		isOnline := p.IsOnline
		status := p.OnlineStatus
		patch := CandidatePatch{IsOnline: &isOnline, OnlineStatus: &status}
		if !p.LastActivity.IsZero() {
			last := p.LastActivity
			patch.LastActivity = &last
		}

		if s.Patch(p.ID, patch) {
			patched++
		}
	}
	return patched
}

// Snapshot returns a deep copy of the collection. Two snapshots are never
// referentially the same.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recruiting.Candidate, len(s.candidates))
	for i, c := range s.candidates {
		out[i] = c.Clone()
	}

	return Snapshot{Version: s.version, Candidates: out}
}

func (s *Store) Get(id int) (recruiting.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return recruiting.Candidate{}, false
	}
	return s.candidates[i].Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates)
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel receiving the latest version after mutations.
// Notifications are coalesced: a slow reader only sees the newest version.
// The returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// notify must be called with s.mu held so versions are delivered in order.
func (s *Store) notify(version uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- version:
		default:
			// Drop the stale pending version and replace it.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- version:
			default:
			}
		}
	}
}

func (s *Store) record(op string) {
	if s.recorder != nil {
		s.recorder.StoreMutation(op)
	}
}
