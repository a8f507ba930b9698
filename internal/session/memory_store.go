package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"deepresearch/internal/research"
)

// MemoryStore is an in-process Store. A single mutex guards the map, which
// gives Update its per-key atomicity: guard check and merge happen under the
// same critical section. Returned sessions are deep copies.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*research.Session
	now      func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*research.Session),
		now:      time.Now,
	}
}

// NewMemoryStoreWithClock is used by tests to control expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	store := NewMemoryStore()
	store.now = now
	return store
}

func (s *MemoryStore) Create(_ context.Context, settings research.Settings, ttl time.Duration, ownerID string) (*research.Session, error) {
	session := NewSession(settings, ttl, ownerID, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*research.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if session.Expired(s.now()) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, update research.SessionUpdate) (*research.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if session.Expired(now) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	if !update.PhaseAllowed(session.Phase) {
		return nil, fmt.Errorf("%w: phase=%s", research.ErrWrongPhase, session.Phase)
	}

	session.Apply(update, now)
	return session.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, ownerID string) ([]*research.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []*research.Session
	for _, session := range s.sessions {
		if session.Expired(now) {
			continue
		}
		if ownerID != "" && session.OwnerID != ownerID {
			continue
		}
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}
