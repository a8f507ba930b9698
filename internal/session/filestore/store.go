package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/session"
)

// Store persists one JSON file per session under baseDir. Per-id mutexes make
// the read-merge-write cycle of Update atomic; writes go through a temp file
// plus rename so a crash never leaves a torn record.
type Store struct {
	baseDir string
	logger  logging.Logger

	mu    sync.Mutex
	locks map[string]*idLock
}

// idLock is a refcounted per-session mutex. The map entry is removed only
// when the last holder releases, so two goroutines can never hold separate
// mutexes for the same id.
type idLock struct {
	sync.Mutex
	refs int
}

// New creates the base directory if needed and returns a file-backed store.
func New(baseDir string) (*Store, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		logger:  logging.NewComponentLogger("SessionFileStore"),
		locks:   make(map[string]*idLock),
	}, nil
}

func (s *Store) lockFor(id string) *idLock {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &idLock{}
		s.locks[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.Lock()
	return lock
}

func (s *Store) unlock(id string, lock *idLock) {
	lock.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, id)
	}
	s.mu.Unlock()
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *Store) Create(_ context.Context, settings research.Settings, ttl time.Duration, ownerID string) (*research.Session, error) {
	record := session.NewSession(settings, ttl, ownerID, time.Now())

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, err
	}

	// Exclusive create guards against id collisions.
	f, err := os.OpenFile(s.path(record.ID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create session file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write session: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close session file: %w", err)
	}
	return record, nil
}

func (s *Store) read(id string) (*research.Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, session.ErrNotFound
	}
	var record research.Session
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Error("Failed to decode session file %s: %v", s.path(id), err)
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &record, nil
}

func (s *Store) write(record *research.Session) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(record.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path(record.ID)); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*research.Session, error) {
	lock := s.lockFor(id)
	defer s.unlock(id, lock)

	record, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if record.Expired(time.Now()) {
		_ = os.Remove(s.path(id))
		return nil, session.ErrNotFound
	}
	return record, nil
}

func (s *Store) Update(_ context.Context, id string, update research.SessionUpdate) (*research.Session, error) {
	lock := s.lockFor(id)
	defer s.unlock(id, lock)

	record, err := s.read(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if record.Expired(now) {
		_ = os.Remove(s.path(id))
		return nil, session.ErrNotFound
	}
	if !update.PhaseAllowed(record.Phase) {
		return nil, fmt.Errorf("%w: phase=%s", research.ErrWrongPhase, record.Phase)
	}

	record.Apply(update, now)
	if err := s.write(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	lock := s.lockFor(id)
	defer s.unlock(id, lock)

	err := os.Remove(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) List(_ context.Context, ownerID string) ([]*research.Session, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := time.Now()
	var out []*research.Session
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		record, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("Skipping unreadable session file %s: %v", name, err)
			continue
		}
		if record.Expired(now) {
			continue
		}
		if ownerID != "" && record.OwnerID != ownerID {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}

	now := time.Now()
	count := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		record, err := s.read(id)
		if err != nil {
			continue
		}
		if !record.Expired(now) {
			continue
		}
		lock := s.lockFor(id)
		if err := os.Remove(s.path(id)); err == nil {
			count++
		}
		s.unlock(id, lock)
	}
	return count, nil
}
