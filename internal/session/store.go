package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"deepresearch/internal/research"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store is the durable session repository contract. Implementations must make
// Update atomic per session id: the phase guard check and the field merge may
// never interleave with a concurrent update on the same id.
type Store interface {
	// Create persists a new session in the topic phase.
	Create(ctx context.Context, settings research.Settings, ttl time.Duration, ownerID string) (*research.Session, error)

	// Get retrieves a session by id. An expired session is reported as
	// ErrNotFound and may be eagerly deleted.
	Get(ctx context.Context, id string) (*research.Session, error)

	// Update applies a partial merge. It refreshes UpdatedAt, increments
	// Version, and never mutates ID or CreatedAt. When the update carries a
	// RequirePhase guard and the current phase is not in the set, the update
	// is rejected with research.ErrWrongPhase and the session is unchanged.
	Update(ctx context.Context, id string, update research.SessionUpdate) (*research.Session, error)

	// Delete removes a session. It reports whether a session was removed and
	// never errors on an already-gone id.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns sessions owned by ownerID; an empty ownerID lists all.
	// Expired sessions are excluded.
	List(ctx context.Context, ownerID string) ([]*research.Session, error)

	// SweepExpired bulk-deletes expired sessions and returns the count.
	SweepExpired(ctx context.Context) (int, error)
}

// NewSessionID returns a time-ordered unique session identifier.
func NewSessionID() string {
	if v7, err := uuid.NewV7(); err == nil {
		return v7.String()
	}
	return uuid.NewString()
}

// NewSession builds an unsaved session record. Stores call this so creation
// invariants (phase, timestamps, TTL) live in one place.
func NewSession(settings research.Settings, ttl time.Duration, ownerID string, now time.Time) *research.Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &research.Session{
		ID:        NewSessionID(),
		OwnerID:   ownerID,
		Phase:     research.PhaseTopic,
		Settings:  settings,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// DefaultTTL bounds sessions created without an explicit TTL.
const DefaultTTL = 24 * time.Hour
