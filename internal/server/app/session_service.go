package app

import (
	"context"
	"fmt"
	"time"

	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/session"
)

// SessionService handles session CRUD and stream attachment. Ownership is
// enforced here so the HTTP layer stays thin: a session with an owner only
// admits its owner, an unowned session admits any subject.
type SessionService struct {
	store       session.Store
	broadcaster *StreamBroadcaster
	defaultTTL  time.Duration
	logger      logging.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(store session.Store, broadcaster *StreamBroadcaster, defaultTTL time.Duration) *SessionService {
	if defaultTTL <= 0 {
		defaultTTL = session.DefaultTTL
	}
	return &SessionService{
		store:       store,
		broadcaster: broadcaster,
		defaultTTL:  defaultTTL,
		logger:      logging.NewComponentLogger("SessionService"),
	}
}

// CreateSession creates a session owned by subject; an empty subject creates
// an anonymous session.
func (svc *SessionService) CreateSession(ctx context.Context, settings research.Settings, ttl time.Duration, subject string) (*research.Session, error) {
	if ttl <= 0 {
		ttl = svc.defaultTTL
	}
	created, err := svc.store.Create(ctx, settings, ttl, subject)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	svc.logger.Info("Created session %s (owner=%q, ttl=%s)", created.ID, subject, ttl)
	return created, nil
}

// GetSession retrieves a session, enforcing ownership.
func (svc *SessionService) GetSession(ctx context.Context, id, subject string) (*research.Session, error) {
	record, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.OwnedBy(subject) {
		return nil, ErrNotOwner
	}
	return record, nil
}

// UpdateSession replaces the session's settings snapshot, enforcing
// ownership. The phase and workflow outputs are owned by the orchestrator and
// stay untouched; only the version and updatedAt bookkeeping move.
func (svc *SessionService) UpdateSession(ctx context.Context, id, subject string, settings research.Settings) (*research.Session, error) {
	record, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.OwnedBy(subject) {
		return nil, ErrNotOwner
	}

	updated, err := svc.store.Update(ctx, id, research.SessionUpdate{Settings: &settings})
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return updated, nil
}

// ListSessions returns the sessions subject may access: its own plus, for the
// anonymous subject, the anonymous ones.
func (svc *SessionService) ListSessions(ctx context.Context, subject string) ([]*research.Session, error) {
	all, err := svc.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, record := range all {
		if record.OwnerID == subject {
			out = append(out, record)
		}
	}
	return out, nil
}

// DeleteSession removes a session and closes any live subscriber channels.
// Deleting an already-gone session reports removed=false without error.
func (svc *SessionService) DeleteSession(ctx context.Context, id, subject string) (bool, error) {
	record, err := svc.store.Get(ctx, id)
	if err != nil {
		// Not found: idempotent delete still prunes any stale subscribers.
		svc.broadcaster.CloseSession(id)
		return false, nil
	}
	if !record.OwnedBy(subject) {
		return false, ErrNotOwner
	}

	removed, err := svc.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	svc.broadcaster.CloseSession(id)
	svc.logger.Info("Deleted session %s (removed=%t)", id, removed)
	return removed, nil
}

// AttachStream registers a live subscriber for a session and returns its
// event channel. Attaching to a session already in a terminal phase yields a
// channel that carries exactly one terminal snapshot event and is then
// closed.
func (svc *SessionService) AttachStream(ctx context.Context, id, subject string) (chan research.StreamEvent, error) {
	record, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.OwnedBy(subject) {
		return nil, ErrNotOwner
	}

	ch := make(chan research.StreamEvent, subscriberBuffer)

	if record.Phase.Terminal() {
		var snapshot research.StreamEvent
		if record.Phase == research.PhaseCompleted {
			snapshot = research.NewFinalReportEvent(record.ID, record.FinalReport)
		} else {
			snapshot = research.NewErrorEvent(record.ID, record.Error)
		}
		svc.broadcaster.AttachTerminal(ch, snapshot)
		return ch, nil
	}

	svc.broadcaster.Attach(id, ch)
	return ch, nil
}

// DetachStream removes a subscriber channel; safe to call after the
// broadcaster already closed the session.
func (svc *SessionService) DetachStream(id string, ch chan research.StreamEvent) {
	svc.broadcaster.Detach(id, ch)
}

// SweepExpired bulk-deletes expired sessions; called from the server's
// background ticker.
func (svc *SessionService) SweepExpired(ctx context.Context) (int, error) {
	count, err := svc.store.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		svc.logger.Info("Swept %d expired session(s)", count)
	}
	return count, nil
}
