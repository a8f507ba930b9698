package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/research"
	"deepresearch/internal/session"
)

func newSessionService(t *testing.T) (*SessionService, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	broadcaster := NewStreamBroadcaster(nil)
	return NewSessionService(store, broadcaster, time.Hour), store
}

func TestSessionServiceOwnership(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "alice")
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, created.ID, "alice")
	assert.NoError(t, err)

	_, err = svc.GetSession(ctx, created.ID, "bob")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.GetSession(ctx, created.ID, "")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestSessionServiceAnonymousSessionIsOpen(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "")
	require.NoError(t, err)

	for _, subject := range []string{"", "alice", "bob"} {
		_, err := svc.GetSession(ctx, created.ID, subject)
		assert.NoError(t, err, "subject %q", subject)
	}
}

func TestSessionServiceUpdateSettings(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{Model: "gpt-4o", MaxResults: 3}, 0, "alice")
	require.NoError(t, err)

	_, err = svc.UpdateSession(ctx, created.ID, "bob", research.Settings{Model: "stolen"})
	assert.ErrorIs(t, err, ErrNotOwner)

	updated, err := svc.UpdateSession(ctx, created.ID, "alice", research.Settings{Model: "gpt-4o-mini", MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", updated.Settings.Model)
	assert.Equal(t, 5, updated.Settings.MaxResults)
	assert.Greater(t, updated.Version, created.Version)

	// Workflow state is untouched by a settings update.
	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseTopic, got.Phase)
	assert.Equal(t, "gpt-4o-mini", got.Settings.Model)

	_, err = svc.UpdateSession(ctx, "missing", "alice", research.Settings{})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSessionServiceListFiltersBySubject(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, research.Settings{}, 0, "alice")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, research.Settings{}, 0, "alice")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, research.Settings{}, 0, "bob")
	require.NoError(t, err)

	mine, err := svc.ListSessions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := svc.ListSessions(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestSessionServiceDeleteIdempotent(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "alice")
	require.NoError(t, err)

	removed, err := svc.DeleteSession(ctx, created.ID, "alice")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.DeleteSession(ctx, created.ID, "alice")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSessionServiceDeleteRejectsNonOwner(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "alice")
	require.NoError(t, err)

	_, err = svc.DeleteSession(ctx, created.ID, "bob")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.GetSession(ctx, created.ID, "alice")
	assert.NoError(t, err)
}

func TestSessionServiceDeleteClosesStreams(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "alice")
	require.NoError(t, err)

	ch, err := svc.AttachStream(ctx, created.ID, "alice")
	require.NoError(t, err)

	_, err = svc.DeleteSession(ctx, created.ID, "alice")
	require.NoError(t, err)

	_, open := <-ch
	assert.False(t, open)
}

func TestSessionServiceAttachStreamTerminalSnapshot(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "")
	require.NoError(t, err)
	_, err = store.Update(ctx, created.ID, research.SessionUpdate{
		Phase:       research.PhasePtr(research.PhaseCompleted),
		FinalReport: research.StringPtr("# Findings"),
	})
	require.NoError(t, err)

	ch, err := svc.AttachStream(ctx, created.ID, "")
	require.NoError(t, err)

	got, open := <-ch
	require.True(t, open)
	assert.Equal(t, research.EventFinalReport, got.Name)
	assert.Equal(t, "# Findings", got.Data["report"])

	_, open = <-ch
	assert.False(t, open)
}

func TestSessionServiceAttachStreamErrorSnapshot(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, research.Settings{}, 0, "")
	require.NoError(t, err)
	_, err = store.Update(ctx, created.ID, research.SessionUpdate{
		Phase: research.PhasePtr(research.PhaseError),
		Error: research.StringPtr("provider unavailable"),
	})
	require.NoError(t, err)

	ch, err := svc.AttachStream(ctx, created.ID, "")
	require.NoError(t, err)

	got := <-ch
	assert.Equal(t, research.EventError, got.Name)

	_, open := <-ch
	assert.False(t, open)
}

func TestSessionServiceAttachStreamUnknownSession(t *testing.T) {
	svc, _ := newSessionService(t)

	_, err := svc.AttachStream(context.Background(), "no-such-id", "")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
