package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMergesOnlyProvidedFields(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	session := &Session{
		ID:        "s1",
		Phase:     PhaseQuestions,
		Topic:     "quantum error correction",
		Questions: "q1\nq2",
		Version:   3,
		CreatedAt: created,
		UpdatedAt: created,
	}

	now := created.Add(time.Minute)
	session.Apply(SessionUpdate{
		Phase:    PhasePtr(PhaseFeedback),
		Feedback: StringPtr("focus on surface codes"),
	}, now)

	assert.Equal(t, PhaseFeedback, session.Phase)
	assert.Equal(t, "focus on surface codes", session.Feedback)
	// Unspecified fields stay bit-identical.
	assert.Equal(t, "quantum error correction", session.Topic)
	assert.Equal(t, "q1\nq2", session.Questions)
	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, created, session.CreatedAt)
	// Bookkeeping always advances.
	assert.Equal(t, int64(4), session.Version)
	assert.Equal(t, now, session.UpdatedAt)
}

func TestPhaseAllowedGuard(t *testing.T) {
	update := SessionUpdate{RequirePhase: []Phase{PhasePlanning}}
	assert.True(t, update.PhaseAllowed(PhasePlanning))
	assert.False(t, update.PhaseAllowed(PhaseExecuting))

	unguarded := SessionUpdate{}
	assert.True(t, unguarded.PhaseAllowed(PhaseError))
}

func TestExpired(t *testing.T) {
	now := time.Now()
	live := &Session{ExpiresAt: now.Add(time.Hour)}
	gone := &Session{ExpiresAt: now.Add(-time.Second)}
	forever := &Session{}

	assert.False(t, live.Expired(now))
	assert.True(t, gone.Expired(now))
	assert.False(t, forever.Expired(now))
}

func TestOwnedBy(t *testing.T) {
	owned := &Session{OwnerID: "A"}
	assert.True(t, owned.OwnedBy("A"))
	assert.False(t, owned.OwnedBy("B"))
	assert.False(t, owned.OwnedBy(""))

	anonymous := &Session{}
	assert.True(t, anonymous.OwnedBy("A"))
	assert.True(t, anonymous.OwnedBy(""))
}

func TestCloneIsDeep(t *testing.T) {
	session := &Session{
		ID:    "s1",
		Tasks: []SearchTask{{Query: "a"}},
		Results: []TaskResult{
			{Query: "a", State: TaskCompleted, Sources: []Source{{URL: "https://example.com"}}},
		},
	}

	clone := session.Clone()
	require.NotNil(t, clone)

	clone.Tasks[0].Query = "mutated"
	clone.Results[0].Sources[0].URL = "https://mutated.example"

	assert.Equal(t, "a", session.Tasks[0].Query)
	assert.Equal(t, "https://example.com", session.Results[0].Sources[0].URL)
}
