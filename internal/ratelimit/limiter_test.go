package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckDeniesThirdCallWithLimitTwo(t *testing.T) {
	limiter := New()

	first := limiter.Check("user-a", "execute", 2, time.Minute)
	second := limiter.Check("user-a", "execute", 2, time.Minute)
	third := limiter.Check("user-a", "execute", 2, time.Minute)

	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)
	assert.False(t, third.Allowed)
	assert.Equal(t, 0, third.Remaining)
	assert.Equal(t, second.ResetAt, third.ResetAt)
}

func TestCheckKeysAreIndependent(t *testing.T) {
	limiter := New()

	limiter.Check("user-a", "execute", 1, time.Minute)
	denied := limiter.Check("user-a", "execute", 1, time.Minute)
	otherOp := limiter.Check("user-a", "ask", 1, time.Minute)
	otherUser := limiter.Check("user-b", "execute", 1, time.Minute)

	assert.False(t, denied.Allowed)
	assert.True(t, otherOp.Allowed)
	assert.True(t, otherUser.Allowed)
}

func TestWindowHardReset(t *testing.T) {
	now := time.Now()
	clock := now
	var mu sync.Mutex
	limiter := NewWithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	})

	limiter.Check("u", "op", 1, time.Minute)
	denied := limiter.Check("u", "op", 1, time.Minute)
	assert.False(t, denied.Allowed)

	mu.Lock()
	clock = now.Add(2 * time.Minute)
	mu.Unlock()

	fresh := limiter.Check("u", "op", 1, time.Minute)
	assert.True(t, fresh.Allowed)
	assert.Equal(t, 0, fresh.Remaining)
}

func TestAnonymousSubjectsShareAWindow(t *testing.T) {
	limiter := New()

	limiter.Check("", "op", 1, time.Minute)
	denied := limiter.Check("", "op", 1, time.Minute)
	assert.False(t, denied.Allowed)
}

func TestZeroLimitDisablesChecking(t *testing.T) {
	limiter := New()
	for i := 0; i < 100; i++ {
		decision := limiter.Check("u", "op", 0, time.Minute)
		assert.True(t, decision.Allowed)
	}
	assert.Equal(t, 0, limiter.Len())
}

func TestCleanupDiscardsElapsedWindows(t *testing.T) {
	now := time.Now()
	clock := now
	var mu sync.Mutex
	limiter := NewWithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	})
	limiter.cleanupInterval = time.Minute

	limiter.Check("u1", "op", 5, time.Second)
	limiter.Check("u2", "op", 5, time.Second)
	assert.Equal(t, 2, limiter.Len())

	mu.Lock()
	clock = now.Add(2 * time.Minute)
	mu.Unlock()

	limiter.Check("u3", "op", 5, time.Second)
	assert.Equal(t, 1, limiter.Len())
}

func TestCheckConcurrentCallsNeverExceedLimit(t *testing.T) {
	limiter := New()
	const limit = 10
	const calls = 50

	var wg sync.WaitGroup
	allowed := make(chan bool, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- limiter.Check("u", "op", limit, time.Minute).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, limit, count)
}
