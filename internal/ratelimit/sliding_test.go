package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWindow(limit int, window time.Duration) (*SlidingWindow, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)}
	w := NewSlidingWindow(limit, window)
	w.now = clock.Now
	return w, clock
}

func TestSlidingWindow_AdmitsUpToLimit(t *testing.T) {
	w, clock := newTestWindow(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := w.Admit(ctx, "device:abcdef12345")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 3, d.Limit)
		require.Equal(t, 2-i, d.Remaining)
		clock.Advance(10 * time.Second)
	}

	d, err := w.Admit(ctx, "device:abcdef12345")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	// Oldest hit was 30s ago, so it leaves the window in 30s.
	require.Equal(t, 30*time.Second, d.RetryAfter)
	require.Equal(t, 30, d.RetryAfterSeconds())
}

func TestSlidingWindow_RejectedRequestsAreNotCounted(t *testing.T) {
	w, clock := newTestWindow(1, time.Minute)
	ctx := context.Background()

	d, _ := w.Admit(ctx, "k")
	require.True(t, d.Allowed)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		d, _ = w.Admit(ctx, "k")
		require.False(t, d.Allowed)
	}

	// The single admitted hit expires at exactly one window after it.
	clock.Advance(55 * time.Second)
	d, _ = w.Admit(ctx, "k")
	require.True(t, d.Allowed)
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	w, _ := newTestWindow(1, time.Minute)
	ctx := context.Background()

	d, _ := w.Admit(ctx, "device:aaaaaaaaaa")
	require.True(t, d.Allowed)
	d, _ = w.Admit(ctx, "device:bbbbbbbbbb")
	require.True(t, d.Allowed)
	d, _ = w.Admit(ctx, "device:aaaaaaaaaa")
	require.False(t, d.Allowed)
}

func TestSlidingWindow_RetryAfterRoundsUp(t *testing.T) {
	w, clock := newTestWindow(1, time.Minute)
	ctx := context.Background()

	_, _ = w.Admit(ctx, "k")
	clock.Advance(59*time.Second + 500*time.Millisecond)

	d, _ := w.Admit(ctx, "k")
	require.False(t, d.Allowed)
	require.Equal(t, 500*time.Millisecond, d.RetryAfter)
	require.Equal(t, 1, d.RetryAfterSeconds())
}

func TestSlidingWindow_Sweep(t *testing.T) {
	w, clock := newTestWindow(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = w.Admit(ctx, fmt.Sprintf("k-%d", i))
	}
	clock.Advance(30 * time.Second)
	_, _ = w.Admit(ctx, "k-0")

	require.Equal(t, 0, w.Sweep())

	clock.Advance(45 * time.Second)
	require.Equal(t, 9, w.Sweep())

	d, _ := w.Admit(ctx, "k-0")
	require.Equal(t, 3, d.Remaining)
}

func TestSlidingWindow_ConcurrentAdmitsNeverExceedLimit(t *testing.T) {
	w, _ := newTestWindow(50, time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := w.Admit(ctx, "shared")
			require.NoError(t, err)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, allowed)
}
