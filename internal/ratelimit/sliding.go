package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aevon-lab/pulse/internal/core/partition"
)

// SlidingWindow is an in-process sliding-log limiter. Keys are spread over
// partition.Count shards so unrelated keys rarely contend on a lock.
type SlidingWindow struct {
	limit  int
	window time.Duration
	shards []*shard
	now    func() time.Time
}

type shard struct {
	mu   sync.Mutex
	logs map[string][]time.Time
}

// NewSlidingWindow allows limit requests per key in any trailing window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	shards := make([]*shard, partition.Count)
	for i := range shards {
		shards[i] = &shard{logs: make(map[string][]time.Time)}
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		shards: shards,
		now:    time.Now,
	}
}

// Admit implements Admitter. It never returns an error.
func (w *SlidingWindow) Admit(_ context.Context, key string) (Decision, error) {
	now := w.now()
	s := w.shards[partition.For(key)]

	s.mu.Lock()
	defer s.mu.Unlock()

	hits := prune(s.logs[key], now.Add(-w.window))
	if len(hits) >= w.limit {
		s.logs[key] = hits
		var retry time.Duration
		if len(hits) > 0 {
			retry = hits[0].Add(w.window).Sub(now)
		}
		return Decision{
			Allowed:    false,
			Limit:      w.limit,
			Remaining:  0,
			RetryAfter: retry,
		}, nil
	}

	hits = append(hits, now)
	s.logs[key] = hits
	return Decision{
		Allowed:   true,
		Limit:     w.limit,
		Remaining: w.limit - len(hits),
	}, nil
}

// Sweep drops keys whose log has fully expired and returns how many were removed.
func (w *SlidingWindow) Sweep() int {
	cutoff := w.now().Add(-w.window)
	removed := 0
	for _, s := range w.shards {
		s.mu.Lock()
		for key, hits := range s.logs {
			kept := prune(hits, cutoff)
			if len(kept) == 0 {
				delete(s.logs, key)
				removed++
				continue
			}
			s.logs[key] = kept
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// sweeps once per window.
func (w *SlidingWindow) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = w.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.Sweep(); n > 0 {
				slog.Debug("[Limiter] Swept idle keys", "removed", n, "window", w.window)
			}
		}
	}
}

// prune keeps hits strictly newer than cutoff. hits is in arrival order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
