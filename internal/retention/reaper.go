// Package retention deletes events once they outlive the retention period.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/pulse/internal/core/storage"
	"github.com/aevon-lab/pulse/internal/metrics"
)

const (
	// DefaultTTL is how long an event is kept after it was received.
	DefaultTTL = 90 * 24 * time.Hour

	defaultInterval   = time.Hour
	defaultBatchSize  = 5000
	defaultMaxBatches = 100
)

// Options controls how often and how aggressively the reaper purges.
type Options struct {
	TTL       time.Duration
	Interval  time.Duration
	BatchSize int
	// MaxBatches bounds one sweep; the rest waits for the next tick.
	MaxBatches int
}

func (o Options) normalized() Options {
	n := o
	if n.TTL <= 0 {
		n.TTL = DefaultTTL
	}
	if n.Interval <= 0 {
		n.Interval = defaultInterval
	}
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.MaxBatches <= 0 {
		n.MaxBatches = defaultMaxBatches
	}
	return n
}

// Reaper runs periodic purges of expired events. It is stateless: each tick
// computes the cutoff from the clock.
type Reaper struct {
	store storage.EventStore
	opts  Options
	nowFn func() time.Time
}

// NewReaper creates a reaper over store.
func NewReaper(store storage.EventStore, opts Options) *Reaper {
	return &Reaper{
		store: store,
		opts:  opts.normalized(),
		nowFn: time.Now,
	}
}

// Start sweeps once immediately and then on every tick until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	slog.Info("[Reaper] Starting retention reaper",
		"ttl", r.opts.TTL,
		"interval", r.opts.Interval,
		"batch_size", r.opts.BatchSize)

	r.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-ctx.Done():
			slog.Info("[Reaper] Stopping (context cancelled)")
			return nil
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	purged, err := r.Sweep(ctx)
	if err != nil {
		slog.Error("[Reaper] Sweep failed", "purged", purged, "error", err)
		return
	}
	if purged > 0 {
		slog.Info("[Reaper] Expired events purged", "purged", purged)
	}
}

// Sweep deletes expired events in batches until a batch comes back short or
// MaxBatches is reached. It returns the number of events removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.nowFn().Add(-r.opts.TTL)

	var total int64
	for batch := 0; batch < r.opts.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := r.store.PurgeExpired(ctx, cutoff, r.opts.BatchSize)
		if err != nil {
			return total, fmt.Errorf("purge events received before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		total += n
		metrics.RetentionPurged.Add(float64(n))

		if n < int64(r.opts.BatchSize) {
			return total, nil
		}
	}

	slog.Warn("[Reaper] Max batches reached, resuming on next tick",
		"max_batches", r.opts.MaxBatches,
		"purged", total)
	return total, nil
}
