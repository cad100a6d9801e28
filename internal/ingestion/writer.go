package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/core/storage"
	"github.com/aevon-lab/pulse/internal/metrics"
)

// Enqueuer accepts sanitized batches for asynchronous persistence.
type Enqueuer interface {
	// Enqueue hands off the batch without blocking. It reports false when
	// the batch was dropped.
	Enqueue(batch []*v1.TelemetryEvent) bool
}

// WriterOptions tunes the background writer.
type WriterOptions struct {
	QueueSize       int
	Workers         int
	WriteTimeout    time.Duration
	DrainTimeout    time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Writer persists batches on background workers. Write outcomes are only
// logged and counted; nothing is reported back to the request that
// produced the batch.
type Writer struct {
	store        storage.EventStore
	queue        chan []*v1.TelemetryEvent
	workers      int
	writeTimeout time.Duration
	drainTimeout time.Duration
	breaker      *gobreaker.CircuitBreaker[int64]
}

// NewWriter creates a writer. Call Start to begin consuming.
func NewWriter(store storage.EventStore, opts WriterOptions) *Writer {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:        "event-store-writer",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("[Writer] Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &Writer{
		store:        store,
		queue:        make(chan []*v1.TelemetryEvent, opts.QueueSize),
		workers:      opts.Workers,
		writeTimeout: opts.WriteTimeout,
		drainTimeout: opts.DrainTimeout,
		breaker:      breaker,
	}
}

// Enqueue implements Enqueuer.
func (w *Writer) Enqueue(batch []*v1.TelemetryEvent) bool {
	if len(batch) == 0 {
		return true
	}
	select {
	case w.queue <- batch:
		metrics.WriterQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		metrics.WriterBatches.WithLabelValues("dropped").Inc()
		slog.Warn("[Writer] Queue full, dropping batch",
			"events", len(batch),
			"queue_capacity", cap(w.queue))
		return false
	}
}

// Start runs the workers until ctx is cancelled, then drains whatever is
// still queued within the drain timeout. It blocks until done.
func (w *Writer) Start(ctx context.Context) error {
	slog.Info("[Writer] Starting",
		"workers", w.workers,
		"queue_capacity", cap(w.queue))

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.work(ctx)
		}()
	}
	wg.Wait()

	w.drain()
	slog.Info("[Writer] Stopped")
	return nil
}

func (w *Writer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-w.queue:
			metrics.WriterQueueDepth.Set(float64(len(w.queue)))
			w.write(context.Background(), batch)
		}
	}
}

func (w *Writer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			if left := len(w.queue); left > 0 {
				slog.Error("[Writer] Drain deadline reached, abandoning batches", "batches", left)
			}
			return
		}
		select {
		case batch := <-w.queue:
			w.write(ctx, batch)
		default:
			return
		}
	}
}

// write persists one batch through the breaker using a context detached
// from any request.
func (w *Writer) write(parent context.Context, batch []*v1.TelemetryEvent) {
	ctx, cancel := context.WithTimeout(parent, w.writeTimeout)
	defer cancel()

	start := time.Now()
	n, err := w.breaker.Execute(func() (int64, error) {
		return w.store.InsertEvents(ctx, batch)
	})
	metrics.WriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.WriterBatches.WithLabelValues("breaker_open").Inc()
			slog.Warn("[Writer] Circuit open, batch not written", "events", len(batch))
			return
		}
		metrics.WriterBatches.WithLabelValues("failed").Inc()
		slog.Error("[Writer] Failed to write batch",
			"events", len(batch),
			"error", err)
		return
	}

	metrics.WriterBatches.WithLabelValues("written").Inc()
	metrics.WriterEvents.Add(float64(n))
	slog.Debug("[Writer] Batch written", "events", n)
}
