// Package memory is an in-process EventStore. It backs `storage.type: memory`
// for local development and the aggregation tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/core/storage"
)

// Store keeps events in insertion order behind a RWMutex.
type Store struct {
	mu     sync.RWMutex
	events []*v1.TelemetryEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// InsertEvents appends copies of the batch.
func (s *Store) InsertEvents(ctx context.Context, events []*v1.TelemetryEvent) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		copy := *e
		s.events = append(s.events, &copy)
	}
	return int64(len(events)), nil
}

// Count evaluates q with the same semantics as the SQL adapter.
func (s *Store) Count(ctx context.Context, q storage.Query) ([]storage.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		keys     map[storage.Dimension]string
		rows     int64
		distinct map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, e := range s.events {
		if !matches(e, q.Filter) {
			continue
		}

		keys := make(map[storage.Dimension]string, len(q.GroupBy))
		for _, d := range q.GroupBy {
			keys[d] = storage.DimensionValue(e, d)
		}
		id := storage.Group{Keys: keys}.SortKey(q.GroupBy)

		b, ok := buckets[id]
		if !ok {
			b = &bucket{keys: keys, distinct: make(map[string]struct{})}
			buckets[id] = b
			order = append(order, id)
		}
		b.rows++
		if q.Distinct != "" {
			if v := storage.DimensionValue(e, q.Distinct); v != "" {
				b.distinct[v] = struct{}{}
			}
		}
	}

	// An ungrouped aggregate always yields one row, even over nothing.
	if len(q.GroupBy) == 0 && len(order) == 0 {
		return []storage.Group{{Keys: map[storage.Dimension]string{}, Count: 0}}, nil
	}

	groups := make([]storage.Group, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		count := b.rows
		if q.Distinct != "" {
			count = int64(len(b.distinct))
		}
		groups = append(groups, storage.Group{Keys: b.keys, Count: count})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].SortKey(q.GroupBy) < groups[j].SortKey(q.GroupBy)
	})

	if q.Limit > 0 && len(groups) > q.Limit {
		groups = groups[:q.Limit]
	}
	return groups, nil
}

// PurgeExpired drops events received before cutoff, oldest first. With a
// positive limit at most limit events are removed.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []int
	for i, e := range s.events {
		if e.ReceivedAt.Before(cutoff) {
			expired = append(expired, i)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if limit > 0 && len(expired) > limit {
		sort.SliceStable(expired, func(a, b int) bool {
			return s.events[expired[a]].ReceivedAt.Before(s.events[expired[b]].ReceivedAt)
		})
		expired = expired[:limit]
	}

	drop := make(map[int]struct{}, len(expired))
	for _, i := range expired {
		drop[i] = struct{}{}
	}
	kept := make([]*v1.TelemetryEvent, 0, len(s.events)-len(drop))
	for i, e := range s.events {
		if _, ok := drop[i]; !ok {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return int64(len(drop)), nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Ping always succeeds; it lets the store stand in for the database health check.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func matches(e *v1.TelemetryEvent, f storage.Filter) bool {
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if e.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SubjectID != "" && storage.DimensionValue(e, storage.DimSubjectID) != f.SubjectID {
		return false
	}
	if f.PrincipalID != "" && storage.DimensionValue(e, storage.DimPrincipal) != f.PrincipalID {
		return false
	}
	for d, want := range f.Match {
		if storage.DimensionValue(e, d) != want {
			return false
		}
	}
	for _, d := range f.NonEmpty {
		if storage.DimensionValue(e, d) == "" {
			return false
		}
	}
	return true
}
