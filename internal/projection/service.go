// Package projection serves the read-only aggregation metrics over the
// stored event stream.
package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aevon-lab/pulse/internal/core/aggregation"
	"github.com/aevon-lab/pulse/internal/core/storage"
)

const (
	// DefaultLimit applies when a request names no limit.
	DefaultLimit = 10
	// MaxLimit caps the limit query parameter.
	MaxLimit = 100
	// PowerUserThreshold is the number of events in the window that makes an
	// actor a power user.
	PowerUserThreshold = 20
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid analytics query")

// Service computes the analytics metrics. It holds no state besides the store.
type Service struct {
	store storage.EventStore
	nowFn func() time.Time
}

// NewService creates a new projection service.
func NewService(store storage.EventStore) *Service {
	if store == nil {
		panic("projection: store must not be nil")
	}
	return &Service{
		store: store,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// groups runs a grouped count.
func (s *Service) groups(ctx context.Context, f aggregation.FilterBuilder, groupBy []storage.Dimension, limit int) ([]storage.Group, error) {
	groups, err := s.store.Count(ctx, storage.Query{
		Filter:  f.Build(),
		GroupBy: groupBy,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("count by %v: %w", groupBy, err)
	}
	return groups, nil
}

// distinctBy counts distinct values of d within each group of groupBy.
func (s *Service) distinctBy(ctx context.Context, f aggregation.FilterBuilder, groupBy []storage.Dimension, d storage.Dimension) ([]storage.Group, error) {
	groups, err := s.store.Count(ctx, storage.Query{
		Filter:   f.Build(),
		GroupBy:  groupBy,
		Distinct: d,
	})
	if err != nil {
		return nil, fmt.Errorf("count distinct %s by %v: %w", d, groupBy, err)
	}
	return groups, nil
}

// total counts the events matching f.
func (s *Service) total(ctx context.Context, f aggregation.FilterBuilder) (int64, error) {
	groups, err := s.store.Count(ctx, storage.Query{Filter: f.Build()})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return first(groups), nil
}

// distinct counts the distinct non-empty values of d among events matching f.
func (s *Service) distinct(ctx context.Context, f aggregation.FilterBuilder, d storage.Dimension) (int64, error) {
	groups, err := s.store.Count(ctx, storage.Query{Filter: f.Build(), Distinct: d})
	if err != nil {
		return 0, fmt.Errorf("count distinct %s: %w", d, err)
	}
	return first(groups), nil
}

func first(groups []storage.Group) int64 {
	if len(groups) == 0 {
		return 0
	}
	return groups[0].Count
}

// countsByKey indexes groups by their value for d.
func countsByKey(groups []storage.Group, d storage.Dimension) map[string]int64 {
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		out[g.Key(d)] += g.Count
	}
	return out
}

// dailyTrend orders day groups chronologically.
func dailyTrend(groups []storage.Group) []DailyCount {
	trend := make([]DailyCount, 0, len(groups))
	for _, g := range groups {
		trend = append(trend, DailyCount{Date: g.Key(storage.DimDay), Count: g.Count})
	}
	sort.Slice(trend, func(i, j int) bool {
		return trend[i].Date < trend[j].Date
	})
	return trend
}

func entityCounts(groups []storage.Group) []EntityCount {
	out := make([]EntityCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, EntityCount{EventID: g.Key(storage.DimSubjectID), Count: g.Count})
	}
	return out
}

// normalizeLimit applies the default and rejects values outside 1..MaxLimit.
func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLimit, nil
	}
	if limit < 0 || limit > MaxLimit {
		return 0, invalidQueryf("limit must be between 1 and %d", MaxLimit)
	}
	return limit, nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
