package memory

import (
	"context"
	"testing"
	"time"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func seed(t *testing.T, s *Store, events ...*v1.TelemetryEvent) {
	t.Helper()
	n, err := s.InsertEvents(context.Background(), events)
	require.NoError(t, err)
	require.Equal(t, int64(len(events)), n)
}

func TestStore_CountGroupsAndOrders(t *testing.T) {
	base := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	s := NewStore()
	seed(t, s,
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-aaaa", City: strPtr("Paris")},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-bbbb", City: strPtr("Lyon")},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-cccc", City: strPtr("Paris")},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-dddd"},
		&v1.TelemetryEvent{EventType: v1.EventClicked, Timestamp: base, DeviceID: "device-aaaa", City: strPtr("Paris")},
	)

	groups, err := s.Count(context.Background(), storage.Query{
		Filter: storage.Filter{
			EventTypes: []v1.EventType{v1.EventViewed},
			NonEmpty:   []storage.Dimension{storage.DimCity},
		},
		GroupBy: []storage.Dimension{storage.DimCity},
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "Paris", groups[0].Key(storage.DimCity))
	require.Equal(t, int64(2), groups[0].Count)
	require.Equal(t, "Lyon", groups[1].Key(storage.DimCity))
	require.Equal(t, int64(1), groups[1].Count)
}

func TestStore_CountDistinct(t *testing.T) {
	base := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	s := NewStore()
	seed(t, s,
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: base, DeviceID: "device-bbbb"},
	)

	groups, err := s.Count(context.Background(), storage.Query{Distinct: storage.DimDevice})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, int64(2), groups[0].Count)
}

func TestStore_CountWindowIsInclusive(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 7, 23, 59, 59, 999999999, time.UTC)
	s := NewStore()
	seed(t, s,
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: start, DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: end, DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: end.Add(time.Nanosecond), DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: start.Add(-time.Nanosecond), DeviceID: "device-aaaa"},
	)

	groups, err := s.Count(context.Background(), storage.Query{Filter: storage.Filter{Start: start, End: end}})
	require.NoError(t, err)
	require.Equal(t, int64(2), groups[0].Count)
}

func TestStore_CountEmptyUngroupedReturnsZeroRow(t *testing.T) {
	groups, err := NewStore().Count(context.Background(), storage.Query{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, int64(0), groups[0].Count)
}

func TestStore_CountDerivedDimensionsAndLimit(t *testing.T) {
	// 2026-02-08 is a Sunday in ISO week 6.
	sunday := time.Date(2026, 2, 8, 14, 30, 0, 0, time.UTC)
	s := NewStore()
	seed(t, s,
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: sunday, DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: sunday.Add(time.Minute), DeviceID: "device-aaaa"},
		&v1.TelemetryEvent{EventType: v1.EventViewed, Timestamp: sunday.Add(3 * time.Hour), DeviceID: "device-aaaa"},
	)

	groups, err := s.Count(context.Background(), storage.Query{
		GroupBy: []storage.Dimension{storage.DimHourOfDay, storage.DimDayOfWeek, storage.DimISOWeek},
		Limit:   1,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "14", groups[0].Key(storage.DimHourOfDay))
	require.Equal(t, "0", groups[0].Key(storage.DimDayOfWeek))
	require.Equal(t, "2026-W06", groups[0].Key(storage.DimISOWeek))
	require.Equal(t, int64(2), groups[0].Count)
}

func TestStore_PurgeExpired(t *testing.T) {
	cutoff := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	seed(t, s,
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-aaaa", ReceivedAt: cutoff.Add(-2 * time.Hour)},
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-bbbb", ReceivedAt: cutoff.Add(-time.Hour)},
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-cccc", ReceivedAt: cutoff},
	)

	removed, err := s.PurgeExpired(context.Background(), cutoff, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
	require.Equal(t, 2, s.Len())

	removed, err = s.PurgeExpired(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
	require.Equal(t, 1, s.Len())
}

func TestStore_PurgeExpiredRemovesOldestFirst(t *testing.T) {
	cutoff := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	seed(t, s,
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-newer", ReceivedAt: cutoff.Add(-time.Hour)},
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-older", ReceivedAt: cutoff.Add(-3 * time.Hour)},
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-oldest", ReceivedAt: cutoff.Add(-5 * time.Hour)},
		&v1.TelemetryEvent{EventType: v1.EventViewed, DeviceID: "device-fresh", ReceivedAt: cutoff.Add(time.Hour)},
	)

	removed, err := s.PurgeExpired(context.Background(), cutoff, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	groups, err := s.Count(context.Background(), storage.Query{GroupBy: []storage.Dimension{storage.DimDevice}})
	require.NoError(t, err)
	var devices []string
	for _, g := range groups {
		devices = append(devices, g.Key(storage.DimDevice))
	}
	require.ElementsMatch(t, []string{"device-newer", "device-fresh"}, devices)
}

func TestStore_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().Count(ctx, storage.Query{})
	require.ErrorIs(t, err, context.Canceled)
}
