package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
)

// ErrUnavailable is returned when the backing store cannot serve the request.
var ErrUnavailable = errors.New("event store unavailable")

// Dimension names a groupable attribute of a stored event. Column dimensions map
// one-to-one onto telemetry_events columns; the rest are derived from the event
// timestamp or identity.
type Dimension string

const (
	DimEventType   Dimension = "event_type"
	DimDevice      Dimension = "device_id"
	DimPrincipal   Dimension = "user_id"
	DimScreen      Dimension = "screen_name"
	DimSubjectID   Dimension = "event_id"
	DimSubjectName Dimension = "event_name"
	DimCity        Dimension = "city"
	DimVenue       Dimension = "venue_name"
	DimLinkType    Dimension = "link_type"
	DimSearchQuery Dimension = "search_query"
	DimFilterType  Dimension = "filter_type"
	DimFilterValue Dimension = "filter_value"

	// DimActor is the principal when present, the device otherwise.
	DimActor Dimension = "actor"
	// DimHourOfDay renders as "0".."23" (UTC).
	DimHourOfDay Dimension = "hour_of_day"
	// DimDayOfWeek renders as "0".."6", Sunday first (UTC).
	DimDayOfWeek Dimension = "day_of_week"
	// DimISOWeek renders as "2026-W07".
	DimISOWeek Dimension = "iso_week"
	// DimDay renders as "2026-02-11" (UTC).
	DimDay Dimension = "day"
)

// IsColumn reports whether d is stored as-is rather than derived.
func (d Dimension) IsColumn() bool {
	switch d {
	case DimActor, DimHourOfDay, DimDayOfWeek, DimISOWeek, DimDay:
		return false
	case "":
		return false
	}
	return true
}

// Filter selects the events a query runs over. Start and End are both inclusive
// and are compared against the client timestamp.
type Filter struct {
	Start       time.Time
	End         time.Time
	EventTypes  []v1.EventType
	SubjectID   string
	PrincipalID string
	Match       map[Dimension]string
	NonEmpty    []Dimension
}

// Query is a grouped count over the events selected by Filter.
// With Distinct set, each group counts distinct non-empty values of that
// dimension instead of rows. Groups are ordered by count descending, then by
// key ascending. Limit <= 0 means unlimited.
type Query struct {
	Filter   Filter
	GroupBy  []Dimension
	Distinct Dimension
	Limit    int
}

// Group is one row of a grouped count. Keys holds one entry per GroupBy
// dimension; missing values are reported as "".
type Group struct {
	Keys  map[Dimension]string
	Count int64
}

// Key returns the group value for d.
func (g Group) Key(d Dimension) string {
	return g.Keys[d]
}

// SortKey joins the group values in GroupBy order for deterministic tie-breaks.
func (g Group) SortKey(dims []Dimension) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = g.Keys[d]
	}
	return strings.Join(parts, "\x00")
}

// EventStore is the durable record store for telemetry events.
type EventStore interface {
	// InsertEvents appends the batch and returns the number of rows written.
	InsertEvents(ctx context.Context, events []*v1.TelemetryEvent) (int64, error)

	// Count runs a grouped count. A query without GroupBy returns exactly one group.
	Count(ctx context.Context, q Query) ([]Group, error)

	// PurgeExpired deletes up to limit events received before cutoff
	// (limit <= 0 removes all of them) and returns how many were removed.
	PurgeExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
