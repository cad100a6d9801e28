package aggregation

import (
	"errors"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/core/storage"
)

// DefaultLookback is the window used when a request names no start date.
const DefaultLookback = 30 * 24 * time.Hour

const dateLayout = "2006-01-02"

// ErrInvalidRange is returned for unparseable or inverted date ranges.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive window of client timestamps, day-aligned in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange turns the startDate/endDate query parameters into a window.
// Either value may be empty. Both accept YYYY-MM-DD or RFC3339; the start is
// moved to 00:00:00 UTC of its day and the end to the last instant of its day.
func ParseDateRange(startRaw, endRaw string, now time.Time) (DateRange, error) {
	end := endOfDay(now)
	if endRaw != "" {
		t, err := parseDate(endRaw)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: endDate %q", ErrInvalidRange, endRaw)
		}
		end = endOfDay(t)
	}

	start := startOfDay(end.Add(-DefaultLookback))
	if startRaw != "" {
		t, err := parseDate(startRaw)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: startDate %q", ErrInvalidRange, startRaw)
		}
		start = startOfDay(t)
	}

	if start.After(end) {
		return DateRange{}, fmt.Errorf("%w: startDate is after endDate", ErrInvalidRange)
	}
	return DateRange{Start: start, End: end}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// FilterBuilder assembles the storage filter for one metric query. Every
// method returns a new builder, so a base builder can be shared.
type FilterBuilder struct {
	f storage.Filter
}

// NewFilter starts a filter over r.
func NewFilter(r DateRange) FilterBuilder {
	return FilterBuilder{f: storage.Filter{Start: r.Start, End: r.End}}
}

// Types restricts the query to the given event types.
func (b FilterBuilder) Types(types ...v1.EventType) FilterBuilder {
	out := b.clone()
	out.f.EventTypes = append(out.f.EventTypes, types...)
	return out
}

// Subject restricts the query to one subject entity. Empty id is a no-op.
func (b FilterBuilder) Subject(id string) FilterBuilder {
	out := b.clone()
	out.f.SubjectID = id
	return out
}

// Principal restricts the query to one principal. Empty id is a no-op.
func (b FilterBuilder) Principal(id string) FilterBuilder {
	out := b.clone()
	out.f.PrincipalID = id
	return out
}

// Match requires dimension d to equal value.
func (b FilterBuilder) Match(d storage.Dimension, value string) FilterBuilder {
	out := b.clone()
	if out.f.Match == nil {
		out.f.Match = make(map[storage.Dimension]string)
	}
	out.f.Match[d] = value
	return out
}

// NonEmpty excludes events where any of dims is missing or empty.
func (b FilterBuilder) NonEmpty(dims ...storage.Dimension) FilterBuilder {
	out := b.clone()
	out.f.NonEmpty = append(out.f.NonEmpty, dims...)
	return out
}

// Build returns the finished filter.
func (b FilterBuilder) Build() storage.Filter {
	return b.clone().f
}

func (b FilterBuilder) clone() FilterBuilder {
	f := b.f
	if len(b.f.EventTypes) > 0 {
		f.EventTypes = append([]v1.EventType(nil), b.f.EventTypes...)
	}
	if len(b.f.NonEmpty) > 0 {
		f.NonEmpty = append([]storage.Dimension(nil), b.f.NonEmpty...)
	}
	if b.f.Match != nil {
		f.Match = make(map[storage.Dimension]string, len(b.f.Match))
		for k, v := range b.f.Match {
			f.Match[k] = v
		}
	}
	return FilterBuilder{f: f}
}
