package storage

import (
	"fmt"
	"strconv"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
)

// DimensionValue renders the value of d for a single event, using the same
// formatting the SQL adapter produces. Missing values render as "".
func DimensionValue(e *v1.TelemetryEvent, d Dimension) string {
	ts := e.Timestamp.UTC()
	switch d {
	case DimEventType:
		return string(e.EventType)
	case DimDevice:
		return e.DeviceID
	case DimPrincipal:
		return deref(e.PrincipalID)
	case DimActor:
		return e.Actor()
	case DimScreen:
		return deref(e.ScreenName)
	case DimSubjectID:
		return deref(e.SubjectID)
	case DimSubjectName:
		return deref(e.SubjectName)
	case DimCity:
		return deref(e.City)
	case DimVenue:
		return deref(e.VenueName)
	case DimLinkType:
		return deref(e.LinkType)
	case DimSearchQuery:
		return deref(e.SearchQuery)
	case DimFilterType:
		return deref(e.FilterType)
	case DimFilterValue:
		return deref(e.FilterValue)
	case DimHourOfDay:
		return strconv.Itoa(ts.Hour())
	case DimDayOfWeek:
		return strconv.Itoa(int(ts.Weekday()))
	case DimISOWeek:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case DimDay:
		return ts.Format("2006-01-02")
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
