package ingestion

import (
	"strings"
	"time"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
)

// DefaultFieldCap applies to every free-text field without a tighter cap.
const DefaultFieldCap = 1000

type contextField struct {
	name string
	cap  int
	set  func(e *v1.TelemetryEvent, v *string)
}

var contextFields = []contextField{
	{name: "screenName", cap: 50, set: func(e *v1.TelemetryEvent, v *string) { e.ScreenName = v }},
	{name: "eventId", cap: 255, set: func(e *v1.TelemetryEvent, v *string) { e.SubjectID = v }},
	{name: "eventName", cap: DefaultFieldCap, set: func(e *v1.TelemetryEvent, v *string) { e.SubjectName = v }},
	{name: "city", cap: 100, set: func(e *v1.TelemetryEvent, v *string) { e.City = v }},
	{name: "venueName", cap: DefaultFieldCap, set: func(e *v1.TelemetryEvent, v *string) { e.VenueName = v }},
	{name: "linkType", cap: 50, set: func(e *v1.TelemetryEvent, v *string) { e.LinkType = v }},
	{name: "searchQuery", cap: DefaultFieldCap, set: func(e *v1.TelemetryEvent, v *string) { e.SearchQuery = v }},
	{name: "filterType", cap: 50, set: func(e *v1.TelemetryEvent, v *string) { e.FilterType = v }},
	{name: "filterValue", cap: DefaultFieldCap, set: func(e *v1.TelemetryEvent, v *string) { e.FilterValue = v }},
}

// Sanitize builds the stored record from a validated item. principalID, when
// non-empty, replaces whatever the client sent. ID is left for the caller.
func Sanitize(ve ValidatedEvent, principalID string, receivedAt time.Time) *v1.TelemetryEvent {
	e := &v1.TelemetryEvent{
		EventType:  ve.EventType,
		Timestamp:  ve.Timestamp,
		DeviceID:   ve.DeviceID,
		AppVersion: ve.AppVersion,
		OSVersion:  ve.OSVersion,
		ReceivedAt: receivedAt,
	}

	for _, f := range contextFields {
		f.set(e, optionalText(ve.Context[f.name], f.cap))
	}

	if principalID != "" {
		e.PrincipalID = &principalID
	} else {
		e.PrincipalID = optionalText(ve.PrincipalID, 255)
	}
	return e
}

var textStripper = strings.NewReplacer("<", "", ">", "", "\x00", "")

func optionalText(v interface{}, limit int) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	cleaned := cleanText(s, limit)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// cleanText removes angle brackets and NUL, trims, and truncates to limit runes.
// cleanText(cleanText(s)) == cleanText(s).
func cleanText(s string, limit int) string {
	s = strings.TrimSpace(textStripper.Replace(s))
	runes := []rune(s)
	if len(runes) > limit {
		s = strings.TrimSpace(string(runes[:limit]))
	}
	return s
}
