package v1

import (
	"sort"
	"time"
)

// EventType is the client-declared name of a telemetry event.
// Only members of the fixed catalog below are accepted at ingestion.
type EventType string

const (
	EventAppOpened           EventType = "app_opened"
	EventAppBackgrounded     EventType = "app_backgrounded"
	EventScreenView          EventType = "screen_view"
	EventListViewed          EventType = "events_list_viewed"
	EventViewed              EventType = "event_viewed"
	EventClicked             EventType = "event_clicked"
	EventShared              EventType = "event_shared"
	EventFavorited           EventType = "event_favorited"
	EventUnfavorited         EventType = "event_unfavorited"
	EventLinkClicked         EventType = "link_clicked"
	EventSearchPerformed     EventType = "search_performed"
	EventSearchResultClicked EventType = "search_result_clicked"
	EventFilterApplied       EventType = "filter_applied"
	EventFilterCleared       EventType = "filter_cleared"
	EventCitySelected        EventType = "city_selected"
	EventMapViewed           EventType = "map_viewed"
	EventNotificationOpened  EventType = "notification_opened"
	EventLoginSucceeded      EventType = "login_succeeded"
	EventLoginFailed         EventType = "login_failed"
	EventSignupCompleted     EventType = "signup_completed"
	EventLogout              EventType = "logout"
)

var catalog = map[EventType]struct{}{
	EventAppOpened:           {},
	EventAppBackgrounded:     {},
	EventScreenView:          {},
	EventListViewed:          {},
	EventViewed:              {},
	EventClicked:             {},
	EventShared:              {},
	EventFavorited:           {},
	EventUnfavorited:         {},
	EventLinkClicked:         {},
	EventSearchPerformed:     {},
	EventSearchResultClicked: {},
	EventFilterApplied:       {},
	EventFilterCleared:       {},
	EventCitySelected:        {},
	EventMapViewed:           {},
	EventNotificationOpened:  {},
	EventLoginSucceeded:      {},
	EventLoginFailed:         {},
	EventSignupCompleted:     {},
	EventLogout:              {},
}

// Known reports whether t belongs to the accepted event catalog.
func (t EventType) Known() bool {
	_, ok := catalog[t]
	return ok
}

// EventTypes returns the accepted catalog in lexical order.
func EventTypes() []EventType {
	out := make([]EventType, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TelemetryEvent is the atomic unit of ingestion.
// It is created once by the ingestion path and never mutated afterwards.
type TelemetryEvent struct {
	// ID is assigned by the server when the event is accepted.
	ID string `json:"id"`

	EventType EventType `json:"eventType"`

	// Timestamp is the client clock reading for when the event happened.
	Timestamp time.Time `json:"timestamp"`

	// DeviceID identifies the installation. Present on every stored record and
	// used as the session proxy when no principal was resolved.
	DeviceID string `json:"deviceId"`

	// PrincipalID is the resolved caller identity when the request was
	// authenticated; otherwise whatever the client supplied, if anything.
	PrincipalID *string `json:"principalId,omitempty"`

	AppVersion string `json:"appVersion"`
	OSVersion  string `json:"osVersion"`

	// --- Context attributes (each independently nullable) ---

	ScreenName  *string `json:"screenName,omitempty"`
	SubjectID   *string `json:"eventId,omitempty"`
	SubjectName *string `json:"eventName,omitempty"`
	City        *string `json:"city,omitempty"`
	VenueName   *string `json:"venueName,omitempty"`
	LinkType    *string `json:"linkType,omitempty"`
	SearchQuery *string `json:"searchQuery,omitempty"`
	FilterType  *string `json:"filterType,omitempty"`
	FilterValue *string `json:"filterValue,omitempty"`

	// ReceivedAt is the server clock reading at acceptance. Expiry is measured from it.
	ReceivedAt time.Time `json:"receivedAt"`
}

// ExpiresAt returns the instant after which the event is eligible for purging.
func (e *TelemetryEvent) ExpiresAt(ttl time.Duration) time.Time {
	return e.ReceivedAt.Add(ttl)
}

// Actor returns the identity used for per-user rollups: the principal when
// known, the device otherwise.
func (e *TelemetryEvent) Actor() string {
	if e.PrincipalID != nil && *e.PrincipalID != "" {
		return *e.PrincipalID
	}
	return e.DeviceID
}
