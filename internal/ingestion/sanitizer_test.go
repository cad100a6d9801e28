package ingestion

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
)

func validated(ctx map[string]interface{}) ValidatedEvent {
	return ValidatedEvent{
		EventType:  v1.EventViewed,
		Timestamp:  testNow,
		DeviceID:   "device-0001",
		AppVersion: "2.4.1",
		OSVersion:  "iOS 17.2",
		Context:    ctx,
	}
}

func TestSanitize_ContextFields(t *testing.T) {
	receivedAt := testNow.Add(time.Second)
	e := Sanitize(validated(map[string]interface{}{
		"eventId":    "  evt-42 ",
		"eventName":  "<b>Jazz Night</b>",
		"city":       "Lisbon",
		"venueName":  "   ",
		"screenName": 12,
	}), "", receivedAt)

	require.Equal(t, "evt-42", *e.SubjectID)
	require.Equal(t, "bJazz Night/b", *e.SubjectName)
	require.Equal(t, "Lisbon", *e.City)
	require.Nil(t, e.VenueName, "blank text is dropped")
	require.Nil(t, e.ScreenName, "non-string values are dropped")
	require.Nil(t, e.SearchQuery)
	require.Equal(t, receivedAt, e.ReceivedAt)
	require.Empty(t, e.ID)
}

func TestSanitize_Caps(t *testing.T) {
	e := Sanitize(validated(map[string]interface{}{
		"screenName":  strings.Repeat("s", 80),
		"city":        strings.Repeat("é", 150),
		"searchQuery": strings.Repeat("q", 2000),
	}), "", testNow)

	require.Len(t, *e.ScreenName, 50)
	require.Equal(t, 100, len([]rune(*e.City)))
	require.Len(t, *e.SearchQuery, DefaultFieldCap)
}

func TestSanitize_StripsNUL(t *testing.T) {
	e := Sanitize(validated(map[string]interface{}{
		"searchQuery": "a\x00b",
		"eventName":   "\x00\x00",
		"filterValue": " \x00jazz ",
	}), "", testNow)

	require.Equal(t, "ab", *e.SearchQuery)
	require.Nil(t, e.SubjectName, "NUL-only text is dropped")
	require.Equal(t, "jazz", *e.FilterValue)
}

func TestSanitize_PrincipalOverride(t *testing.T) {
	ve := validated(nil)
	ve.PrincipalID = "spoofed"

	e := Sanitize(ve, "user-1", testNow)
	require.Equal(t, "user-1", *e.PrincipalID)

	e = Sanitize(ve, "", testNow)
	require.Equal(t, "spoofed", *e.PrincipalID)

	ve.PrincipalID = ""
	e = Sanitize(ve, "", testNow)
	require.Nil(t, e.PrincipalID)
}

func TestCleanText_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"  <script>alert(1)</script>  ",
		"<<>>",
		strings.Repeat("a", 49) + " b",
		strings.Repeat("ü", 60),
		"a\x00b",
		"<\x00> x\x00",
	}
	for _, in := range inputs {
		once := cleanText(in, 50)
		require.Equal(t, once, cleanText(once, 50), "input %q", in)
		require.NotContains(t, once, "<")
		require.NotContains(t, once, ">")
		require.NotContains(t, once, "\x00")
		require.LessOrEqual(t, len([]rune(once)), 50)
	}
}
