package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventType_Known(t *testing.T) {
	tests := []struct {
		name string
		in   EventType
		want bool
	}{
		{name: "screen view", in: EventScreenView, want: true},
		{name: "search performed", in: EventSearchPerformed, want: true},
		{name: "login succeeded", in: EventLoginSucceeded, want: true},
		{name: "unknown", in: "purchase_completed", want: false},
		{name: "empty", in: "", want: false},
		{name: "case sensitive", in: "SCREEN_VIEW", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Known())
		})
	}
}

func TestEventTypes_SortedAndComplete(t *testing.T) {
	types := EventTypes()
	require.Len(t, types, len(catalog))
	for i := 1; i < len(types); i++ {
		require.Less(t, string(types[i-1]), string(types[i]))
	}
}

func TestTelemetryEvent_Actor(t *testing.T) {
	principal := "user-42"
	empty := ""

	withPrincipal := TelemetryEvent{DeviceID: "device-0001", PrincipalID: &principal}
	require.Equal(t, "user-42", withPrincipal.Actor())

	guest := TelemetryEvent{DeviceID: "device-0001"}
	require.Equal(t, "device-0001", guest.Actor())

	blank := TelemetryEvent{DeviceID: "device-0001", PrincipalID: &empty}
	require.Equal(t, "device-0001", blank.Actor())
}

func TestTelemetryEvent_ExpiresAt(t *testing.T) {
	received := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	evt := TelemetryEvent{ReceivedAt: received}
	require.Equal(t, received.AddDate(0, 0, 90), evt.ExpiresAt(90*24*time.Hour))
}

func TestBatchResponse_OmitsEmptyOptionalFields(t *testing.T) {
	body, err := json.Marshal(BatchResponse{Success: true, EventsReceived: 3})
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"eventsReceived":3,"eventsRejected":0}`, string(body))

	body, err = json.Marshal(BatchResponse{
		Success:        true,
		EventsReceived: 1,
		EventsRejected: 1,
		InvalidEvents:  []InvalidEvent{{Index: 1, Error: "Invalid event type: nope"}},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{
		"success": true,
		"eventsReceived": 1,
		"eventsRejected": 1,
		"invalidEvents": [{"index": 1, "error": "Invalid event type: nope"}]
	}`, string(body))
}
