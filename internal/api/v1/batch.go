package v1

// InvalidEvent reports why one item of a batch was rejected.
type InvalidEvent struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResponse is the body returned by the ingestion endpoint.
// Counts come from validation only; the write outcome is never reflected here.
type BatchResponse struct {
	Success        bool           `json:"success"`
	EventsReceived int            `json:"eventsReceived"`
	EventsRejected int            `json:"eventsRejected"`
	InvalidEvents  []InvalidEvent `json:"invalidEvents,omitempty"`
	Warning        string         `json:"warning,omitempty"`
}
