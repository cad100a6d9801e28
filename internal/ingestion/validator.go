package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
)

const (
	// MaxFutureSkew is how far ahead of server time a client clock may run.
	MaxFutureSkew = 5 * time.Minute
	// MaxEventAge bounds how old a buffered event may be when it arrives.
	MaxEventAge = 365 * 24 * time.Hour
)

var requiredFields = []string{"eventType", "timestamp", "deviceId", "appVersion", "osVersion"}

// Field shape rules, checked with validator.Var.
const (
	ruleDeviceID    = "min=10,max=255"
	ruleVersion     = "max=20"
	rulePrincipalID = "max=255"
	// Postgres text columns cannot hold NUL.
	ruleNoNUL = "excludesrune=\x00"
)

// Rejection explains why an item was not accepted.
type Rejection struct {
	Reason string
}

// ValidatedEvent is a batch item that passed every check. Context holds the
// item's raw fields for the sanitizer.
type ValidatedEvent struct {
	EventType   v1.EventType
	Timestamp   time.Time
	DeviceID    string
	AppVersion  string
	OSVersion   string
	PrincipalID string
	Context     map[string]interface{}
}

// Validator applies the per-item acceptance checks in a fixed order and
// stops at the first failure.
type Validator struct {
	fields *validator.Validate
	now    func() time.Time
}

// NewValidator creates a Validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{
		fields: validator.New(),
		now:    time.Now,
	}
}

// Validate checks one raw batch item. It never panics; every malformed shape
// becomes a Rejection.
func (v *Validator) Validate(raw json.RawMessage) (ValidatedEvent, *Rejection) {
	item, ok := decodeObject(raw)
	if !ok {
		return ValidatedEvent{}, reject("Event must be a JSON object")
	}

	for _, field := range requiredFields {
		if missing(item[field]) {
			return ValidatedEvent{}, reject("Missing required field: %s", field)
		}
	}

	eventType, ok := item["eventType"].(string)
	if !ok || !v1.EventType(eventType).Known() {
		return ValidatedEvent{}, reject("Invalid event type: %v", item["eventType"])
	}

	ts, ok := parseTimestamp(item["timestamp"])
	if !ok {
		return ValidatedEvent{}, reject("Invalid timestamp format")
	}

	now := v.now()
	if ts.After(now.Add(MaxFutureSkew)) {
		return ValidatedEvent{}, reject("Timestamp cannot be more than 5 minutes in the future")
	}
	if ts.Before(now.Add(-MaxEventAge)) {
		return ValidatedEvent{}, reject("Timestamp cannot be more than 1 year in the past")
	}

	deviceID, ok := item["deviceId"].(string)
	if !ok || v.fields.Var(deviceID, ruleDeviceID) != nil {
		return ValidatedEvent{}, reject("deviceId must be a string between 10 and 255 characters")
	}
	if v.fields.Var(deviceID, ruleNoNUL) != nil {
		return ValidatedEvent{}, reject("deviceId must not contain NUL characters")
	}

	appVersion, ok := item["appVersion"].(string)
	if !ok || v.fields.Var(appVersion, ruleVersion) != nil {
		return ValidatedEvent{}, reject("appVersion must be a string of at most 20 characters")
	}
	if v.fields.Var(appVersion, ruleNoNUL) != nil {
		return ValidatedEvent{}, reject("appVersion must not contain NUL characters")
	}

	osVersion, ok := item["osVersion"].(string)
	if !ok || v.fields.Var(osVersion, ruleVersion) != nil {
		return ValidatedEvent{}, reject("osVersion must be a string of at most 20 characters")
	}
	if v.fields.Var(osVersion, ruleNoNUL) != nil {
		return ValidatedEvent{}, reject("osVersion must not contain NUL characters")
	}

	var principalID string
	if p, present := item["principalId"]; present && p != nil {
		s, ok := p.(string)
		if !ok || v.fields.Var(s, rulePrincipalID) != nil {
			return ValidatedEvent{}, reject("principalId must be a string of at most 255 characters")
		}
		if v.fields.Var(s, ruleNoNUL) != nil {
			return ValidatedEvent{}, reject("principalId must not contain NUL characters")
		}
		principalID = s
	}

	return ValidatedEvent{
		EventType:   v1.EventType(eventType),
		Timestamp:   ts.UTC(),
		DeviceID:    deviceID,
		AppVersion:  appVersion,
		OSVersion:   osVersion,
		PrincipalID: principalID,
		Context:     item,
	}, nil
}

func reject(format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

func decodeObject(raw json.RawMessage) (map[string]interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var item map[string]interface{}
	if err := dec.Decode(&item); err != nil || item == nil {
		return nil, false
	}
	return item, true
}

func missing(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// parseTimestamp accepts an RFC3339 string or epoch milliseconds.
func parseTimestamp(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case json.Number:
		ms, err := val.Float64()
		if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > 1e15 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
	return time.Time{}, false
}
