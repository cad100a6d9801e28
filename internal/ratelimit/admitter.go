// Package ratelimit decides whether a keyed request may proceed under a
// sliding-window policy. Decisions are made by an Admitter; the in-process
// SlidingWindow serves single-instance deployments and RedisWindow shares
// the window across instances.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Policy names used in logs and metrics.
const (
	PolicyIngestion = "ingestion"
	PolicyGeneral   = "general"
)

// Default policy parameters.
const (
	DefaultIngestionLimit    = 100
	DefaultIngestionWindow   = 60 * time.Second
	DefaultGeneralGuestLimit = 100
	DefaultGeneralAuthLimit  = 500
	DefaultGeneralWindow     = 15 * time.Minute
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the oldest counted request leaves the
	// window. Zero when Allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Admitter records a request for key and reports whether it fits the window.
// A rejected request is not recorded.
type Admitter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}
