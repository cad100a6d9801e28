package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	coreerrors "github.com/aevon-lab/pulse/internal/core/errors"
	"github.com/aevon-lab/pulse/internal/metrics"
)

// Rule picks the admitter and key for a request. ok=false lets the request
// through unlimited.
type Rule func(c *gin.Context) (a Admitter, key string, ok bool)

// IngestionRule keys the batch endpoint by the first event's device.
// body returns the already-buffered request body.
func IngestionRule(a Admitter, body func(c *gin.Context) []byte) Rule {
	return func(c *gin.Context) (Admitter, string, bool) {
		key, ok := IngestionKey(body(c), NetworkAddress(c.Request))
		return a, key, ok
	}
}

// GeneralRule applies the guest or authenticated allowance depending on
// whether identity resolved a principal.
func GeneralRule(guest, authenticated Admitter, identity func(c *gin.Context) (token, principalID string)) Rule {
	return func(c *gin.Context) (Admitter, string, bool) {
		token, principalID := identity(c)
		a := guest
		if principalID != "" {
			a = authenticated
		}
		return a, GeneralKey(token, principalID, NetworkAddress(c.Request)), true
	}
}

// Middleware enforces rule under the given policy name. Backend failures
// fail open.
func Middleware(policy string, rule Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		admitter, key, ok := rule(c)
		if !ok {
			c.Next()
			return
		}

		decision, err := admitter.Admit(c.Request.Context(), key)
		if err != nil {
			slog.Warn("[Limiter] Admission check failed, allowing request",
				"policy", policy,
				"error", err)
			metrics.RateLimitErrors.WithLabelValues(policy).Inc()
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := decision.RetryAfterSeconds()
			metrics.RateLimitRejections.WithLabelValues(policy).Inc()
			slog.Info("[Limiter] Request rejected",
				"policy", policy,
				"retry_after", retryAfter)

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, coreerrors.ErrorResponse{
				Error:      "Too many requests, please try again later",
				Code:       coreerrors.CodeRateLimitExceeded,
				RetryAfter: &retryAfter,
			})
			return
		}

		c.Next()
	}
}
