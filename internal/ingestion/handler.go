package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/auth"
	httperr "github.com/aevon-lab/pulse/internal/core/errors"
	"github.com/aevon-lab/pulse/internal/metrics"
)

const (
	bodyKey = "ingestion.body"

	msgNotAnArray    = "Request body must be a JSON array of events"
	msgEmptyBatch    = "Event array must not be empty"
	msgNoValidEvents = "No valid events in batch"
	msgTooLarge      = "Request body exceeds maximum allowed size"
	msgFaultWarning  = "Events could not be processed"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
type ingestionError struct {
	statusCode    int
	code          string
	message       string
	invalidEvents []v1.InvalidEvent
}

func (e *ingestionError) Error() string {
	return e.message
}

// captureBody buffers the request body once so the limiter and the handler
// can both read it.
func (s *Service) captureBody(c *gin.Context) {
	limited := io.LimitReader(c.Request.Body, s.maxBodyBytes+1) // +1 to detect oversized requests

	body, err := io.ReadAll(limited)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		abortWithWarning(c)
		return
	}

	if int64(len(body)) > s.maxBodyBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size",
			"size", len(body),
			"max", s.maxBodyBytes)
		writeError(c, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			code:       httperr.CodePayloadTooLarge,
			message:    msgTooLarge,
		})
		c.Abort()
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Set(bodyKey, body)
	c.Next()
}

// BufferedBody returns the body captured for this request.
func BufferedBody(c *gin.Context) []byte {
	if v, ok := c.Get(bodyKey); ok {
		if body, ok := v.([]byte); ok {
			return body
		}
	}
	return nil
}

// IngestHandler handles POST /analytics/events.
func (s *Service) IngestHandler(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Ingestion] Recovered from unexpected fault", "panic", r)
			abortWithWarning(c)
		}
	}()

	items, ierr := s.parseBatch(BufferedBody(c))
	if ierr != nil {
		metrics.IngestBatches.WithLabelValues("rejected").Inc()
		writeError(c, ierr)
		return
	}

	var principalID string
	if p := auth.PrincipalFrom(c); p != nil {
		principalID = p.ID
	}

	events, invalid := s.processBatch(items, principalID)
	metrics.IngestEvents.WithLabelValues("accepted").Add(float64(len(events)))
	metrics.IngestEvents.WithLabelValues("rejected").Add(float64(len(invalid)))

	if len(events) == 0 {
		metrics.IngestBatches.WithLabelValues("rejected").Inc()
		writeError(c, &ingestionError{
			statusCode:    http.StatusBadRequest,
			code:          httperr.CodeNoValidEvents,
			message:       msgNoValidEvents,
			invalidEvents: invalid,
		})
		return
	}

	s.writer.Enqueue(events)
	metrics.IngestBatches.WithLabelValues("accepted").Inc()

	slog.Info("[Ingestion] Batch accepted",
		"accepted", len(events),
		"rejected", len(invalid),
		"authenticated", principalID != "")

	c.JSON(http.StatusOK, v1.BatchResponse{
		Success:        true,
		EventsReceived: len(events),
		EventsRejected: len(invalid),
		InvalidEvents:  invalid,
	})
}

// parseBatch enforces the batch shape: a JSON array of 1..maxBatchSize items.
func (s *Service) parseBatch(body []byte) ([]json.RawMessage, *ingestionError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			code:       httperr.CodeInvalidPayload,
			message:    msgNotAnArray,
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(body))
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			code:       httperr.CodeInvalidPayload,
			message:    msgNotAnArray,
		}
	}

	if len(items) == 0 {
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			code:       httperr.CodeEmptyEventArray,
			message:    msgEmptyBatch,
		}
	}

	if len(items) > s.maxBatchSize {
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			code:       httperr.CodeBatchSizeExceeded,
			message:    fmt.Sprintf("Batch size exceeds maximum of %d events", s.maxBatchSize),
		}
	}

	return items, nil
}

// processBatch validates and sanitizes every item. Each item ends up in
// exactly one of the two results.
func (s *Service) processBatch(items []json.RawMessage, principalID string) ([]*v1.TelemetryEvent, []v1.InvalidEvent) {
	receivedAt := s.now().UTC()

	events := make([]*v1.TelemetryEvent, 0, len(items))
	var invalid []v1.InvalidEvent
	for i, raw := range items {
		ve, rejection := s.validator.Validate(raw)
		if rejection != nil {
			invalid = append(invalid, v1.InvalidEvent{Index: i, Error: rejection.Reason})
			continue
		}
		e := Sanitize(ve, principalID, receivedAt)
		e.ID = s.newID()
		events = append(events, e)
	}
	return events, invalid
}

// abortWithWarning answers with the success shape so telemetry faults never
// surface as errors in the client.
func abortWithWarning(c *gin.Context) {
	metrics.IngestBatches.WithLabelValues("faulted").Inc()
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, v1.BatchResponse{
		Success:        true,
		EventsReceived: 0,
		EventsRejected: 0,
		Warning:        msgFaultWarning,
	})
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		Error:         err.message,
		Code:          err.code,
		InvalidEvents: err.invalidEvents,
	})
}
