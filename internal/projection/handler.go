package projection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/pulse/internal/core/aggregation"
	httperr "github.com/aevon-lab/pulse/internal/core/errors"
	"github.com/aevon-lab/pulse/internal/metrics"
)

// queryParams are the query-string parameters shared by every metric endpoint.
type queryParams struct {
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Limit     int    `form:"limit"`
	EventID   string `form:"eventId"`
}

type metricFunc func(ctx context.Context, r aggregation.DateRange, p queryParams) (interface{}, error)

// RegisterRoutes registers the metric endpoints on r. Callers mount r behind
// the app gate, principal, role and limiter middleware.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/search", s.handle("search", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.SearchMetrics(ctx, dr, p.Limit)
	}))
	r.GET("/events/performance", s.handle("event_performance", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.EventPerformance(ctx, dr, p.Limit, p.EventID)
	}))
	r.GET("/events/popular", s.handle("popular_events", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.PopularEvents(ctx, dr, p.Limit)
	}))
	r.GET("/users/engagement", s.handle("user_engagement", func(ctx context.Context, dr aggregation.DateRange, _ queryParams) (interface{}, error) {
		return s.UserEngagement(ctx, dr)
	}))
	r.GET("/geographic", s.handle("geographic", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.Geographic(ctx, dr, p.Limit)
	}))
	r.GET("/filters", s.handle("filters", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.FilterMetrics(ctx, dr, p.Limit)
	}))
	r.GET("/screen-flow", s.handle("screen_flow", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.ScreenFlow(ctx, dr, p.Limit)
	}))
	r.GET("/links", s.handle("links", func(ctx context.Context, dr aggregation.DateRange, p queryParams) (interface{}, error) {
		return s.LinkMetrics(ctx, dr, p.Limit, p.EventID)
	}))
	r.GET("/time", s.handle("time_distribution", func(ctx context.Context, dr aggregation.DateRange, _ queryParams) (interface{}, error) {
		return s.TimeDistribution(ctx, dr)
	}))
	r.GET("/funnels", s.handle("funnels", func(ctx context.Context, dr aggregation.DateRange, _ queryParams) (interface{}, error) {
		return s.Funnels(ctx, dr)
	}))
	r.GET("/overview", s.handle("overview", func(ctx context.Context, dr aggregation.DateRange, _ queryParams) (interface{}, error) {
		return s.Overview(ctx, dr)
	}))
}

// handle binds the shared parameters, resolves the date window and maps
// errors onto the HTTP error shape.
func (s *Service) handle(metric string, run metricFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params queryParams
		if err := c.ShouldBindQuery(&params); err != nil {
			s.reject(c, metric, http.StatusBadRequest, httperr.CodeInvalidQuery, "Invalid query parameters", err.Error())
			return
		}

		dr, err := aggregation.ParseDateRange(params.StartDate, params.EndDate, s.nowFn())
		if err != nil {
			s.reject(c, metric, http.StatusBadRequest, httperr.CodeInvalidDateRange, "Invalid date range", err.Error())
			return
		}

		resp, err := run(c.Request.Context(), dr, params)
		if err != nil {
			if errors.Is(err, ErrInvalidQuery) {
				s.reject(c, metric, http.StatusBadRequest, httperr.CodeInvalidQuery, "Invalid analytics query", err.Error())
				return
			}

			slog.Error("[Projection] Metric query failed",
				"metric", metric,
				"error", err)
			s.reject(c, metric, http.StatusInternalServerError, httperr.CodeInternalError, "Failed to compute analytics", nil)
			return
		}

		metrics.AggregationQueries.WithLabelValues(metric, "ok").Inc()
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Service) reject(c *gin.Context, metric string, status int, code, message string, details interface{}) {
	metrics.AggregationQueries.WithLabelValues(metric, code).Inc()
	c.JSON(status, httperr.ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
