package projection

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	httperr "github.com/aevon-lab/pulse/internal/core/errors"
	"github.com/aevon-lab/pulse/internal/core/storage"
	"github.com/aevon-lab/pulse/internal/core/storage/memory"
	storagemocks "github.com/aevon-lab/pulse/internal/mocks/storage"
)

func newTestRouter(store storage.EventStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(store)
	svc.nowFn = func() time.Time { return testNow }

	r := gin.New()
	svc.RegisterRoutes(r.Group("/analytics"))
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestHandlers_StatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedCode   string
		configureStore func(store *storagemocks.EventStore)
	}{
		{
			name:           "inverted range returns 400",
			target:         "/analytics/overview?startDate=2026-02-10&endDate=2026-02-01",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   httperr.CodeInvalidDateRange,
			configureStore: func(_ *storagemocks.EventStore) {},
		},
		{
			name:           "unparseable date returns 400",
			target:         "/analytics/search?startDate=last-week",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   httperr.CodeInvalidDateRange,
			configureStore: func(_ *storagemocks.EventStore) {},
		},
		{
			name:           "non-numeric limit returns 400",
			target:         "/analytics/geographic?limit=many",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   httperr.CodeInvalidQuery,
			configureStore: func(_ *storagemocks.EventStore) {},
		},
		{
			name:           "limit above maximum returns 400",
			target:         "/analytics/events/popular?limit=500",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   httperr.CodeInvalidQuery,
			configureStore: func(_ *storagemocks.EventStore) {},
		},
		{
			name:           "store error returns 500",
			target:         "/analytics/funnels",
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   httperr.CodeInternalError,
			configureStore: func(store *storagemocks.EventStore) {
				store.EXPECT().
					Count(mock.Anything, mock.Anything).
					Return(nil, storage.ErrUnavailable).
					Once()
			},
		},
		{
			name:           "overview sub-query error returns 500",
			target:         "/analytics/overview",
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   httperr.CodeInternalError,
			configureStore: func(store *storagemocks.EventStore) {
				store.EXPECT().
					Count(mock.Anything, mock.Anything).
					Return(nil, errors.New("connection refused")).
					Maybe()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storagemocks.NewEventStore(t)
			tt.configureStore(store)

			resp := get(newTestRouter(store), tt.target)

			require.Equal(t, tt.expectedStatus, resp.Code)
			var errResp httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
			require.Equal(t, tt.expectedCode, errResp.Code)
			if tt.expectedStatus == http.StatusInternalServerError {
				require.NotContains(t, resp.Body.String(), "connection refused")
			}
		})
	}
}

func TestHandlers_DefaultWindow(t *testing.T) {
	store := storagemocks.NewEventStore(t)
	store.EXPECT().
		Count(mock.Anything, mock.MatchedBy(func(q storage.Query) bool {
			return q.Filter.Start.Equal(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)) &&
				q.Filter.End.Equal(time.Date(2026, 2, 11, 23, 59, 59, 999999999, time.UTC))
		})).
		Return([]storage.Group{{Keys: map[storage.Dimension]string{}, Count: 0}}, nil)

	resp := get(newTestRouter(store), "/analytics/users/engagement")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestHandlers_Success(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, []*v1.TelemetryEvent{
		event(v1.EventViewed, day(2, 8), "device-0001", subject("concert-1")),
		event(v1.EventClicked, day(2, 9), "device-0001", subject("concert-1")),
		event(v1.EventLinkClicked, day(2, 9), "device-0001", subject("concert-1"), linkType("tickets")),
	})
	r := newTestRouter(store)

	routes := []string{
		"/analytics/search",
		"/analytics/events/performance?eventId=concert-1",
		"/analytics/events/popular?limit=5",
		"/analytics/users/engagement",
		"/analytics/geographic",
		"/analytics/filters",
		"/analytics/screen-flow",
		"/analytics/links",
		"/analytics/time",
		"/analytics/funnels",
		"/analytics/overview",
	}
	for _, route := range routes {
		resp := get(r, route+sep(route)+"startDate=2026-02-01&endDate=2026-02-10")
		require.Equal(t, http.StatusOK, resp.Code, route)
	}

	resp := get(r, "/analytics/events/performance?startDate=2026-02-01&endDate=2026-02-10&eventId=concert-1")
	var perf EventPerformance
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &perf))
	require.Equal(t, []EntityCTR{{EventID: "concert-1", Views: 1, Clicks: 1, CTR: 100}}, perf.ClickThroughRates)
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), perf.Period.StartDate)

	resp = get(r, "/analytics/overview?startDate=2026-02-01&endDate=2026-02-10")
	var overview Overview
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &overview))
	require.Equal(t, int64(1), overview.TotalViews)
	require.Equal(t, int64(1), overview.TotalLinkClicks)
	require.Equal(t, &EntityCount{EventID: "concert-1", Count: 1}, overview.MostViewedEvent)
}

func sep(route string) string {
	if strings.Contains(route, "?") {
		return "&"
	}
	return "?"
}
