package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error {
	return p.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		store          HealthChecker
		expectedStatus int
	}{
		{name: "no store", store: nil, expectedStatus: http.StatusOK},
		{name: "store reachable", store: pinger{}, expectedStatus: http.StatusOK},
		{name: "store unreachable", store: pinger{err: errors.New("dial tcp: refused")}, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", tt.store, "release")

			resp := httptest.NewRecorder()
			s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.expectedStatus, resp.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(":0", nil, "release")

	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "go_goroutines")
}

func TestRun_WaitsForInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(addr, nil, "release")
	entered := make(chan struct{})
	release := make(chan struct{})
	s.Engine.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusNoContent)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	reqDone := make(chan int, 1)
	go func() {
		url := fmt.Sprintf("http://%s/slow", addr)
		for i := 0; i < 50; i++ {
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
				reqDone <- resp.StatusCode
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		reqDone <- 0
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-runDone:
		t.Fatalf("Run returned before the in-flight request finished: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the request finished")
	}
	require.Equal(t, http.StatusNoContent, <-reqDone)
}
