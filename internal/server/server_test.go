// AngelaMos | 2026
// server_test.go

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/config"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/health"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}
}

func TestServer_RouterServesRegisteredRoutes(t *testing.T) {
	hh := health.NewHandler()
	srv := New(Config{ServerConfig: testConfig(), HealthHandler: hh})
	hh.RegisterRoutes(srv.Router())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ShutdownStopsStartAndFailsProbes(t *testing.T) {
	hh := health.NewHandler()
	srv := New(Config{ServerConfig: testConfig(), HealthHandler: hh})
	hh.RegisterRoutes(srv.Router())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx, 10*time.Millisecond))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_ShutdownHonoursContextDuringDrain(t *testing.T) {
	srv := New(Config{ServerConfig: testConfig()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_ = srv.Shutdown(ctx, time.Minute)
	assert.Less(t, time.Since(start), 5*time.Second)
}
