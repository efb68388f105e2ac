// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	healthy = pingFunc(func(context.Context) error { return nil })
	failing = pingFunc(func(context.Context) error { return errors.New("down") })
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
		wantBody   string
	}{
		{
			name: "all healthy",
			checks: []Check{
				{Name: "database", Checker: healthy, Critical: true},
				{Name: "redis", Checker: healthy, Critical: true},
				{Name: "coingecko", Checker: healthy},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "upstream down degrades",
			checks: []Check{
				{Name: "database", Checker: healthy, Critical: true},
				{Name: "coingecko", Checker: failing},
			},
			wantStatus: http.StatusOK,
			wantBody:   "degraded",
		},
		{
			name: "database down fails",
			checks: []Check{
				{Name: "database", Checker: failing, Critical: true},
				{Name: "redis", Checker: healthy, Critical: true},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unavailable",
		},
		{
			name:       "missing checker",
			checks:     []Check{{Name: "redis", Critical: true}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, NewHandler(tt.checks...), "/readyz")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, body.Status)
			require.Len(t, body.Checks, len(tt.checks))
			for i, c := range tt.checks {
				assert.Equal(t, c.Name, body.Checks[i].Name)
			}
		})
	}
}

func TestShutdownAndReadyFlags(t *testing.T) {
	h := NewHandler(Check{Name: "database", Checker: healthy, Critical: true})

	rec, body := serve(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)

	h.SetReady(false)
	rec, body = serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body.Status)

	h.SetShutdown(true)
	rec, body = serve(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", body.Status)
}
