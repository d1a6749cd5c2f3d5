package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/easylesson/easylesson-server/internal/app"
	iauth "github.com/easylesson/easylesson-server/internal/auth"
	"github.com/easylesson/easylesson-server/internal/database/testutil"
)

func newTestRouter(t *testing.T, cfg *app.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "easylesson-test"})
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{DB: db, JWT: jwt, Config: cfg})
	require.NoError(t, err)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true

	router := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, get(router, "/health").Code)

	// Protected endpoints reject anonymous requests.
	require.Equal(t, http.StatusUnauthorized, get(router, "/api/auth/me").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "/api/workspaces").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "/api/boards").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "/api/workspaces/invites/pending").Code)

	// Unknown routes get the JSON not-found fallback.
	w := get(router, "/definitely/not/here")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestRouterMetricsEndpoint(t *testing.T) {
	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Monitoring.Health.Enabled = true

	router := newTestRouter(t, cfg)

	// Generate some traffic, then scrape.
	require.Equal(t, http.StatusOK, get(router, "/health").Code)

	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "easylesson_api_latency_seconds")
}

func TestRouterDisabledEndpoints(t *testing.T) {
	router := newTestRouter(t, &app.Config{})

	require.Equal(t, http.StatusNotFound, get(router, "/health").Code)
	require.Equal(t, http.StatusNotFound, get(router, "/metrics").Code)
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := NewRouter(Dependencies{})
	require.Error(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, err = NewRouter(Dependencies{DB: db})
	require.Error(t, err)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret"})
	require.NoError(t, err)
	_, err = NewRouter(Dependencies{DB: db, JWT: jwt})
	require.Error(t, err)
}
