package healthsrv

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/daemon"
)

type fakeSource struct {
	health daemon.Health
}

func (f fakeSource) GetHealth() daemon.Health { return f.health }

func setupTestRouter(src HealthSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	router.Use(cors.New(corsConfig))

	registerRoutes(router, src)
	return router
}

func TestHealth_OKWhenNotErrored(t *testing.T) {
	router := setupTestRouter(fakeSource{health: daemon.Health{Status: daemon.StatusRunning, Running: true}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_ServiceUnavailableWhenErrored(t *testing.T) {
	router := setupTestRouter(fakeSource{health: daemon.Health{Status: daemon.StatusErrored}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthLive_AlwaysOK(t *testing.T) {
	router := setupTestRouter(fakeSource{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReady_NotReadyWhenNotRunning(t *testing.T) {
	router := setupTestRouter(fakeSource{health: daemon.Health{Status: daemon.StatusStopped, Running: false}})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthReady_OKWhenRunning(t *testing.T) {
	router := setupTestRouter(fakeSource{health: daemon.Health{Status: daemon.StatusRunning, Running: true}})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
