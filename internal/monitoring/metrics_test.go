package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareCountsRequestsAndErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()

	router := gin.New()
	router.Use(registry.Middleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/metrics", registry.MetricsHandler())

	for _, path := range []string{"/ok", "/ok", "/bad"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	registry.metrics.mu.RLock()
	defer registry.metrics.mu.RUnlock()
	if registry.metrics.RequestCount != 3 {
		t.Errorf("expected 3 requests, got %d", registry.metrics.RequestCount)
	}
	if registry.metrics.ErrorCount != 1 {
		t.Errorf("expected 1 error, got %d", registry.metrics.ErrorCount)
	}
	if registry.metrics.Endpoints["GET /ok"] != 2 {
		t.Errorf("expected 2 calls to /ok, got %d", registry.metrics.Endpoints["GET /ok"])
	}
}

func TestHealthHandlerReportsFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	registry.RegisterHealthCheck("healthy", func(ctx context.Context) error { return nil })
	registry.RegisterHealthCheck("broken", func(ctx context.Context) error { return errors.New("down") })

	router := gin.New()
	router.GET("/healthz", registry.HealthHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "down") {
		t.Errorf("expected failing check message in body, got %s", w.Body.String())
	}
}

func TestHealthHandlerAllHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	registry.RegisterHealthCheck("healthy", func(ctx context.Context) error { return nil })

	router := gin.New()
	router.GET("/healthz", registry.HealthHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
