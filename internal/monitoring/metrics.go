package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ms"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

type HealthCheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

// Registry bundles request metrics and named health checks for one
// daemon instance, injected rather than held in package globals.
type Registry struct {
	metrics Metrics

	mu     sync.RWMutex
	checks map[string]HealthCheckFunc
}

func NewRegistry() *Registry {
	return &Registry{
		metrics: Metrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
			StartTime:   time.Now(),
		},
		checks: make(map[string]HealthCheckFunc),
	}
}

func (r *Registry) RegisterHealthCheck(name string, check HealthCheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

func (r *Registry) RunHealthChecks() (map[string]HealthCheck, bool) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	r.mu.RUnlock()

	healthy := true
	results := make(map[string]HealthCheck, len(names))
	for _, name := range names {
		r.mu.RLock()
		check := r.checks[name]
		r.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		status, message := "healthy", ""
		if err := check(ctx); err != nil {
			status = "unhealthy"
			message = err.Error()
			healthy = false
		}
		cancel()

		results[name] = HealthCheck{
			Name:    name,
			Status:  status,
			Message: message,
			LastRun: time.Now(),
		}
	}
	return results, healthy
}

func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m := &r.metrics
		m.mu.Lock()
		m.RequestCount++
		m.totalDuration += duration
		m.RequestDuration = m.totalDuration / time.Duration(m.RequestCount)
		m.LastRequest = time.Now()

		statusCode := c.Writer.Status()
		if statusCode >= 400 {
			m.ErrorCount++
		}
		m.StatusCodes[http.StatusText(statusCode)]++
		m.Endpoints[c.Request.Method+" "+c.FullPath()]++
		m.mu.Unlock()
	}
}

func (r *Registry) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := &r.metrics
		m.mu.RLock()
		snapshot := gin.H{
			"request_count":           m.RequestCount,
			"avg_request_duration_ms": m.RequestDuration.Milliseconds(),
			"error_count":             m.ErrorCount,
			"status_codes":            m.StatusCodes,
			"endpoint_calls":          m.Endpoints,
			"uptime":                  time.Since(m.StartTime).String(),
			"last_request":            m.LastRequest,
		}
		m.mu.RUnlock()

		snapshot["goroutine_count"] = runtime.NumGoroutine()
		snapshot["go_version"] = runtime.Version()
		c.JSON(http.StatusOK, snapshot)
	}
}

func (r *Registry) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results, healthy := r.RunHealthChecks()
		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
