package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"vipbot/internal/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobStatusProvider reports the state of the background jobs.
type JobStatusProvider interface {
	GetJobStatus() map[string]interface{}
}

// BreakerState reports the outbound circuit breaker state.
type BreakerState interface {
	State() string
}

type healthCheck struct {
	pinger   Pinger
	critical bool
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	version   string
	startedAt time.Time
	checks    map[string]healthCheck
	jobs      JobStatusProvider
	breaker   BreakerState
}

// NewHealthHandlers creates a new health handlers instance. jobs and breaker may be nil.
func NewHealthHandlers(version string, jobs JobStatusProvider, breaker BreakerState) *HealthHandlers {
	return &HealthHandlers{
		version:   version,
		startedAt: time.Now(),
		checks:    make(map[string]healthCheck),
		jobs:      jobs,
		breaker:   breaker,
	}
}

// AddCheck registers a dependency. Critical dependencies fail readiness.
func (h *HealthHandlers) AddCheck(name string, pinger Pinger, critical bool) {
	h.checks[name] = healthCheck{pinger: pinger, critical: critical}
}

// RegisterRoutes mounts the health and metrics endpoints.
func (h *HealthHandlers) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.HealthCheck)
	e.GET("/health/live", h.LivenessCheck)
	e.GET("/health/ready", h.ReadinessCheck)
	e.GET("/jobs", h.JobStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// runChecks pings every dependency and reports the names that failed.
func (h *HealthHandlers) runChecks(ctx context.Context) (services map[string]string, failed, criticalFailed []string) {
	services = make(map[string]string, len(h.checks)+1)
	for name, check := range h.checks {
		if err := check.pinger.Ping(ctx); err != nil {
			services[name] = "unhealthy"
			failed = append(failed, name)
			if check.critical {
				criticalFailed = append(criticalFailed, name)
			}
			continue
		}
		services[name] = "healthy"
	}
	if h.breaker != nil {
		services["gateway_breaker"] = h.breaker.State()
	}
	sort.Strings(failed)
	sort.Strings(criticalFailed)
	return services, failed, criticalFailed
}

// HealthCheck reports every dependency. Any failure degrades the status.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	services, failed, _ := h.runChecks(ctx)
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Version:   h.version,
	}

	statusCode := http.StatusOK
	if len(failed) > 0 {
		health.Status = "degraded"
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, _, criticalFailed := h.runChecks(ctx)
	if len(criticalFailed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":      "not_ready",
			"unavailable": criticalFailed,
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "alive",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	})
}

// JobStatus lists the scheduled background jobs and their next runs.
func (h *HealthHandlers) JobStatus(c echo.Context) error {
	if h.jobs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Background jobs are not running")
	}
	return c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}
