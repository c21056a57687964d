package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vipbot/internal/metrics"
	"vipbot/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubJobs struct{}

func (stubJobs) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{"total_jobs": 2}
}

type stubBreaker struct{}

func (stubBreaker) State() string { return "closed" }

func serve(e *echo.Echo, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name         string
		ledgerErr    error
		telegramErr  error
		expectedCode int
		expectedBody string
	}{
		{"all healthy", nil, nil, http.StatusOK, "healthy"},
		{"gateway down", nil, errors.New("timeout"), http.StatusPartialContent, "degraded"},
		{"ledger down", errors.New("permission denied"), nil, http.StatusPartialContent, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandlers("1.2.3", nil, stubBreaker{})
			h.AddCheck("ledger", stubPinger{tt.ledgerErr}, true)
			h.AddCheck("telegram", stubPinger{tt.telegramErr}, false)
			e := echo.New()
			h.RegisterRoutes(e)

			rec := serve(e, http.MethodGet, "/health", "", nil)
			assert.Equal(t, tt.expectedCode, rec.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.expectedBody, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Equal(t, "closed", status.Services["gateway_breaker"])
		})
	}
}

func TestReadinessOnlyFailsOnCriticalChecks(t *testing.T) {
	h := NewHealthHandlers("dev", nil, nil)
	h.AddCheck("telegram", stubPinger{errors.New("timeout")}, false)
	e := echo.New()
	h.RegisterRoutes(e)

	rec := serve(e, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddCheck("intake_store", stubPinger{errors.New("connection refused")}, true)
	rec = serve(e, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "intake_store")
	assert.NotContains(t, rec.Body.String(), "telegram")
}

func TestLivenessAndJobs(t *testing.T) {
	e := echo.New()
	NewHealthHandlers("dev", nil, nil).RegisterRoutes(e)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/jobs", "", nil).Code)

	e = echo.New()
	NewHealthHandlers("dev", stubJobs{}, nil).RegisterRoutes(e)
	rec := serve(e, http.MethodGet, "/jobs", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_jobs":2`)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.InitMetrics()
	e := echo.New()
	NewHealthHandlers("dev", nil, nil).RegisterRoutes(e)

	rec := serve(e, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type MockWebhookReceiver struct {
	mock.Mock
}

func (m *MockWebhookReceiver) ReceiveWebhook(ctx context.Context, r *http.Request, handler models.EventHandler) error {
	args := m.Called(ctx, r, handler)
	return args.Error(0)
}

type noopEvents struct{}

func (noopEvents) Handle(ctx context.Context, event models.Event) {}

func TestWebhookSecret(t *testing.T) {
	tests := []struct {
		name         string
		secret       string
		header       string
		receiveErr   error
		expectCall   bool
		expectedCode int
	}{
		{"matching secret", "s3cret", "s3cret", nil, true, http.StatusOK},
		{"wrong secret", "s3cret", "guess", nil, false, http.StatusUnauthorized},
		{"missing header", "s3cret", "", nil, false, http.StatusUnauthorized},
		{"no secret configured", "", "", nil, true, http.StatusOK},
		{"undecodable update", "", "", errors.New("unexpected EOF"), true, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver := new(MockWebhookReceiver)
			if tt.expectCall {
				receiver.On("ReceiveWebhook", mock.Anything, mock.Anything, mock.Anything).Return(tt.receiveErr).Once()
			}

			e := echo.New()
			e.POST("/webhook", NewWebhookHandlers(receiver, noopEvents{}, tt.secret).Receive)

			header := map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON}
			if tt.header != "" {
				header[SecretTokenHeader] = tt.header
			}
			rec := serve(e, http.MethodPost, "/webhook", `{"update_id":1}`, header)

			assert.Equal(t, tt.expectedCode, rec.Code)
			receiver.AssertExpectations(t)
			if !tt.expectCall {
				receiver.AssertNotCalled(t, "ReceiveWebhook", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
