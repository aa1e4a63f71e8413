package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/internal/service"
)

type fakeAnalysis struct {
	report     *domain.Report
	err        error
	filter     domain.TradeFilter
	content    []byte
	names      map[string]string
	invalidate string
}

func (f *fakeAnalysis) AnalyzeContent(ctx context.Context, content []byte, names map[string]string) (*domain.Report, error) {
	f.content, f.names = content, names
	return f.report, f.err
}

func (f *fakeAnalysis) AnalyzeStored(ctx context.Context, filter domain.TradeFilter) (*domain.Report, error) {
	f.filter = filter
	return f.report, f.err
}

func (f *fakeAnalysis) InvalidateCache(ctx context.Context, pattern string) (int64, error) {
	f.invalidate = pattern
	return 3, nil
}

type fakeSync struct {
	start, end string
	err        error
}

func (f *fakeSync) Sync(ctx context.Context, start, end string) (*service.SyncResult, error) {
	f.start, f.end = start, end
	if f.err != nil {
		return nil, f.err
	}
	return &service.SyncResult{Start: start, End: end, Stored: 4}, nil
}

type fakeCheck struct{ err error }

func (f fakeCheck) HealthCheck(ctx context.Context) error { return f.err }

var march = domain.Month{Year: 2024, Month: 3}

func sampleReport() *domain.Report {
	return &domain.Report{
		RunID: "run-1",
		AccountMonths: []domain.AccountMonthSummary{
			{Account: "acc", Month: march, MonthlyTotalProfit: decimal.NewFromInt(12)},
		},
		Stocks: []domain.StockSummary{
			{Account: "acc", Month: march, Instrument: "A", StockTotalProfit: decimal.NewFromInt(2)},
			{Account: "acc", Month: march, Instrument: "B", StockTotalProfit: decimal.NewFromInt(10)},
		},
		Logs: []string{"done"},
	}
}

func setupApp(analysis AnalysisService, sync SyncService, checks map[string]HealthChecker) *fiber.App {
	app := fiber.New()
	handler := NewHandler(analysis, sync, nil, checks, time.UTC)
	SetupRoutes(app, handler, RouteConfig{AdminUser: "admin", AdminPassword: "pw"})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp, out
}

func adminRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:pw")))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAnalyzeDocument(t *testing.T) {
	analysis := &fakeAnalysis{report: sampleReport()}
	app := setupApp(analysis, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis",
		strings.NewReader(`{"document":{"ex_data":{"list":[]}},"names":{"A":"Alpha"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")

	resp, body := do(t, app, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Len(t, body["stock_summary"], 2)
	assert.JSONEq(t, `{"ex_data":{"list":[]}}`, string(analysis.content))
	assert.Equal(t, map[string]string{"A": "Alpha"}, analysis.names)
}

func TestAnalyzeDocument_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"missing document", `{}`, nil, http.StatusBadRequest},
		{"malformed body", `{`, nil, http.StatusBadRequest},
		{"invalid envelope", `{"document":{}}`, fmt.Errorf("%w: no list", service.ErrInvalidInput), http.StatusBadRequest},
		{"internal", `{"document":{}}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(&fakeAnalysis{err: tt.err}, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, body := do(t, app, req)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestGetAccountAnalysis(t *testing.T) {
	analysis := &fakeAnalysis{report: sampleReport()}
	app := setupApp(analysis, nil, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc/analysis?month=2024-03", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "acc", analysis.filter.Account)
	require.NotNil(t, analysis.filter.StartDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *analysis.filter.StartDate)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *analysis.filter.EndDate)

	ranked := body["ranked_stocks"].([]any)
	require.Len(t, ranked, 2)
	assert.Equal(t, "B", ranked[0].(map[string]any)["stock_code"], "highest profit first")

	_, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc/analysis?order=asc", nil))
	ranked = body["ranked_stocks"].([]any)
	assert.Equal(t, "A", ranked[0].(map[string]any)["stock_code"])
	assert.Nil(t, analysis.filter.StartDate)
}

func TestGetAccountAnalysis_Errors(t *testing.T) {
	t.Run("bad month", func(t *testing.T) {
		app := setupApp(&fakeAnalysis{report: sampleReport()}, nil, nil)
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc/analysis?month=March", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("no store", func(t *testing.T) {
		app := setupApp(&fakeAnalysis{err: service.ErrNoStore}, nil, nil)
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc/analysis", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("nothing matched", func(t *testing.T) {
		app := setupApp(&fakeAnalysis{report: &domain.Report{}}, nil, nil)
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc/analysis", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminRoutes(t *testing.T) {
	analysis := &fakeAnalysis{}
	sync := &fakeSync{}
	app := setupApp(analysis, sync, nil)

	t.Run("unauthorized", func(t *testing.T) {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:nope")))
		resp, body := do(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "admin")
		assert.Equal(t, float64(http.StatusUnauthorized), body["code"])
	})

	t.Run("sync with range", func(t *testing.T) {
		resp, body := do(t, app, adminRequest(http.MethodPost, "/api/v1/admin/sync",
			strings.NewReader(`{"start_date":"20240301","end_date":"20240331"}`)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "20240301", sync.start)
		assert.Equal(t, "20240331", sync.end)
		assert.Equal(t, float64(4), body["stored"])
	})

	t.Run("sync defaults to current month", func(t *testing.T) {
		resp, _ := do(t, app, adminRequest(http.MethodPost, "/api/v1/admin/sync", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, sync.start, 8)
		assert.True(t, strings.HasSuffix(sync.start, "01"))
	})

	t.Run("invalidate cache", func(t *testing.T) {
		resp, body := do(t, app, adminRequest(http.MethodDelete, "/api/v1/admin/cache/analysis:*", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "analysis:*", analysis.invalidate)
		assert.Equal(t, float64(3), body["deleted"])
	})

	t.Run("stats", func(t *testing.T) {
		resp, body := do(t, app, adminRequest(http.MethodGet, "/api/v1/admin/stats", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, body["database"])
		assert.NotNil(t, body["api"])
	})
}

func TestSyncBroker_NotConfigured(t *testing.T) {
	app := setupApp(&fakeAnalysis{}, nil, nil)
	resp, _ := do(t, app, adminRequest(http.MethodPost, "/api/v1/admin/sync", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdminLockedWithoutPassword(t *testing.T) {
	app := fiber.New()
	SetupRoutes(app, NewHandler(&fakeAnalysis{}, &fakeSync{}, nil, nil, nil), RouteConfig{AdminUser: "admin"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/cache/x", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:")))
	resp, _ := do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		app := setupApp(&fakeAnalysis{}, nil, map[string]HealthChecker{"database": fakeCheck{}})
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("not ready", func(t *testing.T) {
		app := setupApp(&fakeAnalysis{}, nil, map[string]HealthChecker{
			"database": fakeCheck{},
			"redis":    fakeCheck{err: errors.New("connection refused")},
		})
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "not_ready", body["status"])
	})
}

func TestHealthCheck(t *testing.T) {
	app := setupApp(&fakeAnalysis{}, nil, nil)
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}
