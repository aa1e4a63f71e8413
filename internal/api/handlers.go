package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/internal/grid"
	"github.com/jeovahfialho/grid-analyzer/internal/ingestion"
	"github.com/jeovahfialho/grid-analyzer/internal/service"
	"github.com/jeovahfialho/grid-analyzer/internal/storage/postgres"
	"github.com/jeovahfialho/grid-analyzer/pkg/logger"
)

const version = "1.0.0"

type AnalysisService interface {
	AnalyzeContent(ctx context.Context, content []byte, names map[string]string) (*domain.Report, error)
	AnalyzeStored(ctx context.Context, filter domain.TradeFilter) (*domain.Report, error)
	InvalidateCache(ctx context.Context, pattern string) (int64, error)
}

type SyncService interface {
	Sync(ctx context.Context, start, end string) (*service.SyncResult, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	analysis AnalysisService
	sync     SyncService
	db       *postgres.DB
	checks   map[string]HealthChecker
	loc      *time.Location
}

// NewHandler wires the handlers. sync and db may be nil when the broker or
// the database are not configured.
func NewHandler(analysis AnalysisService, sync SyncService, db *postgres.DB, checks map[string]HealthChecker, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		analysis: analysis,
		sync:     sync,
		db:       db,
		checks:   checks,
		loc:      loc,
	}
}

func (h *Handler) requestContext(c *fiber.Ctx) context.Context {
	return logger.NewContext(c.UserContext(), getRequestID(c))
}

func errorJSON(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNoStore):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ingestion.ErrBrokerResponse):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// AnalyzeDocument runs a full analysis over an uploaded broker document.
func (h *Handler) AnalyzeDocument(c *fiber.Ctx) error {
	start := time.Now()

	var req AnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Document) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "document is required")
	}

	report, err := h.analysis.AnalyzeContent(h.requestContext(c), req.Document, req.Names)
	if err != nil {
		code := statusFor(err)
		if code == fiber.StatusInternalServerError {
			logger.Error("error analyzing document",
				zap.String("request_id", getRequestID(c)),
				zap.Error(err))
			return errorJSON(c, code, "error analyzing document")
		}
		return errorJSON(c, code, err.Error())
	}

	return c.JSON(AnalysisResponse{
		Report:         report,
		ProcessingTime: time.Since(start).String(),
	})
}

// GetAccountAnalysis analyzes the stored fills of one account. The month
// query (YYYY-MM) narrows both the fills and the ranking; start_date and
// end_date (YYYY-MM-DD) bound the fills; order=asc flips the ranking.
func (h *Handler) GetAccountAnalysis(c *fiber.Ctx) error {
	start := time.Now()
	account := c.Params("account")

	filter := domain.TradeFilter{Account: account}
	rank := grid.StockFilter{Account: account, Ascending: c.Query("order") == "asc"}

	if monthStr := c.Query("month"); monthStr != "" {
		month, err := domain.ParseMonth(monthStr)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid month format (use YYYY-MM)")
		}
		from := time.Date(month.Year, month.Month, 1, 0, 0, 0, 0, h.loc)
		to := from.AddDate(0, 1, 0)
		filter.StartDate, filter.EndDate = &from, &to
		rank.Month = &month
	}

	if dateStr := c.Query("start_date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid start date (use YYYY-MM-DD)")
		}
		filter.StartDate = &parsed
	}
	if dateStr := c.Query("end_date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid end date (use YYYY-MM-DD)")
		}
		next := parsed.AddDate(0, 0, 1)
		filter.EndDate = &next
	}

	report, err := h.analysis.AnalyzeStored(h.requestContext(c), filter)
	if err != nil {
		code := statusFor(err)
		if code == fiber.StatusInternalServerError {
			logger.Error("error analyzing stored fills",
				zap.String("account", account),
				zap.String("request_id", getRequestID(c)),
				zap.Error(err))
			return errorJSON(c, code, "error analyzing stored fills")
		}
		return errorJSON(c, code, err.Error())
	}

	if report.Empty() {
		return errorJSON(c, fiber.StatusNotFound, fmt.Sprintf("no matched trades found for account %s", account))
	}

	return c.JSON(AccountAnalysisResponse{
		Account:        account,
		Month:          c.Query("month"),
		RankedStocks:   grid.FilterStocks(report.Stocks, rank),
		Report:         report,
		ProcessingTime: time.Since(start).String(),
	})
}

// SyncBroker pulls a date range (YYYYMMDD, default current month) from the
// broker into storage.
func (h *Handler) SyncBroker(c *fiber.Ctx) error {
	if h.sync == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "broker sync not configured")
	}

	var req SyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if req.StartDate == "" || req.EndDate == "" {
		first, last := ingestion.CurrentMonthRange(time.Now().In(h.loc))
		if req.StartDate == "" {
			req.StartDate = first
		}
		if req.EndDate == "" {
			req.EndDate = last
		}
	}

	result, err := h.sync.Sync(h.requestContext(c), req.StartDate, req.EndDate)
	if err != nil {
		code := statusFor(err)
		logger.Error("error syncing broker data",
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
			zap.Error(err))
		return errorJSON(c, code, err.Error())
	}

	return c.JSON(result)
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	pattern := c.Params("pattern", "*")

	deleted, err := h.analysis.InvalidateCache(c.UserContext(), pattern)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "error invalidating cache")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"deleted": deleted,
		"message": fmt.Sprintf("cache invalidated for pattern: %s", pattern),
	})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth)
	for name, checker := range h.checks {
		start := time.Now()
		if err := checker.HealthCheck(ctx); err != nil {
			services[name] = ServiceHealth{
				Status: "unhealthy",
				Error:  err.Error(),
			}
			continue
		}
		services[name] = ServiceHealth{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	status := "ready"
	for _, svc := range services {
		if svc.Status != "healthy" {
			status = "not_ready"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		API: APIStats{
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
			ActiveGoroutines: runtime.NumGoroutine(),
		},
	}

	if h.db != nil {
		dbStats := h.db.Stats()
		response.Database = &DatabaseStats{
			ActiveConnections: dbStats.AcquiredConns(),
			IdleConnections:   dbStats.IdleConns(),
			TotalConnections:  dbStats.TotalConns(),
			WaitCount:         dbStats.EmptyAcquireCount(),
			WaitDuration:      dbStats.AcquireDuration().String(),
		}
	}

	return c.JSON(response)
}
