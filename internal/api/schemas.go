package api

import (
	"encoding/json"
	"time"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

// AnalysisRequest carries a broker JSON document, exactly as exported, and
// an optional code -> name mapping.
type AnalysisRequest struct {
	Document json.RawMessage   `json:"document"`
	Names    map[string]string `json:"names,omitempty"`
}

type AnalysisResponse struct {
	*domain.Report
	ProcessingTime string `json:"processing_time,omitempty"`
}

type AccountAnalysisResponse struct {
	Account        string                `json:"account_name"`
	Month          string                `json:"month,omitempty"`
	RankedStocks   []domain.StockSummary `json:"ranked_stocks"`
	Report         *domain.Report        `json:"report"`
	ProcessingTime string                `json:"processing_time,omitempty"`
}

type SyncRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SystemStatsResponse struct {
	Database *DatabaseStats `json:"database,omitempty"`
	API      APIStats       `json:"api"`
}

type DatabaseStats struct {
	ActiveConnections int32  `json:"active_connections"`
	IdleConnections   int32  `json:"idle_connections"`
	TotalConnections  int32  `json:"total_connections"`
	WaitCount         int64  `json:"wait_count"`
	WaitDuration      string `json:"wait_duration"`
}

type APIStats struct {
	MemoryUsed       string `json:"memory_used"`
	ActiveGoroutines int    `json:"active_goroutines"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
