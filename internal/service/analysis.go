package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/internal/grid"
	"github.com/jeovahfialho/grid-analyzer/internal/ingestion"
	"github.com/jeovahfialho/grid-analyzer/pkg/logger"
	"github.com/jeovahfialho/grid-analyzer/pkg/metrics"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoStore      = errors.New("trade storage not configured")
)

type AnalysisService struct {
	analyzer *grid.Analyzer
	reader   *ingestion.FileReader
	cache    Cache
	fills    FillStore
	names    NameStore
}

func NewAnalysisService(analyzer *grid.Analyzer, reader *ingestion.FileReader) *AnalysisService {
	return &AnalysisService{analyzer: analyzer, reader: reader}
}

// WithCache enables report caching. Passing nil leaves caching off.
func (s *AnalysisService) WithCache(c Cache) *AnalysisService {
	s.cache = c
	return s
}

// WithStore enables analysis of fills synced into postgres.
func (s *AnalysisService) WithStore(fills FillStore, names NameStore) *AnalysisService {
	s.fills = fills
	s.names = names
	return s
}

// AnalyzeContent runs the pipeline over one broker JSON document.
func (s *AnalysisService) AnalyzeContent(ctx context.Context, content []byte, names map[string]string) (*domain.Report, error) {
	raw, err := ingestion.ParseEnvelope(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := contentKeyPrefix + contentHash(content, names)
	if report, ok := s.cached(ctx, key); ok {
		metrics.RecordAnalysisRequest("content", true)
		return report, nil
	}
	metrics.RecordAnalysisRequest("content", false)

	report := s.analyzer.Run(raw, names, grid.NewRunLog(logger.WithContext(ctx)))
	s.store(ctx, key, report)
	return report, nil
}

// AnalyzeFiles parses exported files concurrently and analyzes their
// concatenation. Files that cannot be read are reported as warnings in the
// run log and returned as errors; the remaining files are still analyzed.
func (s *AnalysisService) AnalyzeFiles(ctx context.Context, paths []string, names map[string]string) (*domain.Report, []error) {
	metrics.RecordAnalysisRequest("files", false)

	raw, errs := ingestion.Concat(s.reader.ReadFiles(ctx, paths))

	log := grid.NewRunLog(logger.WithContext(ctx))
	for _, err := range errs {
		log.Warnf("%v", err)
	}
	return s.analyzer.Run(raw, names, log), errs
}

// AnalyzeStored analyzes fills previously synced into postgres, using the
// stored instrument names.
func (s *AnalysisService) AnalyzeStored(ctx context.Context, filter domain.TradeFilter) (*domain.Report, error) {
	if s.fills == nil {
		return nil, ErrNoStore
	}

	key := storedKey(filter)
	if report, ok := s.cached(ctx, key); ok {
		metrics.RecordAnalysisRequest("stored", true)
		return report, nil
	}
	metrics.RecordAnalysisRequest("stored", false)

	trades, err := s.fills.ListFills(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error loading fills: %w", err)
	}

	log := grid.NewRunLog(logger.WithContext(ctx))

	var names map[string]string
	if s.names != nil {
		names, err = s.names.All(ctx)
		if err != nil {
			log.Warnf("instrument names unavailable: %v", err)
			names = nil
		}
	}

	report := s.analyzer.RunTrades(trades, names, log)
	s.store(ctx, key, report)
	return report, nil
}

// InvalidateCache drops cached reports matching pattern, e.g.
// "analysis:stored:*".
func (s *AnalysisService) InvalidateCache(ctx context.Context, pattern string) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.DeletePattern(ctx, pattern)
}

func (s *AnalysisService) cached(ctx context.Context, key string) (*domain.Report, bool) {
	if s.cache == nil {
		return nil, false
	}

	var report domain.Report
	if err := s.cache.Get(ctx, key, &report); err != nil {
		metrics.RecordCacheMiss()
		return nil, false
	}
	metrics.RecordCacheHit()
	return &report, true
}

func (s *AnalysisService) store(ctx context.Context, key string, report *domain.Report) {
	if s.cache == nil || report.Empty() {
		return
	}
	if err := s.cache.Set(ctx, key, report); err != nil {
		logger.WithContext(ctx).Warn("error caching report", zap.String("key", key), zap.Error(err))
	}
}

func contentHash(content []byte, names map[string]string) string {
	h := sha256.New()
	h.Write(content)

	codes := make([]string, 0, len(names))
	for code := range names {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		h.Write([]byte{0})
		h.Write([]byte(code))
		h.Write([]byte{'='})
		h.Write([]byte(names[code]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func storedKey(filter domain.TradeFilter) string {
	return fmt.Sprintf("%s%s:%s:%s", storedKeyPrefix, filter.Account, formatBound(filter.StartDate), formatBound(filter.EndDate))
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "all"
	}
	return t.UTC().Format(time.RFC3339)
}
