package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/internal/grid"
	"github.com/jeovahfialho/grid-analyzer/internal/ingestion"
	"github.com/jeovahfialho/grid-analyzer/pkg/logger"
)

const dateLayout = "20060102"

// SyncService pulls trade history and positions from the broker and keeps
// the stored fills for a date range in step with it.
type SyncService struct {
	broker     Broker
	normalizer *grid.Normalizer
	loader     *ingestion.BulkLoader
	fills      FillStore
	names      NameStore
	cache      Cache
	namesFile  string
	loc        *time.Location
}

type SyncConfig struct {
	Broker     Broker
	Normalizer *grid.Normalizer
	Loader     *ingestion.BulkLoader
	Fills      FillStore
	Names      NameStore
	Cache      Cache
	NamesFile  string
	Location   *time.Location
}

func NewSyncService(cfg SyncConfig) *SyncService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SyncService{
		broker:     cfg.Broker,
		normalizer: cfg.Normalizer,
		loader:     cfg.Loader,
		fills:      cfg.Fills,
		names:      cfg.Names,
		cache:      cfg.Cache,
		namesFile:  cfg.NamesFile,
		loc:        loc,
	}
}

// FetchResult is the raw broker data for a date range.
type FetchResult struct {
	History []byte
	Trades  []domain.RawTrade
	Names   map[string]string
}

type SyncResult struct {
	Start    string   `json:"start_date"`
	End      string   `json:"end_date"`
	Fetched  int      `json:"fetched"`
	Stored   int64    `json:"stored"`
	Names    int      `json:"names"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Fetch downloads the history for [start, end] and the current position
// names. A position failure only loses the names.
func (s *SyncService) Fetch(ctx context.Context, start, end string, log *grid.RunLog) (*FetchResult, error) {
	if s.broker == nil {
		return nil, fmt.Errorf("broker credentials not configured")
	}

	history, err := s.broker.FetchHistory(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("error fetching trade history: %w", err)
	}
	trades, err := ingestion.ParseHistoryResponse(history)
	if err != nil {
		return nil, err
	}
	log.Addf("fetched %d trade record(s) for %s-%s", len(trades), start, end)

	var names map[string]string
	body, err := s.broker.FetchPositions(ctx)
	if err == nil {
		names, err = ingestion.ParsePositions(body)
	}
	if err != nil {
		log.Warnf("instrument names unavailable: %v", err)
		names = map[string]string{}
	} else {
		log.Addf("fetched %d instrument name(s)", len(names))
	}

	return &FetchResult{History: history, Trades: trades, Names: names}, nil
}

// Sync fetches [start, end] from the broker, replaces the stored fills of
// that range and merges the instrument names into storage and the names
// file.
func (s *SyncService) Sync(ctx context.Context, start, end string) (*SyncResult, error) {
	begin := time.Now()

	from, to, err := ParseDateRange(start, end, s.loc)
	if err != nil {
		return nil, err
	}
	if s.fills == nil {
		return nil, ErrNoStore
	}

	log := grid.NewRunLog(logger.WithContext(ctx).Named("sync"))

	fetched, err := s.Fetch(ctx, start, end, log)
	if err != nil {
		return nil, err
	}

	trades := inRange(s.normalizer.Normalize(fetched.Trades, log), from, to, log)

	stored, err := s.fills.ReplaceRange(ctx, from, to, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		return s.loader.LoadTrades(ctx, tx, trades)
	})
	if err != nil {
		return nil, fmt.Errorf("error storing fills: %w", err)
	}
	log.Addf("stored %d fill(s)", stored)

	if err := s.saveNames(ctx, fetched.Names); err != nil {
		log.Warnf("%v", err)
	}

	if s.cache != nil {
		if _, err := s.cache.DeletePattern(ctx, storedKeyPrefix+"*"); err != nil {
			logger.WithContext(ctx).Warn("error invalidating report cache", zap.Error(err))
		}
	}

	return &SyncResult{
		Start:    start,
		End:      end,
		Fetched:  len(fetched.Trades),
		Stored:   stored,
		Names:    len(fetched.Names),
		Logs:     log.Entries(),
		Duration: time.Since(begin).String(),
	}, nil
}

// SyncCurrentMonth is the scheduled job entry point.
func (s *SyncService) SyncCurrentMonth(ctx context.Context) (*SyncResult, error) {
	start, end := ingestion.CurrentMonthRange(time.Now().In(s.loc))
	return s.Sync(ctx, start, end)
}

func (s *SyncService) saveNames(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	if s.names != nil {
		if err := s.names.Upsert(ctx, names); err != nil {
			return fmt.Errorf("error storing names: %w", err)
		}
	}
	if s.namesFile == "" {
		return nil
	}

	merged, err := ingestion.LoadNames(s.namesFile)
	if err != nil {
		return err
	}
	for code, name := range names {
		merged[code] = name
	}
	return ingestion.SaveNames(s.namesFile, merged)
}

// ParseDateRange converts inclusive YYYYMMDD bounds into a half-open
// [from, to) interval in loc.
func ParseDateRange(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(dateLayout, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %q must be YYYYMMDD", ErrInvalidInput, start)
	}
	last, err := time.ParseInLocation(dateLayout, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %q must be YYYYMMDD", ErrInvalidInput, end)
	}
	if last.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	return from, last.AddDate(0, 0, 1), nil
}

func inRange(trades []domain.Trade, from, to time.Time, log *grid.RunLog) []domain.Trade {
	kept := trades[:0]
	for _, t := range trades {
		if !t.Time.Before(from) && t.Time.Before(to) {
			kept = append(kept, t)
		}
	}
	if dropped := len(trades) - len(kept); dropped > 0 {
		log.Warnf("%d record(s) outside the requested range were not stored", dropped)
	}
	return kept
}
