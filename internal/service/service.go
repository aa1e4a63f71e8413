package service

import (
	"context"
	"time"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/internal/storage/postgres"
)

// Cache is the report cache; *cache.RedisCache implements it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

type FillStore interface {
	ListFills(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error)
	ReplaceRange(ctx context.Context, start, end time.Time, load postgres.LoadFunc) (int64, error)
}

type NameStore interface {
	Upsert(ctx context.Context, names map[string]string) error
	All(ctx context.Context) (map[string]string, error)
}

type Broker interface {
	FetchHistory(ctx context.Context, start, end string) ([]byte, error)
	FetchPositions(ctx context.Context) ([]byte, error)
}

const (
	contentKeyPrefix = "analysis:content:"
	storedKeyPrefix  = "analysis:stored:"
)
