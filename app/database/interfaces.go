package database

import "context"

type KVRepository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type DailyPicksRepository interface {
	GetDailyPicks(ctx context.Context, date string) (*DailyPicks, error)
	GetLatestDailyPicks(ctx context.Context) (*DailyPicks, error)
	SaveDailyPicks(ctx context.Context, picks DailyPicks) error
	DeleteDailyPicksBefore(ctx context.Context, date string) (int64, error)
}
