package interfaces

import (
	"context"
	"time"

	"algo-trading-bot/internal/types"
)

// EodSummarizer rolls a UTC day of closed trades into a report file.
type EodSummarizer interface {
	SummarizeDay(ctx context.Context, day time.Time) (types.DaySummary, error)
	SummarizeToday(ctx context.Context) (types.DaySummary, error)
}
