package eod

import (
	"context"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/types"
)

var defaultSummarizer interfaces.EodSummarizer = NewSummarizer()

// SetDefaultSummarizer replaces the summarizer behind the package functions,
// e.g. with an observed one.
func SetDefaultSummarizer(summarizer interfaces.EodSummarizer) {
	defaultSummarizer = summarizer
}

func NewSummarizer() interfaces.EodSummarizer {
	return &eodSummarizer{now: time.Now}
}

func SummarizeDay(ctx context.Context, day time.Time) (types.DaySummary, error) {
	return defaultSummarizer.SummarizeDay(ctx, day)
}

func SummarizeToday(ctx context.Context) (types.DaySummary, error) {
	return defaultSummarizer.SummarizeToday(ctx)
}
