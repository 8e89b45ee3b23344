package eodobs

import (
	"context"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/trace"
	"algo-trading-bot/internal/types"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
	now        func() time.Time
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
		now:        time.Now,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(ctx context.Context, day time.Time) (types.DaySummary, error) {
	return oes.observe(ctx, "eod.SummarizeDay", day, func(ctx context.Context) (types.DaySummary, error) {
		return oes.summarizer.SummarizeDay(ctx, day)
	})
}

func (oes *observableEodSummarizer) SummarizeToday(ctx context.Context) (types.DaySummary, error) {
	return oes.observe(ctx, "eod.SummarizeToday", oes.now(), oes.summarizer.SummarizeToday)
}

func (oes *observableEodSummarizer) observe(ctx context.Context, span string, day time.Time, fn func(context.Context) (types.DaySummary, error)) (types.DaySummary, error) {
	ctx, sp := trace.StartSpan(ctx, span)
	defer sp.End()

	date := day.UTC().Format("2006-01-02")
	start := time.Now()

	sum, err := fn(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "EOD summary failed", err, "date", date)
		return sum, err
	}
	if sum.Path == "" {
		logger.InfoSkip(ctx, 2, "No closed trades for EOD summary", "date", date)
		return sum, nil
	}

	logger.InfoSkip(ctx, 2, "EOD summary written",
		"date", date,
		"path", sum.Path,
		"trades", sum.Trades,
		"net_pnl", sum.NetPnL,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sum, nil
}
