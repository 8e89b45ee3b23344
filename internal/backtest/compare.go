package backtest

import (
	"context"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/types"

	"golang.org/x/sync/errgroup"
)

// Job is one independent backtest. Jobs never share a ledger.
type Job struct {
	Symbol   string
	Strategy interfaces.Strategy
	Candles  []types.Candle
}

// Compare runs jobs in parallel, at most limit at a time (0 means no
// limit), and returns results in job order. The first failure cancels the
// remaining runs.
func Compare(ctx context.Context, cfg Config, jobs []Job, limit int) ([]*Result, error) {
	out := make([]*Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := Run(gctx, cfg, job.Strategy, job.Symbol, job.Candles)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
