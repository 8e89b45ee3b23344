package engineobs

import (
	"context"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/trace"
	"algo-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Step(ctx context.Context, symbol string) (*types.CycleSummary, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Starting trading cycle",
		"symbol", symbol,
	)

	result, err := oe.engine.Step(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"symbol", symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, err
	}

	logger.InfoSkip(ctx, 1, "Trading cycle completed",
		"symbol", symbol,
		"state", string(result.State),
		"action", string(result.Signal.Action),
		"confidence", result.Signal.Confidence,
		"rejected", string(result.Rejected),
		"price", result.Price,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (oe *observableEngine) RunOnce(ctx context.Context) ([]types.CycleSummary, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunOnce")
	defer span.End()

	start := time.Now()
	sums, err := oe.engine.RunOnce(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Engine cycle failed", err)
		return nil, err
	}

	skipped := 0
	for _, s := range sums {
		if s.State == types.StateSkipped {
			skipped++
		}
	}
	logger.InfoSkip(ctx, 1, "Engine cycle completed",
		"symbols", len(sums),
		"skipped", skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sums, nil
}

func (oe *observableEngine) Run(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	err := oe.engine.Run(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Engine loop stopped with error", err)
	}
	return err
}

func (oe *observableEngine) Shutdown(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "engine.Shutdown")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Shutting down engine")
	if err := oe.engine.Shutdown(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Engine shutdown incomplete", err)
		return err
	}
	return nil
}

func (oe *observableEngine) Status() types.EngineStatus {
	return oe.engine.Status()
}
