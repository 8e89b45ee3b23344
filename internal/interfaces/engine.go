package interfaces

import (
	"context"

	"algo-trading-bot/internal/types"
)

type Engine interface {
	Step(ctx context.Context, symbol string) (*types.CycleSummary, error)
	RunOnce(ctx context.Context) ([]types.CycleSummary, error)
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Status() types.EngineStatus
}
