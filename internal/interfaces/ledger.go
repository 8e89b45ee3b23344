package interfaces

import (
	"context"

	"algo-trading-bot/internal/types"
)

type Ledger interface {
	Mode() string
	Open(ctx context.Context, order types.Order) (types.Position, error)
	Close(ctx context.Context, pos types.Position, exitPrice float64, reason types.ExitReason) (types.ClosedTrade, error)
	// MarkToMarket values cash plus open positions at the given prices.
	// Symbols missing from prices use their last mark, else the entry price.
	MarkToMarket(prices map[string]float64) float64
	Cash() float64
	Position(symbol string) (types.Position, bool)
	Positions() []types.Position
	History() []types.ClosedTrade
}
