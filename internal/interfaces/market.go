package interfaces

import (
	"context"

	"algo-trading-bot/internal/types"
)

// MarketAccess is the exchange boundary. Implementations do not retry.
type MarketAccess interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error)
	PlaceOrder(ctx context.Context, symbol string, side types.OrderSide, size float64) (types.FillResult, error)
	FetchBalance(ctx context.Context) (float64, error)
}
