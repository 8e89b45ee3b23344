package marketobs

import (
	"context"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/trace"
	"algo-trading-bot/internal/types"
)

// observableMarket wraps MarketAccess with observability (logging & tracing)
type observableMarket struct {
	market interfaces.MarketAccess
}

// Compile-time interface check
var _ interfaces.MarketAccess = (*observableMarket)(nil)

// Wrap wraps market access with observability middleware
func Wrap(market interfaces.MarketAccess) interfaces.MarketAccess {
	return &observableMarket{
		market: market,
	}
}

// FetchCandles fetches candles with observability
func (om *observableMarket) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "market.FetchCandles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching candles", "symbol", symbol, "timeframe", timeframe, "limit", limit)

	candles, err := om.market.FetchCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "timeframe", timeframe)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched successfully", "symbol", symbol, "count", len(candles))
	return candles, nil
}

// PlaceOrder places an order with observability
func (om *observableMarket) PlaceOrder(ctx context.Context, symbol string, side types.OrderSide, size float64) (types.FillResult, error) {
	ctx, span := trace.StartSpan(ctx, "market.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order", "symbol", symbol, "side", side, "size", size)

	fill, err := om.market.PlaceOrder(ctx, symbol, side, size)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err, "symbol", symbol, "side", side, "size", size)
		return types.FillResult{}, err
	}

	logger.InfoSkip(ctx, 1, "Order filled",
		"symbol", symbol,
		"order_id", fill.OrderID,
		"price", fill.Price,
		"size", fill.Size,
		"fee", fill.Fee,
	)
	return fill, nil
}

// FetchBalance fetches the account balance with observability
func (om *observableMarket) FetchBalance(ctx context.Context) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "market.FetchBalance")
	defer span.End()

	bal, err := om.market.FetchBalance(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balance", err)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Balance fetched", "balance", bal)
	return bal, nil
}
