package engine

import (
	"context"

	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/types"
)

// checkExit applies the fixed stop and target to the latest closed candle.
// Candles at or before the entry bar are ignored; the position was opened
// at that bar's close.
func checkExit(ctx context.Context, pos types.Position, latest types.Candle) (float64, types.ExitReason, bool) {
	if !latest.Time.After(pos.OpenedAt) {
		return 0, "", false
	}
	price, reason, hit := risk.CheckExit(pos, latest)
	if !hit {
		return 0, "", false
	}

	logger.Warn(ctx, "Exit level triggered",
		"symbol", pos.Symbol,
		"event", string(reason),
		"level", price,
		"bar_low", latest.Low,
		"bar_high", latest.High,
		"position_size", pos.Size,
		"entry_price", pos.EntryPrice,
		"unrealized_pnl", pos.UnrealizedPnL(price),
	)
	return price, reason, true
}
