package risk

import (
	"math"

	"algo-trading-bot/internal/types"
)

// ExitLevels computes fixed stop-loss and take-profit prices for a long entry.
func ExitLevels(entry, stopLossPct, takeProfitPct, tick float64) (stop, target float64) {
	stop = roundToTick(entry*(1-stopLossPct), tick)
	target = roundToTick(entry*(1+takeProfitPct), tick)
	return stop, target
}

// CheckExit tests a bar against the position's levels. When a bar touches
// both, the stop wins.
func CheckExit(pos types.Position, c types.Candle) (price float64, reason types.ExitReason, hit bool) {
	if pos.StopLoss > 0 && c.Low <= pos.StopLoss {
		return pos.StopLoss, types.ExitStopLoss, true
	}
	if pos.TakeProfit > 0 && c.High >= pos.TakeProfit {
		return pos.TakeProfit, types.ExitTakeProfit, true
	}
	return 0, "", false
}

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}
