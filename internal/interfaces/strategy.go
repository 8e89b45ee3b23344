package interfaces

import "algo-trading-bot/internal/types"

// Strategy turns a candle history into a signal for its last bar.
// Implementations hold no state between calls.
type Strategy interface {
	Name() string
	RequiredHistory() int
	Evaluate(candles []types.Candle) types.Signal
}
