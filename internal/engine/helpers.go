package engine

import (
	"time"

	"algo-trading-bot/internal/types"
)

// barSettle gives the exchange a moment to publish the bar that just closed.
const barSettle = 2 * time.Second

// nextTick returns when the next cycle should start: now+poll when a poll
// interval is set, otherwise just after the next timeframe boundary.
func nextTick(now time.Time, timeframe string, poll time.Duration) (time.Time, error) {
	if poll > 0 {
		return now.Add(poll), nil
	}
	d, err := types.ParseTimeframe(timeframe)
	if err != nil {
		return time.Time{}, err
	}
	return now.UTC().Truncate(d).Add(d).Add(barSettle), nil
}

func settledState(hasPosition bool) types.CycleState {
	if hasPosition {
		return types.StatePositionOpen
	}
	return types.StateIdle
}
