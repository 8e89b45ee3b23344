package types

import "github.com/pkg/errors"

var (
	// ErrInsufficientData means fewer candles than an indicator or strategy needs.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrExecutionFailed means market access failed to place or fill an order.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrFeedUnavailable means candles could not be fetched.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrConfigurationInvalid is fatal at startup.
	ErrConfigurationInvalid = errors.New("configuration invalid")
	// ErrInvalidHistory means a candle sequence is unordered or has duplicate timestamps.
	ErrInvalidHistory = errors.New("invalid candle history")

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPositionExists    = errors.New("position already open")
	ErrNoPosition        = errors.New("no open position")
)

// ValidateHistory checks that candles are strictly increasing in time.
func ValidateHistory(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			return errors.Wrapf(ErrInvalidHistory, "candle %d at %s does not follow %s",
				i, candles[i].Time.Format("2006-01-02T15:04:05Z07:00"), candles[i-1].Time.Format("2006-01-02T15:04:05Z07:00"))
		}
	}
	return nil
}
