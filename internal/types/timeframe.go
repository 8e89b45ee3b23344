package types

import (
	"time"

	"github.com/pkg/errors"
)

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe converts a bar size such as "1h" into its duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, errors.Wrapf(ErrConfigurationInvalid, "unknown timeframe %q", tf)
	}
	return d, nil
}

// BarsForDays returns how many bars of timeframe tf cover the given number of days.
func BarsForDays(tf string, days int) (int, error) {
	d, err := ParseTimeframe(tf)
	if err != nil {
		return 0, err
	}
	return int(time.Duration(days) * 24 * time.Hour / d), nil
}
