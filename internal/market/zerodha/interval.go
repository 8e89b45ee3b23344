package zerodha

import (
	"time"

	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

type interval struct {
	kite  string
	bar   time.Duration
	group int // kite bars merged into one output bar
}

var intervals = map[string]interval{
	"1m":  {"minute", time.Minute, 1},
	"3m":  {"3minute", 3 * time.Minute, 1},
	"5m":  {"5minute", 5 * time.Minute, 1},
	"15m": {"15minute", 15 * time.Minute, 1},
	"30m": {"30minute", 30 * time.Minute, 1},
	"1h":  {"60minute", time.Hour, 1},
	"2h":  {"60minute", 2 * time.Hour, 2},
	"4h":  {"60minute", 4 * time.Hour, 4},
	"1d":  {"day", 24 * time.Hour, 1},
}

func intervalFor(tf string) (interval, error) {
	if _, err := types.ParseTimeframe(tf); err != nil {
		return interval{}, err
	}
	iv, ok := intervals[tf]
	if !ok {
		return interval{}, errors.Wrapf(types.ErrConfigurationInvalid, "timeframe %q not supported by kite", tf)
	}
	return iv, nil
}

// lookback covers limit bars of an exchange that trades about a quarter of
// the day, plus a week for weekends and holidays.
func (iv interval) lookback(limit int) time.Duration {
	span := time.Duration(limit) * iv.bar
	if iv.bar < 24*time.Hour {
		span *= 4
	} else {
		span = span * 3 / 2
	}
	return span + 7*24*time.Hour
}

// resample merges consecutive groups of n bars that fall in the same
// n-bar window of the day.
func resample(cs []types.Candle, n int) []types.Candle {
	if n <= 1 || len(cs) == 0 {
		return cs
	}
	out := make([]types.Candle, 0, len(cs)/n+1)
	bucket := time.Duration(n) * time.Hour
	for _, c := range cs {
		start := c.Time.Truncate(bucket)
		if len(out) > 0 && out[len(out)-1].Time.Equal(start) {
			b := &out[len(out)-1]
			if c.High > b.High {
				b.High = c.High
			}
			if c.Low < b.Low {
				b.Low = c.Low
			}
			b.Close = c.Close
			b.Volume += c.Volume
			continue
		}
		c.Time = start
		out = append(out, c)
	}
	return out
}

// dropForming removes a trailing bar that has not closed yet at now.
func dropForming(cs []types.Candle, bar time.Duration, now time.Time) []types.Candle {
	if n := len(cs); n > 0 && cs[n-1].Time.Add(bar).After(now) {
		return cs[:n-1]
	}
	return cs
}
