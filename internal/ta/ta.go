// Package ta computes technical indicators as series aligned to their input.
// Bars before an indicator is defined hold NaN. Inputs are never modified.
package ta

import (
	"math"

	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

var ErrInvalidPeriod = errors.New("invalid indicator period")

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final value of a series, or NaN when it is empty.
func Last(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return x[len(x)-1]
}

// SMA over a rolling window of n points.
func SMA(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n <= 0 {
		return out
	}
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= n {
			sum -= x[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA with smoothing 2/(n+1), seeded with the SMA of the first n points.
func EMA(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n <= 0 || len(x) < n {
		return out
	}
	var seed float64
	for i := 0; i < n; i++ {
		seed += x[i]
	}
	out[n-1] = seed / float64(n)
	k := 2.0 / float64(n+1)
	for i := n; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// StdDev is the rolling population standard deviation over n points.
func StdDev(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n <= 0 {
		return out
	}
	mean := SMA(x, n)
	for i := n - 1; i < len(x); i++ {
		var s float64
		for j := i - n + 1; j <= i; j++ {
			d := x[j] - mean[i]
			s += d * d
		}
		out[i] = math.Sqrt(s / float64(n))
	}
	return out
}

type MACDSeries struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
	// Start is the first index where all three series are defined.
	Start int
}

// MACD computes the line EMA(fast)-EMA(slow), its signal EMA and the
// histogram. The signal EMA is seeded with the first MACD value so every
// series is defined from index slow-1.
func MACD(closes []float64, fast, slow, signal int) (MACDSeries, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDSeries{}, errors.Wrapf(ErrInvalidPeriod, "macd(%d,%d,%d)", fast, slow, signal)
	}
	if len(closes) < slow {
		return MACDSeries{}, errors.Wrapf(types.ErrInsufficientData, "macd needs %d closes, got %d", slow, len(closes))
	}
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	n := len(closes)
	s := MACDSeries{
		MACD:   nanSeries(n),
		Signal: nanSeries(n),
		Hist:   nanSeries(n),
		Start:  slow - 1,
	}
	k := 2.0 / float64(signal+1)
	for i := slow - 1; i < n; i++ {
		s.MACD[i] = ef[i] - es[i]
		if i == slow-1 {
			s.Signal[i] = s.MACD[i]
		} else {
			s.Signal[i] = (s.MACD[i]-s.Signal[i-1])*k + s.Signal[i-1]
		}
		s.Hist[i] = s.MACD[i] - s.Signal[i]
	}
	return s, nil
}

// RSI uses Wilder smoothing seeded with the simple mean of the first period
// changes. Values are defined from index period. A zero average loss yields 100.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.Wrapf(ErrInvalidPeriod, "rsi(%d)", period)
	}
	if len(closes) < period+1 {
		return nil, errors.Wrapf(types.ErrInsufficientData, "rsi needs %d closes, got %d", period+1, len(closes))
	}
	out := nanSeries(len(closes))
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		g, l := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func split(d float64) (gain, loss float64) {
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

type Bands struct {
	Middle, Upper, Lower, StdDev []float64
}

// Bollinger bands at k population standard deviations around an n-period SMA.
func Bollinger(closes []float64, n int, k float64) (Bands, error) {
	if n <= 0 || k <= 0 {
		return Bands{}, errors.Wrapf(ErrInvalidPeriod, "bollinger(%d,%.2f)", n, k)
	}
	if len(closes) < n {
		return Bands{}, errors.Wrapf(types.ErrInsufficientData, "bollinger needs %d closes, got %d", n, len(closes))
	}
	b := Bands{
		Middle: SMA(closes, n),
		StdDev: StdDev(closes, n),
		Upper:  nanSeries(len(closes)),
		Lower:  nanSeries(len(closes)),
	}
	for i := n - 1; i < len(closes); i++ {
		b.Upper[i] = b.Middle[i] + k*b.StdDev[i]
		b.Lower[i] = b.Middle[i] - k*b.StdDev[i]
	}
	return b, nil
}

// ATR is the Wilder-smoothed average true range, defined from index period.
func ATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return nil, errors.New("atr inputs differ in length")
	}
	if period <= 0 {
		return nil, errors.Wrapf(ErrInvalidPeriod, "atr(%d)", period)
	}
	if len(closes) < period+1 {
		return nil, errors.Wrapf(types.ErrInsufficientData, "atr needs %d bars, got %d", period+1, len(closes))
	}
	out := nanSeries(len(closes))
	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(highs[i], lows[i], closes[i-1])
	}
	out[period] = sum / float64(period)
	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		out[i] = (out[i-1]*(p-1) + trueRange(highs[i], lows[i], closes[i-1])) / p
	}
	return out, nil
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
