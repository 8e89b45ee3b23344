// Package strategy holds stateless signal generators that read a candle
// history and decide on its last bar.
package strategy

import (
	"math"
	"sort"
	"strings"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

const (
	Momentum      = "momentum"
	MeanReversion = "mean_reversion"
)

// Params are numeric strategy settings keyed by name, e.g. "fast_period".
type Params map[string]float64

func (p Params) intOr(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

func (p Params) floatOr(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// New builds a strategy by name.
func New(name string, params Params) (interfaces.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Momentum, "macd":
		s, err := NewMomentum(MomentumConfigFromParams(params))
		if err != nil {
			return nil, err
		}
		return s, nil
	case MeanReversion, "meanreversion", "bollinger":
		s, err := NewMeanReversion(MeanReversionConfigFromParams(params))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "unknown strategy %q (available: %s)",
			name, strings.Join(Names(), ", "))
	}
}

// Names lists the strategies New accepts.
func Names() []string {
	names := []string{Momentum, MeanReversion}
	sort.Strings(names)
	return names
}

func series(candles []types.Candle) (closes, highs, lows []float64) {
	closes = make([]float64, len(candles))
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	return closes, highs, lows
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
