package strategy

import (
	"fmt"
	"math"

	"algo-trading-bot/internal/ta"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

type MomentumConfig struct {
	FastPeriod    int
	SlowPeriod    int
	SignalPeriod  int
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
	TrendPeriod   int
	ATRPeriod     int
	// HistATRRatio is the histogram size, as a fraction of ATR, that earns
	// full confidence.
	HistATRRatio float64
	// CounterTrendFactor scales confidence when price sits on the wrong
	// side of the trend EMA.
	CounterTrendFactor float64
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		FastPeriod:         12,
		SlowPeriod:         26,
		SignalPeriod:       9,
		RSIPeriod:          14,
		RSIOverbought:      70,
		RSIOversold:        30,
		TrendPeriod:        50,
		ATRPeriod:          14,
		HistATRRatio:       0.1,
		CounterTrendFactor: 0.8,
	}
}

func MomentumConfigFromParams(p Params) MomentumConfig {
	d := DefaultMomentumConfig()
	return MomentumConfig{
		FastPeriod:         p.intOr("fast_period", d.FastPeriod),
		SlowPeriod:         p.intOr("slow_period", d.SlowPeriod),
		SignalPeriod:       p.intOr("signal_period", d.SignalPeriod),
		RSIPeriod:          p.intOr("rsi_period", d.RSIPeriod),
		RSIOverbought:      p.floatOr("rsi_overbought", d.RSIOverbought),
		RSIOversold:        p.floatOr("rsi_oversold", d.RSIOversold),
		TrendPeriod:        p.intOr("trend_period", d.TrendPeriod),
		ATRPeriod:          p.intOr("atr_period", d.ATRPeriod),
		HistATRRatio:       p.floatOr("hist_atr_ratio", d.HistATRRatio),
		CounterTrendFactor: p.floatOr("counter_trend_factor", d.CounterTrendFactor),
	}
}

// MomentumStrategy trades MACD histogram zero crossings filtered by RSI.
type MomentumStrategy struct {
	cfg MomentumConfig
}

func NewMomentum(cfg MomentumConfig) (*MomentumStrategy, error) {
	switch {
	case cfg.FastPeriod <= 0 || cfg.SlowPeriod <= cfg.FastPeriod || cfg.SignalPeriod <= 0:
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "macd periods %d/%d/%d",
			cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod)
	case cfg.RSIPeriod <= 0 || cfg.TrendPeriod <= 0 || cfg.ATRPeriod <= 0:
		return nil, errors.Wrap(types.ErrConfigurationInvalid, "rsi, trend and atr periods must be positive")
	case cfg.RSIOversold <= 0 || cfg.RSIOverbought >= 100 || cfg.RSIOversold >= cfg.RSIOverbought:
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "rsi bands %.1f/%.1f", cfg.RSIOversold, cfg.RSIOverbought)
	case cfg.HistATRRatio <= 0 || cfg.CounterTrendFactor <= 0 || cfg.CounterTrendFactor > 1:
		return nil, errors.Wrap(types.ErrConfigurationInvalid, "hist_atr_ratio must be positive and counter_trend_factor in (0,1]")
	}
	return &MomentumStrategy{cfg: cfg}, nil
}

func (m *MomentumStrategy) Name() string { return Momentum }

func (m *MomentumStrategy) Config() MomentumConfig { return m.cfg }

func (m *MomentumStrategy) RequiredHistory() int {
	c := m.cfg
	return maxInt(c.TrendPeriod, c.SlowPeriod+c.SignalPeriod, c.RSIPeriod+1, c.ATRPeriod+1) + 1
}

func (m *MomentumStrategy) Evaluate(candles []types.Candle) types.Signal {
	if need := m.RequiredHistory(); len(candles) < need {
		return types.HoldSignal(fmt.Sprintf("insufficient data: %d of %d candles", len(candles), need))
	}
	closes, highs, lows := series(candles)

	macd, err := ta.MACD(closes, m.cfg.FastPeriod, m.cfg.SlowPeriod, m.cfg.SignalPeriod)
	if err != nil {
		return types.HoldSignal(err.Error())
	}
	rsi, err := ta.RSI(closes, m.cfg.RSIPeriod)
	if err != nil {
		return types.HoldSignal(err.Error())
	}
	atr, err := ta.ATR(highs, lows, closes, m.cfg.ATRPeriod)
	if err != nil {
		return types.HoldSignal(err.Error())
	}
	trend := ta.EMA(closes, m.cfg.TrendPeriod)

	n := len(closes) - 1
	prev, cur := macd.Hist[n-1], macd.Hist[n]
	r := rsi[n]
	price := closes[n]
	inds := map[string]float64{
		"macd":      macd.MACD[n],
		"signal":    macd.Signal[n],
		"histogram": cur,
		"rsi":       r,
		"atr":       atr[n],
		"trend_ema": trend[n],
		"close":     price,
	}

	switch {
	case prev <= 0 && cur > 0:
		if r >= m.cfg.RSIOverbought {
			return types.Signal{Action: types.Hold, Reason: fmt.Sprintf("bullish crossover ignored, RSI %.1f overbought", r), Indicators: inds}
		}
		return types.Signal{
			Action:     types.Buy,
			Confidence: m.confidence(cur, atr[n], price >= trend[n]),
			Reason:     fmt.Sprintf("MACD bullish crossover, RSI %.1f", r),
			Indicators: inds,
		}
	case prev >= 0 && cur < 0:
		if r <= m.cfg.RSIOversold {
			return types.Signal{Action: types.Hold, Reason: fmt.Sprintf("bearish crossover ignored, RSI %.1f oversold", r), Indicators: inds}
		}
		return types.Signal{
			Action:     types.Sell,
			Confidence: m.confidence(cur, atr[n], price <= trend[n]),
			Reason:     fmt.Sprintf("MACD bearish crossover, RSI %.1f", r),
			Indicators: inds,
		}
	}
	return types.Signal{Action: types.Hold, Reason: "no MACD crossover", Indicators: inds}
}

// confidence maps histogram size relative to ATR onto [0.5, 1].
func (m *MomentumStrategy) confidence(hist, atr float64, withTrend bool) float64 {
	strength := 1.0
	if atr > 0 && !math.IsNaN(atr) {
		strength = math.Min(1, math.Abs(hist)/(atr*m.cfg.HistATRRatio))
	}
	c := 0.5 + 0.5*strength
	if !withTrend {
		c *= m.cfg.CounterTrendFactor
	}
	return clamp01(c)
}
