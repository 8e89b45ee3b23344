package strategy

import (
	"fmt"
	"math"

	"algo-trading-bot/internal/ta"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

type MeanReversionConfig struct {
	BBPeriod      int
	BBStdDev      float64
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
}

func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		BBPeriod:      20,
		BBStdDev:      2.0,
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

func MeanReversionConfigFromParams(p Params) MeanReversionConfig {
	d := DefaultMeanReversionConfig()
	return MeanReversionConfig{
		BBPeriod:      p.intOr("bb_period", d.BBPeriod),
		BBStdDev:      p.floatOr("bb_std", d.BBStdDev),
		RSIPeriod:     p.intOr("rsi_period", d.RSIPeriod),
		RSIOverbought: p.floatOr("rsi_overbought", d.RSIOverbought),
		RSIOversold:   p.floatOr("rsi_oversold", d.RSIOversold),
	}
}

// MeanReversionStrategy fades closes outside the Bollinger bands when RSI
// agrees the move is stretched.
type MeanReversionStrategy struct {
	cfg MeanReversionConfig
}

func NewMeanReversion(cfg MeanReversionConfig) (*MeanReversionStrategy, error) {
	if cfg.BBPeriod < 2 || cfg.BBStdDev <= 0 || cfg.RSIPeriod <= 0 {
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "bollinger %d/%.2f rsi %d",
			cfg.BBPeriod, cfg.BBStdDev, cfg.RSIPeriod)
	}
	if cfg.RSIOversold <= 0 || cfg.RSIOverbought >= 100 || cfg.RSIOversold >= cfg.RSIOverbought {
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "rsi bands %.1f/%.1f", cfg.RSIOversold, cfg.RSIOverbought)
	}
	return &MeanReversionStrategy{cfg: cfg}, nil
}

func (s *MeanReversionStrategy) Name() string { return MeanReversion }

func (s *MeanReversionStrategy) RequiredHistory() int {
	return maxInt(s.cfg.BBPeriod, s.cfg.RSIPeriod+1) + 1
}

func (s *MeanReversionStrategy) Evaluate(candles []types.Candle) types.Signal {
	if need := s.RequiredHistory(); len(candles) < need {
		return types.HoldSignal(fmt.Sprintf("insufficient data: %d of %d candles", len(candles), need))
	}
	closes, _, _ := series(candles)

	bands, err := ta.Bollinger(closes, s.cfg.BBPeriod, s.cfg.BBStdDev)
	if err != nil {
		return types.HoldSignal(err.Error())
	}
	rsi, err := ta.RSI(closes, s.cfg.RSIPeriod)
	if err != nil {
		return types.HoldSignal(err.Error())
	}

	n := len(closes) - 1
	price, upper, lower, sd := closes[n], bands.Upper[n], bands.Lower[n], bands.StdDev[n]
	r := rsi[n]
	width := upper - lower
	inds := map[string]float64{
		"bb_upper":  upper,
		"bb_middle": bands.Middle[n],
		"bb_lower":  lower,
		"rsi":       r,
		"close":     price,
	}
	if width <= 0 || sd <= 0 {
		return types.Signal{Action: types.Hold, Reason: "bands have zero width", Indicators: inds}
	}
	inds["band_position"] = (price - lower) / width

	switch {
	case price <= lower && r < s.cfg.RSIOversold:
		return types.Signal{
			Action:     types.Buy,
			Confidence: penetrationConfidence(lower-price, sd),
			Reason:     fmt.Sprintf("close %.4f at or below lower band %.4f, RSI %.1f", price, lower, r),
			Indicators: inds,
		}
	case price >= upper && r > s.cfg.RSIOverbought:
		return types.Signal{
			Action:     types.Sell,
			Confidence: penetrationConfidence(price-upper, sd),
			Reason:     fmt.Sprintf("close %.4f at or above upper band %.4f, RSI %.1f", price, upper, r),
			Indicators: inds,
		}
	}
	return types.Signal{Action: types.Hold, Reason: "price inside bands", Indicators: inds}
}

// penetrationConfidence is 0.6 at the band and reaches 1 one standard
// deviation beyond it.
func penetrationConfidence(depth, sd float64) float64 {
	return clamp01(0.6 + 0.4*math.Min(1, depth/sd))
}
