// Package risk derives position sizing parameters from a risk level and
// turns signals into orders.
package risk

import (
	"fmt"

	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

const (
	MinLevel = 1
	MaxLevel = 10

	DefaultStopLossPct   = 0.02
	DefaultTakeProfitPct = 0.04
)

// Profile is fixed for the lifetime of an engine.
type Profile struct {
	Level           int     `json:"level"`
	PositionSizePct float64 `json:"position_size_pct"`
	MinConfidence   float64 `json:"min_confidence"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
}

type anchor struct {
	level         int
	sizePct       float64
	minConfidence float64
}

// Levels between anchors are interpolated linearly.
var anchors = []anchor{
	{level: 1, sizePct: 0.01, minConfidence: 0.90},
	{level: 5, sizePct: 0.05, minConfidence: 0.70},
	{level: 10, sizePct: 0.10, minConfidence: 0.50},
}

// ProfileForLevel returns the profile for level with default exit percentages.
func ProfileForLevel(level int) (Profile, error) {
	return NewProfile(level, DefaultStopLossPct, DefaultTakeProfitPct)
}

// NewProfile rejects out-of-range input rather than clamping it.
func NewProfile(level int, stopLossPct, takeProfitPct float64) (Profile, error) {
	if level < MinLevel || level > MaxLevel {
		return Profile{}, errors.Wrapf(types.ErrConfigurationInvalid, "risk level %d outside %d..%d", level, MinLevel, MaxLevel)
	}
	if stopLossPct <= 0 || stopLossPct >= 1 {
		return Profile{}, errors.Wrapf(types.ErrConfigurationInvalid, "stop loss %.4f outside (0,1)", stopLossPct)
	}
	if takeProfitPct <= 0 || takeProfitPct >= 1 {
		return Profile{}, errors.Wrapf(types.ErrConfigurationInvalid, "take profit %.4f outside (0,1)", takeProfitPct)
	}

	p := Profile{Level: level, StopLossPct: stopLossPct, TakeProfitPct: takeProfitPct}
	for i := 0; i < len(anchors)-1; i++ {
		a, b := anchors[i], anchors[i+1]
		if level < a.level || level > b.level {
			continue
		}
		frac := float64(level-a.level) / float64(b.level-a.level)
		p.PositionSizePct = a.sizePct + frac*(b.sizePct-a.sizePct)
		p.MinConfidence = a.minConfidence + frac*(b.minConfidence-a.minConfidence)
		break
	}
	return p, nil
}

func (p Profile) String() string {
	return fmt.Sprintf("level %d: size %.1f%%, min confidence %.2f, SL %.1f%%, TP %.1f%%",
		p.Level, p.PositionSizePct*100, p.MinConfidence, p.StopLossPct*100, p.TakeProfitPct*100)
}
