// Package ledger executes sized orders and tracks positions, either against
// a simulated account (paper) or through market access (live).
package ledger

import (
	"sort"
	"strings"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source used to stamp fills. Backtests pass the
// current bar time.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// New builds a ledger for mode. Live ledgers need market access.
func New(mode string, market interfaces.MarketAccess, paper PaperConfig, opts ...Option) (interfaces.Ledger, error) {
	switch strings.ToLower(mode) {
	case ModePaper:
		p, err := NewPaper(paper, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ModeLive:
		if market == nil {
			return nil, errors.Wrap(types.ErrConfigurationInvalid, "live ledger needs market access")
		}
		return NewLive(market, opts...), nil
	default:
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "unknown ledger mode %q", mode)
	}
}

func sortedPositions(m map[string]types.Position) []types.Position {
	out := make([]types.Position, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func markValue(positions map[string]types.Position, prices, marks map[string]float64) float64 {
	var total float64
	for sym, p := range positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price, ok = marks[sym]
		}
		if !ok || price <= 0 {
			price = p.EntryPrice
		}
		total += p.Size * price
	}
	return total
}

// exitLevels leaves a level at zero when its percentage is unset.
func exitLevels(order types.Order, entry float64) (stop, target float64) {
	stop, target = risk.ExitLevels(entry, order.StopLossPct, order.TakeProfitPct, order.Tick)
	if order.StopLossPct <= 0 {
		stop = 0
	}
	if order.TakeProfitPct <= 0 {
		target = 0
	}
	return stop, target
}
