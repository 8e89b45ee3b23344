package engine

import (
	"context"
	"sync"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/types"
)

// riskManager owns the shared equity pool. Snapshotting equity, sizing and
// reserving cash for an in-flight buy happen under one lock so parallel
// symbols never spend the same cash twice.
type riskManager struct {
	mu       sync.Mutex
	ledger   interfaces.Ledger
	sizer    *risk.Sizer
	profile  risk.Profile
	reserved float64
}

func newRiskManager(l interfaces.Ledger, sizer *risk.Sizer, profile risk.Profile) *riskManager {
	return &riskManager{ledger: l, sizer: sizer, profile: profile}
}

// size returns the sizer outcome. An accepted buy reserves its notional
// until release is called.
func (rm *riskManager) size(ctx context.Context, symbol string, sig types.Signal, price float64, at time.Time) risk.Outcome {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var open *types.Position
	if pos, ok := rm.ledger.Position(symbol); ok {
		open = &pos
	}
	equity := rm.ledger.MarkToMarket(map[string]float64{symbol: price})
	available := rm.ledger.Cash() - rm.reserved

	out := rm.sizer.Size(risk.Request{
		Symbol:        symbol,
		Signal:        sig,
		Profile:       rm.profile,
		Equity:        equity,
		AvailableCash: available,
		Price:         price,
		Open:          open,
		Time:          at,
	})

	switch {
	case out.Rejected && out.Reason == types.RejectHold:
	case out.Rejected:
		logger.Risk(ctx, symbol, string(out.Reason),
			"detail", out.Detail,
			"equity", equity,
			"available_cash", available,
			"confidence", sig.Confidence,
		)
	case out.Order.Side == types.SideBuy:
		rm.reserved += out.Order.Notional
	}
	return out
}

func (rm *riskManager) release(notional float64) {
	rm.mu.Lock()
	rm.reserved -= notional
	if rm.reserved < 1e-9 {
		rm.reserved = 0
	}
	rm.mu.Unlock()
}

func (rm *riskManager) equity() float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.ledger.MarkToMarket(nil)
}
