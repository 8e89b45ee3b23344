package engine

import (
	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/store"
)

func New(cfg *store.Config, market interfaces.MarketAccess, l interfaces.Ledger, strat interfaces.Strategy, opts ...Option) (interfaces.Engine, error) {
	e, err := newEngine(cfg, market, l, strat, opts...)
	if err != nil {
		return nil, err
	}
	return e, nil
}
