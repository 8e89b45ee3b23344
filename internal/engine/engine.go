// Package engine runs the signal-to-position pipeline for a set of symbols:
// fetch candles, check exits, evaluate the strategy, size, execute.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/store"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// costed is implemented by ledgers that simulate fill costs.
type costed interface {
	EntryCosts() risk.Costs
}

// syncer is implemented by ledgers that mirror an exchange balance.
type syncer interface {
	Sync(ctx context.Context) error
}

type Engine struct {
	cfg      *store.Config
	market   interfaces.MarketAccess
	ledger   interfaces.Ledger
	strategy interfaces.Strategy
	profile  risk.Profile
	now      func() time.Time
	onCycle  func([]types.CycleSummary)

	risk    *riskManager
	exec    *orderExecutor
	symbols *symbolStates
	running atomic.Bool
	statsMu sync.Mutex
	stats   types.SessionStats
}

var _ interfaces.Engine = (*Engine)(nil)

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCycleHook is called by Run with the summaries of every cycle.
func WithCycleHook(fn func([]types.CycleSummary)) Option {
	return func(e *Engine) { e.onCycle = fn }
}

// WithoutJournal disables the signal and trade journal.
func WithoutJournal() Option {
	return func(e *Engine) { e.exec.journal = false }
}

func newEngine(cfg *store.Config, market interfaces.MarketAccess, l interfaces.Ledger, strat interfaces.Strategy, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	sizer := risk.NewSizer(cfg.Risk.Instrument, cfg.Risk.PerSymbol)
	if c, ok := l.(costed); ok {
		sizer.WithCosts(c.EntryCosts())
	}
	e := &Engine{
		cfg:      cfg,
		market:   market,
		ledger:   l,
		strategy: strat,
		profile:  profile,
		now:      time.Now,
		risk:     newRiskManager(l, sizer, profile),
		exec:     newOrderExecutor(l, true),
		symbols:  newSymbolStates(cfg.Symbols),
	}
	for _, o := range opts {
		o(e)
	}
	e.stats.StartedAt = e.now()
	for _, pos := range l.Positions() {
		if st, ok := e.symbols.get(pos.Symbol); ok {
			e.symbols.set(st, types.StatePositionOpen)
		}
	}
	return e, nil
}

func (e *Engine) count(fn func(*types.SessionStats)) {
	e.statsMu.Lock()
	fn(&e.stats)
	e.statsMu.Unlock()
}

// Step runs one cycle for symbol. Feed and execution failures come back as
// a SKIPPED summary together with the error; engine state is unchanged.
func (e *Engine) Step(ctx context.Context, symbol string) (*types.CycleSummary, error) {
	st, ok := e.symbols.get(symbol)
	if !ok {
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "symbol %s is not configured", symbol)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	e.count(func(s *types.SessionStats) { s.Cycles++ })
	e.symbols.set(st, types.StateAwaitingSignal)

	sum, err := e.cycle(ctx, symbol)
	_, hasPos := e.ledger.Position(symbol)
	e.symbols.set(st, settledState(hasPos))

	if err != nil {
		e.count(func(s *types.SessionStats) { s.Errors++ })
		sum.State = types.StateSkipped
		sum.Err = err.Error()
		logger.ErrorWithErr(ctx, "Cycle skipped", err, "symbol", symbol)
		return sum, err
	}
	return sum, nil
}

func (e *Engine) cycle(ctx context.Context, symbol string) (*types.CycleSummary, error) {
	sum := &types.CycleSummary{Symbol: symbol, State: types.StateAwaitingSignal, Signal: types.HoldSignal("")}

	limit := e.strategy.RequiredHistory() + e.cfg.Engine.CandleMargin
	candles, err := e.market.FetchCandles(ctx, symbol, e.cfg.Timeframe, limit)
	if err != nil {
		if !errors.Is(err, types.ErrFeedUnavailable) {
			err = errors.Wrapf(types.ErrFeedUnavailable, "fetch %s: %v", symbol, err)
		}
		return sum, err
	}
	if len(candles) == 0 {
		return sum, errors.Wrapf(types.ErrFeedUnavailable, "no candles for %s", symbol)
	}
	if err := types.ValidateHistory(candles); err != nil {
		return sum, errors.Wrapf(types.ErrFeedUnavailable, "%s: %v", symbol, err)
	}

	latest := candles[len(candles)-1]
	sum.Price, sum.Time = latest.Close, latest.Time

	if pos, ok := e.ledger.Position(symbol); ok {
		if level, reason, hit := checkExit(ctx, pos, latest); hit {
			trade, err := e.exec.close(ctx, pos, level, reason)
			if err != nil {
				return sum, err
			}
			e.count(func(s *types.SessionStats) { s.Closed++ })
			sum.State = types.StateClosed
			sum.Trade = &trade
			sum.Reason = string(reason)
			return sum, nil
		}
	}

	sig := e.strategy.Evaluate(candles)
	sum.Signal = sig
	if sig.Action != types.Hold {
		e.count(func(s *types.SessionStats) { s.Signals++ })
	}

	out := e.risk.size(ctx, symbol, sig, latest.Close, latest.Time)
	if out.Rejected {
		if out.Reason != types.RejectHold {
			e.count(func(s *types.SessionStats) { s.Rejections++ })
		}
		sum.State = types.StateRejected
		sum.Rejected = out.Reason
		sum.Reason = out.Detail
		if pos, ok := e.ledger.Position(symbol); ok {
			sum.Position = &pos
		}
		e.exec.logSignal(ctx, sum, out.Detail)
		return sum, nil
	}

	switch out.Order.Side {
	case types.SideBuy:
		pos, err := e.exec.open(ctx, out.Order)
		e.risk.release(out.Order.Notional)
		if err != nil {
			return sum, err
		}
		e.count(func(s *types.SessionStats) { s.Opened++ })
		sum.State = types.StateOpened
		sum.Position = &pos
	case types.SideSell:
		pos, _ := e.ledger.Position(symbol)
		trade, err := e.exec.close(ctx, pos, latest.Close, types.ExitSignal)
		if err != nil {
			return sum, err
		}
		e.count(func(s *types.SessionStats) { s.Closed++ })
		sum.State = types.StateClosed
		sum.Trade = &trade
	}
	sum.Reason = sig.Reason
	e.exec.logSignal(ctx, sum, "")
	return sum, nil
}

// RunOnce runs one cycle for every configured symbol in parallel and returns
// the summaries in configured order. Per-symbol failures are reported in
// the summaries; the error is reserved for a cancelled context.
func (e *Engine) RunOnce(ctx context.Context) ([]types.CycleSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s, ok := e.ledger.(syncer); ok {
		if err := s.Sync(ctx); err != nil {
			logger.Warn(ctx, "Balance sync failed, using last known cash", "error", err)
		}
	}

	out := make([]types.CycleSummary, len(e.cfg.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	if n := e.cfg.Engine.MaxParallel; n > 0 {
		g.SetLimit(n)
	}
	for i, symbol := range e.cfg.Symbols {
		g.Go(func() error {
			sum, _ := e.Step(gctx, symbol)
			if sum != nil {
				out[i] = *sum
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info(ctx, "Cycle completed",
		"symbols", len(out),
		"equity", e.risk.equity(),
		"cash", e.ledger.Cash(),
	)
	return out, nil
}

// Run repeats RunOnce until ctx is cancelled. Cycles run on a context that
// ignores cancellation, so a cycle in progress always completes.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer e.running.Store(false)

	poll := time.Duration(e.cfg.Engine.PollSeconds) * time.Second
	logger.Info(ctx, "Engine started",
		"mode", e.ledger.Mode(),
		"strategy", e.strategy.Name(),
		"risk_level", e.profile.Level,
		"symbols", e.cfg.Symbols,
		"timeframe", e.cfg.Timeframe,
	)

	for {
		sums, err := e.RunOnce(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		if e.onCycle != nil {
			e.onCycle(sums)
		}

		next, err := nextTick(e.now(), e.cfg.Timeframe, poll)
		if err != nil {
			return err
		}
		timer := time.NewTimer(next.Sub(e.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info(ctx, "Engine stopping", "cycles", e.Status().Session.Cycles)
			return nil
		case <-timer.C:
		}
	}
}

// Shutdown closes open positions when flatten_on_shutdown is set. Every
// position is attempted; the first failure is returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.running.Store(false)
	if !e.cfg.Engine.FlattenOnShutdown {
		return nil
	}

	var first error
	for _, pos := range e.ledger.Positions() {
		if err := e.flatten(ctx, pos); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (e *Engine) flatten(ctx context.Context, pos types.Position) error {
	st, ok := e.symbols.get(pos.Symbol)
	if ok {
		st.mu.Lock()
		defer st.mu.Unlock()
	}
	candles, err := e.market.FetchCandles(ctx, pos.Symbol, e.cfg.Timeframe, 1)
	if err != nil || len(candles) == 0 {
		return errors.Wrapf(types.ErrFeedUnavailable, "price for %s: %v", pos.Symbol, err)
	}
	if _, err := e.exec.close(ctx, pos, candles[len(candles)-1].Close, types.ExitShutdown); err != nil {
		return err
	}
	e.count(func(s *types.SessionStats) { s.Closed++ })
	if ok {
		e.symbols.set(st, types.StateIdle)
	}
	return nil
}

func (e *Engine) Status() types.EngineStatus {
	e.statsMu.Lock()
	stats := e.stats
	e.statsMu.Unlock()

	return types.EngineStatus{
		Running:         e.running.Load(),
		Mode:            e.ledger.Mode(),
		Strategy:        e.strategy.Name(),
		RiskLevel:       e.profile.Level,
		PositionSizePct: e.profile.PositionSizePct,
		MinConfidence:   e.profile.MinConfidence,
		Symbols:         append([]string(nil), e.cfg.Symbols...),
		States:          e.symbols.snapshot(),
		Positions:       e.ledger.Positions(),
		Cash:            e.ledger.Cash(),
		Equity:          e.risk.equity(),
		Session:         stats,
	}
}
