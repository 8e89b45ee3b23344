// Package backtest replays the strategy, sizer and paper ledger over
// historical candles, enforcing stop-loss and take-profit exits bar by bar.
package backtest

import (
	"context"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/ledger"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/store"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

type Config struct {
	Paper      ledger.PaperConfig
	Profile    risk.Profile
	Instrument risk.Instrument
	PerSymbol  map[string]risk.Instrument
}

// ConfigFrom takes the paper account, risk profile and instrument rules
// from the bot configuration so backtests size exactly like the engine.
func ConfigFrom(c *store.Config) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	profile, err := c.Profile()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Paper:      c.Paper,
		Profile:    profile,
		Instrument: c.Risk.Instrument,
		PerSymbol:  c.Risk.PerSymbol,
	}, nil
}

type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

type Result struct {
	Symbol         string                     `json:"symbol"`
	Strategy       string                     `json:"strategy"`
	Start          time.Time                  `json:"start"`
	End            time.Time                  `json:"end"`
	Bars           int                        `json:"bars"`
	InitialBalance float64                    `json:"initial_balance"`
	FinalEquity    float64                    `json:"final_equity"`
	TotalReturnPct float64                    `json:"total_return_pct"`
	WinRate        float64                    `json:"win_rate"`
	MaxDrawdown    float64                    `json:"max_drawdown"`
	TotalFees      float64                    `json:"total_fees"`
	Wins           int                        `json:"wins"`
	Losses         int                        `json:"losses"`
	Exits          map[types.ExitReason]int   `json:"exits"`
	Signals        int                        `json:"signals"`
	Rejections     map[types.RejectReason]int `json:"rejections"`
	Trades         []types.ClosedTrade        `json:"trades"`
	Equity         []EquityPoint              `json:"equity"`
}

// Run replays candles for symbol on a fresh paper ledger. Bars before the
// strategy's warm-up only feed history. Any error aborts the run.
func Run(ctx context.Context, cfg Config, strat interfaces.Strategy, symbol string, candles []types.Candle) (*Result, error) {
	need := strat.RequiredHistory()
	if need < 1 {
		need = 1
	}
	if len(candles) < need {
		return nil, errors.Wrapf(types.ErrInsufficientData, "%s: %d candles, %s needs %d", symbol, len(candles), strat.Name(), need)
	}
	if err := types.ValidateHistory(candles); err != nil {
		return nil, errors.WithMessage(err, symbol)
	}

	op := logger.StartOperation(ctx, "backtest.run", "symbol", symbol, "strategy", strat.Name(), "bars", len(candles))
	ctx = op.GetContext()

	var barTime time.Time
	l, err := ledger.NewPaper(cfg.Paper, ledger.WithClock(func() time.Time { return barTime }))
	if err != nil {
		op.EndWithError(err)
		return nil, err
	}
	sizer := risk.NewSizer(cfg.Instrument, cfg.PerSymbol).WithCosts(l.EntryCosts())

	res := &Result{
		Symbol:         symbol,
		Strategy:       strat.Name(),
		Start:          candles[need-1].Time,
		End:            candles[len(candles)-1].Time,
		Bars:           len(candles) - need + 1,
		InitialBalance: cfg.Paper.InitialBalance,
		Exits:          make(map[types.ExitReason]int),
		Rejections:     make(map[types.RejectReason]int),
		Equity:         make([]EquityPoint, 0, len(candles)-need+1),
	}

	for i := need - 1; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			op.EndWithError(err)
			return nil, err
		}
		c := candles[i]
		barTime = c.Time

		if err := step(ctx, cfg.Profile, sizer, l, strat, symbol, candles[:i+1:i+1], res); err != nil {
			err = errors.WithMessagef(err, "%s bar %s", symbol, c.Time.Format(time.RFC3339))
			op.EndWithError(err)
			return nil, err
		}
		res.Equity = append(res.Equity, EquityPoint{Time: c.Time, Equity: l.MarkToMarket(map[string]float64{symbol: c.Close})})
	}

	last := candles[len(candles)-1]
	if pos, ok := l.Position(symbol); ok {
		if _, err := l.Close(ctx, pos, last.Close, types.ExitEndOfBacktest); err != nil {
			op.EndWithError(err)
			return nil, err
		}
		res.Exits[types.ExitEndOfBacktest]++
		res.Equity[len(res.Equity)-1].Equity = l.Cash()
	}

	res.Trades = l.History()
	res.FinalEquity = l.Cash()
	res.TotalFees = l.Stats().Fees
	fillMetrics(res)

	op.End("trades", len(res.Trades), "return_pct", res.TotalReturnPct)
	logger.Info(ctx, "Backtest completed",
		"symbol", symbol,
		"strategy", res.Strategy,
		"bars", res.Bars,
		"trades", len(res.Trades),
		"final_equity", res.FinalEquity,
		"return_pct", res.TotalReturnPct,
		"max_drawdown", res.MaxDrawdown,
	)
	return res, nil
}

// step handles one bar. An open position is checked against the bar's
// range first; a triggered exit ends the bar.
func step(ctx context.Context, profile risk.Profile, sizer *risk.Sizer, l *ledger.Paper, strat interfaces.Strategy, symbol string, history []types.Candle, res *Result) error {
	c := history[len(history)-1]

	var open *types.Position
	if pos, ok := l.Position(symbol); ok {
		if c.Time.After(pos.OpenedAt) {
			if level, reason, hit := risk.CheckExit(pos, c); hit {
				if _, err := l.Close(ctx, pos, level, reason); err != nil {
					return err
				}
				res.Exits[reason]++
				return nil
			}
		}
		open = &pos
	}

	sig := strat.Evaluate(history)
	if sig.Action != types.Hold {
		res.Signals++
	}
	out := sizer.Size(risk.Request{
		Symbol:        symbol,
		Signal:        sig,
		Profile:       profile,
		Equity:        l.MarkToMarket(map[string]float64{symbol: c.Close}),
		AvailableCash: l.Cash(),
		Price:         c.Close,
		Open:          open,
		Time:          c.Time,
	})
	if out.Rejected {
		if out.Reason != types.RejectHold {
			res.Rejections[out.Reason]++
		}
		return nil
	}

	switch out.Order.Side {
	case types.SideBuy:
		if _, err := l.Open(ctx, out.Order); err != nil {
			return err
		}
	case types.SideSell:
		if _, err := l.Close(ctx, *open, c.Close, types.ExitSignal); err != nil {
			return err
		}
		res.Exits[types.ExitSignal]++
	}
	return nil
}
