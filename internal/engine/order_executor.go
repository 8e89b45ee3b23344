package engine

import (
	"context"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/tradelog"
	"algo-trading-bot/internal/types"
)

// orderExecutor sends orders to the ledger and journals the results.
type orderExecutor struct {
	ledger  interfaces.Ledger
	journal bool
}

func newOrderExecutor(l interfaces.Ledger, journal bool) *orderExecutor {
	return &orderExecutor{ledger: l, journal: journal}
}

func (oe *orderExecutor) open(ctx context.Context, order types.Order) (types.Position, error) {
	pos, err := oe.ledger.Open(ctx, order)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open position", err,
			"symbol", order.Symbol,
			"qty", order.Quantity,
			"price", order.Price,
		)
		return types.Position{}, err
	}
	return pos, nil
}

func (oe *orderExecutor) close(ctx context.Context, pos types.Position, price float64, reason types.ExitReason) (types.ClosedTrade, error) {
	trade, err := oe.ledger.Close(ctx, pos, price, reason)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to close position", err,
			"symbol", pos.Symbol,
			"size", pos.Size,
			"price", price,
			"reason", string(reason),
		)
		return types.ClosedTrade{}, err
	}

	if oe.journal {
		if err := tradelog.AppendTrade(tradelog.TradeEntry{
			Symbol:     trade.Symbol,
			Side:       string(types.SideSell),
			Qty:        trade.Size,
			EntryPrice: trade.EntryPrice,
			ExitPrice:  trade.ExitPrice,
			GrossPnL:   trade.GrossPnL,
			Fees:       trade.Fees,
			NetPnL:     trade.NetPnL,
			Reason:     string(trade.Reason),
			OrderID:    pos.OrderID,
			Mode:       oe.ledger.Mode(),
		}); err != nil {
			logger.Warn(ctx, "Failed to journal trade", "symbol", trade.Symbol, "error", err)
		}
	}
	return trade, nil
}

// logSignal journals every evaluated signal together with what the cycle
// made of it.
func (oe *orderExecutor) logSignal(ctx context.Context, s *types.CycleSummary, detail string) {
	logger.Decision(ctx, s.Symbol, string(s.Signal.Action), s.Signal.Confidence, s.Signal.Reason,
		"state", string(s.State),
		"price", s.Price,
	)
	if !oe.journal {
		return
	}
	outcome := string(s.State)
	if s.Rejected != "" {
		outcome = string(s.Rejected)
	}
	if err := tradelog.AppendSignal(tradelog.SignalEntry{
		Symbol:     s.Symbol,
		Action:     string(s.Signal.Action),
		Confidence: s.Signal.Confidence,
		Reason:     s.Signal.Reason,
		Price:      s.Price,
		Outcome:    outcome,
		Detail:     detail,
		Indicators: s.Signal.Indicators,
	}); err != nil {
		logger.Warn(ctx, "Failed to journal signal", "symbol", s.Symbol, "error", err)
	}
}
