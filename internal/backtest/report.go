package backtest

import (
	"fmt"
	"strings"

	"algo-trading-bot/internal/types"
)

const rule = "=================================================="

// FormatResult renders a single run as a text report.
func FormatResult(r *Result) string {
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "BACKTEST RESULTS: %s (%s)\n", r.Symbol, r.Strategy)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Period: %s to %s (%d bars)\n", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), r.Bars)
	fmt.Fprintf(&b, "Initial Balance: %.2f\n", r.InitialBalance)
	fmt.Fprintf(&b, "Final Equity: %.2f\n", r.FinalEquity)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Total P&L: %.2f (%+.2f%%)\n", r.FinalEquity-r.InitialBalance, r.TotalReturnPct)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(&b, "Fees Paid: %.2f\n", r.TotalFees)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Total Trades: %d\n", len(r.Trades))
	fmt.Fprintf(&b, "Winning: %d | Losing: %d\n", r.Wins, r.Losses)
	fmt.Fprintf(&b, "Win Rate: %.1f%%\n", r.WinRate*100)
	sl, tp := r.Exits[types.ExitStopLoss], r.Exits[types.ExitTakeProfit]
	if sl > 0 || tp > 0 {
		fmt.Fprintf(&b, "Stop-Loss: %d | Take-Profit: %d\n", sl, tp)
	}
	fmt.Fprint(&b, rule)
	return b.String()
}

// FormatComparison renders one row per run in the order given and names
// the best return.
func FormatComparison(results []*Result) string {
	var b strings.Builder
	fmt.Fprintln(&b, rule+rule[:20])
	fmt.Fprintf(&b, "%-16s %-14s %7s %8s %10s %8s %10s\n", "STRATEGY", "SYMBOL", "TRADES", "WIN%", "RETURN%", "MAXDD%", "FEES")
	fmt.Fprintln(&b, rule+rule[:20])

	var best *Result
	for _, r := range results {
		fmt.Fprintf(&b, "%-16s %-14s %7d %8.1f %+10.2f %8.2f %10.2f\n",
			r.Strategy, r.Symbol, len(r.Trades), r.WinRate*100, r.TotalReturnPct, r.MaxDrawdown*100, r.TotalFees)
		if best == nil || r.TotalReturnPct > best.TotalReturnPct {
			best = r
		}
	}
	fmt.Fprintln(&b, rule+rule[:20])
	if best != nil {
		fmt.Fprintf(&b, "Best: %s on %s (%+.2f%%)\n", best.Strategy, best.Symbol, best.TotalReturnPct)
	}
	return b.String()
}
