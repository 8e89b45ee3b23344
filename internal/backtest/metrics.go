package backtest

// fillMetrics derives return, win rate and drawdown from the trades and the
// equity curve.
func fillMetrics(res *Result) {
	if res.InitialBalance > 0 {
		res.TotalReturnPct = (res.FinalEquity - res.InitialBalance) / res.InitialBalance * 100
	}

	for _, t := range res.Trades {
		if t.Win() {
			res.Wins++
		} else {
			res.Losses++
		}
	}
	if n := len(res.Trades); n > 0 {
		res.WinRate = float64(res.Wins) / float64(n)
	}

	res.MaxDrawdown = maxDrawdown(res.InitialBalance, res.Equity)
}

// maxDrawdown is the largest peak-to-trough fall of the curve as a fraction
// of the peak. The curve starts from initial.
func maxDrawdown(initial float64, curve []EquityPoint) float64 {
	peak := initial
	var dd float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if d := (peak - p.Equity) / peak; d > dd {
			dd = d
		}
	}
	return dd
}
