// Package eod rolls a day of the trade journal into a per-symbol CSV.
package eod

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"algo-trading-bot/internal/tradelog"
	"algo-trading-bot/internal/types"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// Row is one line of the summary CSV.
type Row struct {
	Symbol      string  `csv:"symbol"`
	Trades      int     `csv:"trades"`
	Wins        int     `csv:"wins"`
	Losses      int     `csv:"losses"`
	StopLosses  int     `csv:"stop_losses"`
	TakeProfits int     `csv:"take_profits"`
	Volume      float64 `csv:"volume"`
	GrossPnL    float64 `csv:"gross_pnl"`
	Fees        float64 `csv:"fees"`
	NetPnL      float64 `csv:"net_pnl"`
}

type eodSummarizer struct {
	now func() time.Time
}

func csvPath(t time.Time) string {
	return filepath.Join(tradelog.Dir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

// Aggregate groups entries by symbol and appends a TOTAL row.
func Aggregate(entries []tradelog.TradeEntry) []*Row {
	bySymbol := map[string]*Row{}
	total := &Row{Symbol: "TOTAL"}
	for _, e := range entries {
		r := bySymbol[e.Symbol]
		if r == nil {
			r = &Row{Symbol: e.Symbol}
			bySymbol[e.Symbol] = r
		}
		for _, row := range []*Row{r, total} {
			row.Trades++
			if e.NetPnL > 0 {
				row.Wins++
			} else {
				row.Losses++
			}
			switch types.ExitReason(e.Reason) {
			case types.ExitStopLoss:
				row.StopLosses++
			case types.ExitTakeProfit:
				row.TakeProfits++
			}
			row.Volume += e.Qty * (e.EntryPrice + e.ExitPrice)
			row.GrossPnL += e.GrossPnL
			row.Fees += e.Fees
			row.NetPnL += e.NetPnL
		}
	}

	rows := make([]*Row, 0, len(bySymbol)+1)
	for _, r := range bySymbol {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return append(rows, total)
}

// SummarizeDay writes <journal>/eod/<date>.csv. A day without trades
// yields an empty Path and no file.
func (s *eodSummarizer) SummarizeDay(ctx context.Context, day time.Time) (types.DaySummary, error) {
	sum := types.DaySummary{Day: day.UTC().Truncate(24 * time.Hour)}
	entries, err := tradelog.ReadTrades(day)
	if err != nil {
		return sum, errors.Wrap(err, "read trade journal")
	}
	if len(entries) == 0 {
		return sum, nil
	}

	rows := Aggregate(entries)
	total := rows[len(rows)-1]
	sum.Trades, sum.NetPnL = total.Trades, total.NetPnL

	outPath := csvPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return sum, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return sum, err
	}
	defer out.Close()
	if err := gocsv.MarshalFile(&rows, out); err != nil {
		return sum, errors.Wrapf(err, "write %s", outPath)
	}
	sum.Path = outPath
	return sum, nil
}

func (s *eodSummarizer) SummarizeToday(ctx context.Context) (types.DaySummary, error) {
	return s.SummarizeDay(ctx, s.now())
}
