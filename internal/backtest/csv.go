package backtest

import (
	"os"
	"time"

	"algo-trading-bot/internal/types"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

type tradeRow struct {
	Symbol    string  `csv:"symbol"`
	OpenedAt  string  `csv:"opened_at"`
	ClosedAt  string  `csv:"closed_at"`
	Entry     float64 `csv:"entry_price"`
	Exit      float64 `csv:"exit_price"`
	Size      float64 `csv:"size"`
	GrossPnL  float64 `csv:"gross_pnl"`
	Fees      float64 `csv:"fees"`
	NetPnL    float64 `csv:"net_pnl"`
	ReturnPct float64 `csv:"return_pct"`
	Reason    string  `csv:"reason"`
}

// WriteTradesCSV writes one row per closed trade to path.
func WriteTradesCSV(path string, trades []types.ClosedTrade) error {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, &tradeRow{
			Symbol:    t.Symbol,
			OpenedAt:  t.OpenedAt.UTC().Format(time.RFC3339),
			ClosedAt:  t.ClosedAt.UTC().Format(time.RFC3339),
			Entry:     t.EntryPrice,
			Exit:      t.ExitPrice,
			Size:      t.Size,
			GrossPnL:  t.GrossPnL,
			Fees:      t.Fees,
			NetPnL:    t.NetPnL,
			ReturnPct: t.ReturnPct(),
			Reason:    string(t.Reason),
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
