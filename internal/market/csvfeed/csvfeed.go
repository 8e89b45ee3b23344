// Package csvfeed reads OHLCV history from CSV files. It is read-only market
// access for backtests and offline paper runs.
package csvfeed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/types"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

type row struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised time %q", s)
}

// Load reads a file with a header of time,open,high,low,close,volume.
// Row order is kept as written.
func Load(path string) ([]types.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrFeedUnavailable, "open %s: %v", path, err)
	}
	defer f.Close()

	var rows []*row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(types.ErrFeedUnavailable, "parse %s: %v", path, err)
	}
	cs := make([]types.Candle, 0, len(rows))
	for i, r := range rows {
		ts, err := parseTime(r.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", path, i+2)
		}
		cs = append(cs, types.Candle{Time: ts, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
	}
	return cs, nil
}

// Save writes candles in the format Load reads.
func Save(path string, cs []types.Candle) error {
	rows := make([]*row, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, &row{
			Time:   c.Time.UTC().Format(time.RFC3339),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	return errors.Wrapf(writeRows(f, rows), "write %s", path)
}

// writeRows closes w in every case; a close error is reported when the
// rows themselves were written.
func writeRows(w io.WriteCloser, rows []*row) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// FileName maps a symbol and timeframe to "<symbol>_<tf>.csv" with path
// separators in the symbol replaced.
func FileName(symbol, timeframe string) string {
	r := strings.NewReplacer("/", "-", ":", "-", "\\", "-")
	return r.Replace(symbol) + "_" + timeframe + ".csv"
}

// Feed serves FetchCandles from files in a directory, loading each once.
type Feed struct {
	dir string

	mu    sync.Mutex
	cache map[string][]types.Candle
}

var _ interfaces.MarketAccess = (*Feed)(nil)

func New(dir string) *Feed {
	return &Feed{dir: dir, cache: make(map[string][]types.Candle)}
}

func (f *Feed) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	if _, err := types.ParseTimeframe(timeframe); err != nil {
		return nil, err
	}
	name := FileName(symbol, timeframe)

	f.mu.Lock()
	cs, ok := f.cache[name]
	f.mu.Unlock()
	if !ok {
		loaded, err := Load(filepath.Join(f.dir, name))
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[name] = loaded
		f.mu.Unlock()
		cs = loaded
	}

	if limit > 0 && limit < len(cs) {
		cs = cs[len(cs)-limit:]
	}
	return append([]types.Candle(nil), cs...), nil
}

func (f *Feed) PlaceOrder(ctx context.Context, symbol string, side types.OrderSide, size float64) (types.FillResult, error) {
	return types.FillResult{}, errors.Errorf("csv feed cannot execute orders (%s %s)", side, symbol)
}

func (f *Feed) FetchBalance(ctx context.Context) (float64, error) {
	return 0, errors.New("csv feed has no account balance")
}
