// Package tradelog is the append-only JSON-lines journal of signals and
// closed trades, one file per UTC day.
package tradelog

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const (
	tradesDir  = "trades"
	signalsDir = "signals"
	ext        = ".jsonl"
	timeLayout = "2006-01-02 15:04:05"
)

var (
	mu      sync.Mutex
	dirOver string
	nowFunc = time.Now
)

type TradeEntry struct {
	Time       string  `json:"time"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Qty        float64 `json:"qty"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	GrossPnL   float64 `json:"gross_pnl"`
	Fees       float64 `json:"fees"`
	NetPnL     float64 `json:"net_pnl"`
	Reason     string  `json:"reason"`
	OrderID    string  `json:"order_id,omitempty"`
	Mode       string  `json:"mode,omitempty"`
}

type SignalEntry struct {
	Time       string             `json:"time"`
	Symbol     string             `json:"symbol"`
	Action     string             `json:"action"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason,omitempty"`
	Price      float64            `json:"price"`
	Outcome    string             `json:"outcome"`
	Detail     string             `json:"detail,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// SetDir overrides TRADER_LOG_DIR. An empty dir restores the default.
func SetDir(dir string) {
	mu.Lock()
	dirOver = dir
	mu.Unlock()
}

func logDir() string {
	if dirOver != "" {
		return dirOver
	}
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dayFile(kind string, t time.Time) string {
	return filepath.Join(logDir(), kind, t.UTC().Format("2006-01-02")+ext)
}

// TradesFile is the trade journal path for the UTC day containing t.
func TradesFile(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return dayFile(tradesDir, t)
}

// Dir is the journal root currently in use.
func Dir() string {
	mu.Lock()
	defer mu.Unlock()
	return logDir()
}

func appendLine(kind string, v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode journal line")
	}
	mu.Lock()
	defer mu.Unlock()
	p := dayFile(kind, nowFunc())
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// AppendTrade stamps e with the current UTC time when unset.
func AppendTrade(e TradeEntry) error {
	if e.Time == "" {
		e.Time = nowFunc().UTC().Format(timeLayout)
	}
	return appendLine(tradesDir, e)
}

func AppendSignal(e SignalEntry) error {
	if e.Time == "" {
		e.Time = nowFunc().UTC().Format(timeLayout)
	}
	return appendLine(signalsDir, e)
}

// ReadTrades returns the journal lines for the UTC day containing t.
// Malformed lines are skipped. A missing file yields no entries.
func ReadTrades(t time.Time) ([]TradeEntry, error) {
	p := TradesFile(t)
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []TradeEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e TradeEntry
		if err := sonic.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips journal files last modified more than retentionDays ago.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := nowFunc().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(Dir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return errors.Wrapf(err, "compress %s", p)
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
