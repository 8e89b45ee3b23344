package tradelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useTempJournal(t *testing.T, now time.Time) string {
	t.Helper()
	dir := t.TempDir()
	SetDir(dir)
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() {
		SetDir("")
		nowFunc = time.Now
	})
	return dir
}

func TestAppendAndReadTrades(t *testing.T) {
	now := time.Date(2024, 5, 2, 23, 30, 0, 0, time.UTC)
	dir := useTempJournal(t, now)

	if err := AppendTrade(TradeEntry{Symbol: "BTC/USDT", Side: "SELL", Qty: 0.5, EntryPrice: 100, ExitPrice: 110, NetPnL: 4.9, Reason: "TAKE_PROFIT"}); err != nil {
		t.Fatal(err)
	}
	if err := AppendTrade(TradeEntry{Symbol: "ETH/USDT", Side: "SELL", Qty: 2, NetPnL: -1}); err != nil {
		t.Fatal(err)
	}
	if err := AppendSignal(SignalEntry{Symbol: "BTC/USDT", Action: "BUY", Confidence: 0.8, Outcome: "OPENED"}); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrades(now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(got))
	}
	if got[0].Qty != 0.5 || got[0].Reason != "TAKE_PROFIT" || got[0].Time != "2024-05-02 23:30:00" {
		t.Errorf("Unexpected entry %+v", got[0])
	}

	b, err := os.ReadFile(filepath.Join(dir, "signals", "2024-05-02.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"outcome":"OPENED"`) {
		t.Errorf("Expected signal line, got %s", b)
	}

	none, err := ReadTrades(now.AddDate(0, 0, 1))
	if err != nil || len(none) != 0 {
		t.Errorf("Expected no trades for the next day, got %d (%v)", len(none), err)
	}
}

func TestCompressOlder(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	dir := useTempJournal(t, now)

	old := filepath.Join(dir, "trades", "2024-05-01.jsonl")
	fresh := filepath.Join(dir, "trades", "2024-05-09.jsonl")
	if err := os.MkdirAll(filepath.Dir(old), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte(`{"symbol":"X"}`+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	oldTime := now.AddDate(0, 0, -9)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(fresh, now, now); err != nil {
		t.Fatal(err)
	}

	if err := CompressOlder(7); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("Expected old journal file to be removed")
	}
	if _, err := os.Stat(old + ".gz"); err != nil {
		t.Errorf("Expected gzip file, got %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected fresh file to stay, got %v", err)
	}
}
