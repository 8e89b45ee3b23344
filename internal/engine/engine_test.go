package engine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"algo-trading-bot/internal/ledger"
	"algo-trading-bot/internal/store"
	"algo-trading-bot/internal/tradelog"
	"algo-trading-bot/internal/types"
)

var t0 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

type fakeMarket struct {
	mu       sync.Mutex
	candles  map[string][]types.Candle
	fetchErr error
	orderErr error
	balance  float64
}

func newFakeMarket(symbols ...string) *fakeMarket {
	m := &fakeMarket{candles: map[string][]types.Candle{}, balance: 10000}
	for _, s := range symbols {
		for i := 0; i < 5; i++ {
			m.candles[s] = append(m.candles[s], types.Candle{
				Time: t0.Add(time.Duration(i) * time.Hour), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1,
			})
		}
	}
	return m
}

func (m *fakeMarket) addBar(symbol string, low, high, close float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.candles[symbol]
	last := cs[len(cs)-1]
	m.candles[symbol] = append(cs, types.Candle{Time: last.Time.Add(time.Hour), Open: last.Close, High: high, Low: low, Close: close})
}

func (m *fakeMarket) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	cs := m.candles[symbol]
	if limit < len(cs) {
		cs = cs[len(cs)-limit:]
	}
	return append([]types.Candle(nil), cs...), nil
}

func (m *fakeMarket) PlaceOrder(ctx context.Context, symbol string, side types.OrderSide, size float64) (types.FillResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orderErr != nil {
		return types.FillResult{}, m.orderErr
	}
	cs := m.candles[symbol]
	return types.FillResult{OrderID: "F1", Price: cs[len(cs)-1].Close, Size: size}, nil
}

func (m *fakeMarket) FetchBalance(ctx context.Context) (float64, error) {
	return m.balance, nil
}

// scriptStrategy returns the next scripted action on every call and
// repeats the last one.
type scriptStrategy struct {
	mu     sync.Mutex
	script []types.Action
	calls  int
}

func newScript(actions ...types.Action) *scriptStrategy {
	return &scriptStrategy{script: actions}
}

func (s *scriptStrategy) Name() string         { return "script" }
func (s *scriptStrategy) RequiredHistory() int { return 3 }

func (s *scriptStrategy) Evaluate(candles []types.Candle) types.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	if s.script[i] == types.Hold {
		return types.HoldSignal("flat")
	}
	return types.Signal{Action: s.script[i], Confidence: 0.9, Reason: "scripted"}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func testConfig(symbols ...string) *store.Config {
	c := store.Default()
	c.Symbols = symbols
	c.RiskLevel = 10
	c.Engine.CandleMargin = 2
	return &c
}

func newPaper(t *testing.T) *ledger.Paper {
	t.Helper()
	p, err := ledger.NewPaper(ledger.PaperConfig{InitialBalance: 10000})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestEngine(t *testing.T, cfg *store.Config, m *fakeMarket, l *ledger.Paper, s *scriptStrategy) *Engine {
	t.Helper()
	e, err := newEngine(cfg, m, l, s, WithoutJournal())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestConsecutiveBuysRejectSecond(t *testing.T) {
	m := newFakeMarket("AAA")
	l := newPaper(t)
	e := newTestEngine(t, testConfig("AAA"), m, l, newScript(types.Buy))
	ctx := context.Background()

	first, err := e.Step(ctx, "AAA")
	if err != nil {
		t.Fatal(err)
	}
	if first.State != types.StateOpened || first.Position == nil || first.Position.Size != 10 {
		t.Fatalf("Expected OPENED with size 10, got %+v", first)
	}

	second, err := e.Step(ctx, "AAA")
	if err != nil {
		t.Fatal(err)
	}
	if second.State != types.StateRejected || second.Rejected != types.RejectPositionExists {
		t.Errorf("Expected second buy rejected with POSITION_EXISTS, got %s %s", second.State, second.Rejected)
	}
	if len(l.Positions()) != 1 {
		t.Errorf("Expected exactly one position, got %d", len(l.Positions()))
	}

	st := e.Status()
	if st.States["AAA"] != types.StatePositionOpen || st.Session.Opened != 1 || st.Session.Rejections != 1 {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestFeedFailureSkipsCycle(t *testing.T) {
	m := newFakeMarket("AAA")
	m.fetchErr = errors.New("timeout")
	l := newPaper(t)
	e := newTestEngine(t, testConfig("AAA"), m, l, newScript(types.Buy))

	sum, err := e.Step(context.Background(), "AAA")
	if !errors.Is(err, types.ErrFeedUnavailable) {
		t.Fatalf("Expected ErrFeedUnavailable, got %v", err)
	}
	if sum.State != types.StateSkipped || sum.Err == "" {
		t.Errorf("Expected SKIPPED summary, got %+v", sum)
	}
	if l.Cash() != 10000 || len(l.Positions()) != 0 {
		t.Error("Expected ledger untouched")
	}
	if e.Status().Session.Errors != 1 || e.Status().States["AAA"] != types.StateIdle {
		t.Errorf("Unexpected status %+v", e.Status())
	}
}

func TestUnorderedFeedSkipsCycle(t *testing.T) {
	m := newFakeMarket("AAA")
	m.candles["AAA"][4].Time = m.candles["AAA"][3].Time
	e := newTestEngine(t, testConfig("AAA"), m, newPaper(t), newScript(types.Buy))
	if _, err := e.Step(context.Background(), "AAA"); !errors.Is(err, types.ErrFeedUnavailable) {
		t.Errorf("Expected ErrFeedUnavailable for duplicate timestamps, got %v", err)
	}
}

func TestExecutionFailureLeavesStateUnchanged(t *testing.T) {
	m := newFakeMarket("AAA")
	m.orderErr = errors.New("exchange down")
	cfg := testConfig("AAA")
	cfg.Mode = ledger.ModeLive
	l := ledger.NewLive(m)
	e, err := newEngine(cfg, m, l, newScript(types.Buy), WithoutJournal())
	if err != nil {
		t.Fatal(err)
	}

	sums, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sums[0].State != types.StateSkipped || sums[0].Err == "" {
		t.Errorf("Expected SKIPPED after execution failure, got %+v", sums[0])
	}
	if _, ok := l.Position("AAA"); ok {
		t.Error("Expected no position after failed order")
	}
	if e.risk.reserved != 0 {
		t.Errorf("Expected reservation released, got %v", e.risk.reserved)
	}

	m.mu.Lock()
	m.orderErr = nil
	m.mu.Unlock()
	sums, _ = e.RunOnce(context.Background())
	if sums[0].State != types.StateOpened {
		t.Errorf("Expected OPENED once the exchange recovers, got %+v", sums[0])
	}
}

func TestRunOnceParallelSymbols(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC"}
	m := newFakeMarket(symbols...)
	l := newPaper(t)
	cfg := testConfig(symbols...)
	cfg.Engine.MaxParallel = 2
	e := newTestEngine(t, cfg, m, l, newScript(types.Buy))

	sums, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range sums {
		if s.Symbol != symbols[i] || s.State != types.StateOpened {
			t.Errorf("summary %d: expected %s OPENED, got %s %s", i, symbols[i], s.Symbol, s.State)
		}
	}
	if l.Cash() != 7000 {
		t.Errorf("Expected cash 7000 after three 1000 entries, got %v", l.Cash())
	}
}

func TestStopLossOnNextBar(t *testing.T) {
	m := newFakeMarket("AAA")
	l := newPaper(t)
	e := newTestEngine(t, testConfig("AAA"), m, l, newScript(types.Buy))
	ctx := context.Background()

	sum, _ := e.Step(ctx, "AAA")
	if sum.Position == nil || !near(sum.Position.StopLoss, 98) {
		t.Fatalf("Expected stop at 98, got %+v", sum.Position)
	}

	m.addBar("AAA", 97, 100.5, 99)
	sum, err := e.Step(ctx, "AAA")
	if err != nil {
		t.Fatal(err)
	}
	if sum.State != types.StateClosed || sum.Trade == nil || sum.Trade.Reason != types.ExitStopLoss || !near(sum.Trade.ExitPrice, 98) {
		t.Fatalf("Expected stop-loss close at 98, got %+v", sum)
	}
	if _, ok := l.Position("AAA"); ok {
		t.Error("Expected position to be closed")
	}
}

func TestSellSignalClosesAndHoldIsNotCounted(t *testing.T) {
	m := newFakeMarket("AAA")
	l := newPaper(t)
	e := newTestEngine(t, testConfig("AAA"), m, l, newScript(types.Hold, types.Buy, types.Sell))
	ctx := context.Background()

	hold, _ := e.Step(ctx, "AAA")
	if hold.State != types.StateRejected || hold.Rejected != types.RejectHold {
		t.Errorf("Expected HOLD rejection, got %+v", hold)
	}
	if _, err := e.Step(ctx, "AAA"); err != nil {
		t.Fatal(err)
	}
	sell, err := e.Step(ctx, "AAA")
	if err != nil {
		t.Fatal(err)
	}
	if sell.State != types.StateClosed || sell.Trade.Reason != types.ExitSignal {
		t.Errorf("Expected signal close, got %+v", sell)
	}
	if l.Cash() != 10000 {
		t.Errorf("Expected flat round trip to restore cash, got %v", l.Cash())
	}
	st := e.Status().Session
	if st.Rejections != 0 || st.Signals != 2 || st.Cycles != 3 {
		t.Errorf("Unexpected session stats %+v", st)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newFakeMarket("AAA")
	ctx, cancel := context.WithCancel(context.Background())
	var runningDuringCycle bool
	var e *Engine
	hook := func(sums []types.CycleSummary) {
		runningDuringCycle = e.Status().Running
		cancel()
	}
	e, err := newEngine(testConfig("AAA"), m, newPaper(t), newScript(types.Hold), WithoutJournal(), WithCycleHook(hook))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if !runningDuringCycle {
		t.Error("Expected Running while the loop is active")
	}
	if e.Status().Running || e.Status().Session.Cycles != 1 {
		t.Errorf("Expected one completed cycle and stopped engine, got %+v", e.Status())
	}
}

// gatedMarket blocks FetchCandles until release is closed and fails if the
// context it was handed has been cancelled by then.
type gatedMarket struct {
	*fakeMarket
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (m *gatedMarket) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	m.once.Do(func() { close(m.entered) })
	<-m.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.fakeMarket.FetchCandles(ctx, symbol, timeframe, limit)
}

func TestCancelLetsInFlightCycleFinish(t *testing.T) {
	m := &gatedMarket{fakeMarket: newFakeMarket("AAA"), entered: make(chan struct{}), release: make(chan struct{})}
	l := newPaper(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got [][]types.CycleSummary
	hook := func(sums []types.CycleSummary) {
		mu.Lock()
		got = append(got, sums)
		mu.Unlock()
	}
	e, err := newEngine(testConfig("AAA"), m, l, newScript(types.Buy), WithoutJournal(), WithCycleHook(hook))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case <-m.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle never reached the market")
	}
	cancel()
	close(m.release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Run to return nil, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("Expected one cycle with one summary, got %+v", got)
	}
	sum := got[0][0]
	if sum.State == types.StateSkipped {
		t.Fatalf("Expected the in-flight cycle to complete, got SKIPPED: %s", sum.Err)
	}
	if sum.State != types.StateOpened {
		t.Errorf("Expected OPENED, got %s", sum.State)
	}
	if _, ok := l.Position("AAA"); !ok {
		t.Error("Expected a position opened by the in-flight cycle")
	}
	if c := e.Status().Session.Cycles; c != 1 {
		t.Errorf("Expected 1 cycle, got %d", c)
	}
}

func TestShutdownFlattens(t *testing.T) {
	m := newFakeMarket("AAA", "BBB")
	l := newPaper(t)
	cfg := testConfig("AAA", "BBB")
	cfg.Engine.FlattenOnShutdown = true
	e := newTestEngine(t, cfg, m, l, newScript(types.Buy))

	if _, err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(l.Positions()) != 0 {
		t.Errorf("Expected all positions flattened, got %d", len(l.Positions()))
	}
	for _, tr := range l.History() {
		if tr.Reason != types.ExitShutdown {
			t.Errorf("Expected SHUTDOWN reason, got %s", tr.Reason)
		}
	}
}

func TestJournalWritten(t *testing.T) {
	dir := t.TempDir()
	tradelog.SetDir(dir)
	defer tradelog.SetDir("")

	m := newFakeMarket("AAA")
	e, err := newEngine(testConfig("AAA"), m, newPaper(t), newScript(types.Buy, types.Sell))
	if err != nil {
		t.Fatal(err)
	}
	e.Step(context.Background(), "AAA")
	e.Step(context.Background(), "AAA")

	trades, err := tradelog.ReadTrades(time.Now())
	if err != nil || len(trades) != 1 || trades[0].Reason != string(types.ExitSignal) {
		t.Errorf("Expected one journaled signal exit, got %+v (%v)", trades, err)
	}
	signals, _ := filepath.Glob(filepath.Join(dir, "signals", "*.jsonl"))
	if len(signals) != 1 {
		t.Fatalf("Expected a signal journal file, got %v", signals)
	}
	if b, _ := os.ReadFile(signals[0]); len(b) == 0 {
		t.Error("Expected signal journal lines")
	}
}

func TestStepUnknownSymbolAndBadConfig(t *testing.T) {
	e := newTestEngine(t, testConfig("AAA"), newFakeMarket("AAA"), newPaper(t), newScript(types.Hold))
	if _, err := e.Step(context.Background(), "ZZZ"); !errors.Is(err, types.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid, got %v", err)
	}

	cfg := testConfig("AAA")
	cfg.RiskLevel = 0
	if _, err := New(cfg, newFakeMarket("AAA"), newPaper(t), newScript(types.Hold)); !errors.Is(err, types.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid, got %v", err)
	}
}

func TestNextTick(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 17, 30, 0, time.UTC)
	next, err := nextTick(now, "15m", 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 1, 1, 10, 30, 2, 0, time.UTC); !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}
	next, _ = nextTick(now, "1h", 5*time.Second)
	if !next.Equal(now.Add(5 * time.Second)) {
		t.Errorf("Expected poll override, got %v", next)
	}
	if _, err := nextTick(now, "7m", 0); err == nil {
		t.Error("Expected error for unknown timeframe")
	}
}
