package zerodha

import (
	"context"
	"errors"
	"testing"
	"time"

	"algo-trading-bot/internal/types"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
)

type fakeKite struct {
	bars          []kiteconnect.HistoricalData
	histErr       error
	instrumentHit int
	placed        []kiteconnect.OrderParams
	history       [][]kiteconnect.Order
	historyCalls  int
	margin        float64
}

func (f *fakeKite) GetHistoricalData(token int, interval string, from, to time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.bars, nil
}

func (f *fakeKite) GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error) {
	f.instrumentHit++
	return kiteconnect.Instruments{
		{InstrumentToken: 408065, Tradingsymbol: "INFY"},
		{InstrumentToken: 738561, Tradingsymbol: "RELIANCE"},
	}, nil
}

func (f *fakeKite) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	f.placed = append(f.placed, p)
	return kiteconnect.OrderResponse{OrderID: "230101000001"}, nil
}

func (f *fakeKite) GetOrderHistory(id string) ([]kiteconnect.Order, error) {
	h := f.history[f.historyCalls]
	if f.historyCalls < len(f.history)-1 {
		f.historyCalls++
	}
	return h, nil
}

func (f *fakeKite) GetUserMargins() (kiteconnect.AllMargins, error) {
	return kiteconnect.AllMargins{Equity: kiteconnect.Margins{Net: f.margin}}, nil
}

func hourly(start time.Time, closes ...float64) []kiteconnect.HistoricalData {
	out := make([]kiteconnect.HistoricalData, len(closes))
	for i, c := range closes {
		out[i] = kiteconnect.HistoricalData{
			Date:   models.Time{Time: start.Add(time.Duration(i) * time.Hour)},
			Open:   c - 1,
			High:   c + 2,
			Low:    c - 2,
			Close:  c,
			Volume: 10,
		}
	}
	return out
}

func newTestZerodha(f *fakeKite, now time.Time) *Zerodha {
	z := newWithClient(Params{APIKey: "k", AccessToken: "t", FeeRate: 0.0003}, f)
	z.now = func() time.Time { return now }
	z.pollGap = 0
	return z
}

func TestFetchCandlesDropsFormingBar(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	f := &fakeKite{bars: hourly(day.Add(6*time.Hour), 100, 101, 102, 103, 104)}
	z := newTestZerodha(f, day.Add(10*time.Hour+30*time.Minute))

	cs, err := z.FetchCandles(context.Background(), "INFY", "1h", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 3 {
		t.Fatalf("Expected 3 candles, got %d", len(cs))
	}
	if cs[2].Close != 103 || !cs[2].Time.Equal(day.Add(9*time.Hour)) {
		t.Errorf("Expected last closed bar 09:00 close 103, got %v %v", cs[2].Time, cs[2].Close)
	}

	if _, err := z.FetchCandles(context.Background(), "INFY", "1h", 3); err != nil {
		t.Fatal(err)
	}
	if f.instrumentHit != 1 {
		t.Errorf("Expected instrument lookup to be cached, got %d calls", f.instrumentHit)
	}
}

func TestFetchCandlesResamplesFourHour(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	f := &fakeKite{bars: hourly(day, 10, 11, 12, 13, 20, 21, 19, 22)}
	z := newTestZerodha(f, day.Add(9*time.Hour))

	cs, err := z.FetchCandles(context.Background(), "NSE:INFY", "4h", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 {
		t.Fatalf("Expected 2 four-hour bars, got %d", len(cs))
	}
	b := cs[1]
	if !b.Time.Equal(day.Add(4*time.Hour)) || b.Open != 19 || b.High != 24 || b.Low != 17 || b.Close != 22 || b.Volume != 40 {
		t.Errorf("Unexpected resampled bar %+v", b)
	}
}

func TestFetchCandlesErrors(t *testing.T) {
	z := newTestZerodha(&fakeKite{histErr: errors.New("502")}, time.Now())
	if _, err := z.FetchCandles(context.Background(), "INFY", "1h", 5); !errors.Is(err, types.ErrFeedUnavailable) {
		t.Errorf("Expected ErrFeedUnavailable, got %v", err)
	}
	if _, err := z.FetchCandles(context.Background(), "NOPE", "1h", 5); !errors.Is(err, types.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid for unknown instrument, got %v", err)
	}
	if _, err := z.FetchCandles(context.Background(), "INFY", "7m", 5); !errors.Is(err, types.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid for timeframe, got %v", err)
	}
}

func TestPlaceOrderWaitsForCompletion(t *testing.T) {
	f := &fakeKite{history: [][]kiteconnect.Order{
		{{Status: "OPEN"}},
		{{Status: "OPEN"}, {Status: "COMPLETE", AveragePrice: 1500, FilledQuantity: 3}},
	}}
	z := newTestZerodha(f, time.Now())

	fill, err := z.PlaceOrder(context.Background(), "NSE:INFY", types.SideBuy, 3.7)
	if err != nil {
		t.Fatal(err)
	}
	if fill.Price != 1500 || fill.Size != 3 || fill.OrderID != "230101000001" {
		t.Errorf("Unexpected fill %+v", fill)
	}
	if want := 1500 * 3 * 0.0003; fill.Fee < want-1e-9 || fill.Fee > want+1e-9 {
		t.Errorf("Expected fee %v, got %v", want, fill.Fee)
	}
	p := f.placed[0]
	if p.Quantity != 3 || p.Tradingsymbol != "INFY" || p.TransactionType != kiteconnect.TransactionTypeBuy {
		t.Errorf("Unexpected order params %+v", p)
	}
}

func TestPlaceOrderRejected(t *testing.T) {
	f := &fakeKite{history: [][]kiteconnect.Order{{{Status: "REJECTED", StatusMessage: "margin"}}}}
	z := newTestZerodha(f, time.Now())
	if _, err := z.PlaceOrder(context.Background(), "INFY", types.SideSell, 1); err == nil {
		t.Error("Expected rejected order to fail")
	}
	if _, err := z.PlaceOrder(context.Background(), "INFY", types.SideBuy, 0.5); err == nil {
		t.Error("Expected fractional share order to fail")
	}
}

func TestTestnetFillsLocally(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	f := &fakeKite{bars: hourly(day, 100, 101), margin: 25000}
	z := newTestZerodha(f, day.Add(3*time.Hour))
	z.p.Testnet = true

	if _, err := z.PlaceOrder(context.Background(), "INFY", types.SideBuy, 2); err == nil {
		t.Error("Expected error before a price is known")
	}
	if _, err := z.FetchCandles(context.Background(), "INFY", "1h", 5); err != nil {
		t.Fatal(err)
	}
	fill, err := z.PlaceOrder(context.Background(), "INFY", types.SideBuy, 2)
	if err != nil {
		t.Fatal(err)
	}
	if fill.Price != 101 || fill.Size != 2 || len(f.placed) != 0 {
		t.Errorf("Expected local fill at 101 with no exchange order, got %+v (%d placed)", fill, len(f.placed))
	}

	bal, err := z.FetchBalance(context.Background())
	if err != nil || bal != 25000 {
		t.Errorf("Expected balance 25000, got %v %v", bal, err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Params{}); !errors.Is(err, types.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid, got %v", err)
	}
}
