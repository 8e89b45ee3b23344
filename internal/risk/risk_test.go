package risk

import (
	"errors"
	"math"
	"testing"

	"algo-trading-bot/internal/types"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProfileAnchors(t *testing.T) {
	tests := []struct {
		level   int
		size    float64
		minConf float64
	}{
		{1, 0.01, 0.90},
		{3, 0.03, 0.80},
		{5, 0.05, 0.70},
		{7, 0.07, 0.62},
		{10, 0.10, 0.50},
	}
	for _, tt := range tests {
		p, err := ProfileForLevel(tt.level)
		if err != nil {
			t.Fatalf("level %d: %v", tt.level, err)
		}
		if !approx(p.PositionSizePct, tt.size) || !approx(p.MinConfidence, tt.minConf) {
			t.Errorf("level %d: expected %.2f/%.2f, got %.4f/%.4f", tt.level, tt.size, tt.minConf, p.PositionSizePct, p.MinConfidence)
		}
	}
}

func TestProfileMonotonic(t *testing.T) {
	prev, _ := ProfileForLevel(MinLevel)
	for level := MinLevel + 1; level <= MaxLevel; level++ {
		p, err := ProfileForLevel(level)
		if err != nil {
			t.Fatal(err)
		}
		if p.PositionSizePct <= prev.PositionSizePct {
			t.Errorf("level %d: size %.4f not above %.4f", level, p.PositionSizePct, prev.PositionSizePct)
		}
		if p.MinConfidence >= prev.MinConfidence {
			t.Errorf("level %d: min confidence %.4f not below %.4f", level, p.MinConfidence, prev.MinConfidence)
		}
		prev = p
	}
}

func TestProfileRejectsOutOfRange(t *testing.T) {
	for _, level := range []int{0, 11, -3} {
		if _, err := ProfileForLevel(level); !errors.Is(err, types.ErrConfigurationInvalid) {
			t.Errorf("level %d: expected ErrConfigurationInvalid, got %v", level, err)
		}
	}
	if _, err := NewProfile(5, 0, 0.04); !errors.Is(err, types.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid for zero stop loss, got %v", err)
	}
}

func newTestSizer() *Sizer {
	return NewSizer(Instrument{Step: 0.001, MinNotional: 10}, map[string]Instrument{
		"BIG": {Step: 1, MinQty: 1},
	})
}

func TestSizerLevelOneExample(t *testing.T) {
	p, _ := ProfileForLevel(1)
	s := newTestSizer()

	out := s.Size(Request{
		Symbol:        "BTC/USDT",
		Signal:        types.Signal{Action: types.Buy, Confidence: 0.95},
		Profile:       p,
		Equity:        10000,
		AvailableCash: 10000,
		Price:         100,
	})
	if out.Rejected {
		t.Fatalf("Expected an order, got rejection %s: %s", out.Reason, out.Detail)
	}
	if !approx(out.Order.Notional, 100) {
		t.Errorf("Expected order size 100, got %v", out.Order.Notional)
	}
	if !approx(out.Order.Quantity, 1) {
		t.Errorf("Expected quantity 1, got %v", out.Order.Quantity)
	}
	if out.Order.StopLossPct != p.StopLossPct || out.Order.TakeProfitPct != p.TakeProfitPct {
		t.Error("Expected order to carry the profile exit percentages")
	}

	out = s.Size(Request{
		Symbol:        "BTC/USDT",
		Signal:        types.Signal{Action: types.Buy, Confidence: 0.85},
		Profile:       p,
		Equity:        10000,
		AvailableCash: 10000,
		Price:         100,
	})
	if !out.Rejected || out.Reason != types.RejectLowConfidence {
		t.Errorf("Expected LOW_CONFIDENCE rejection, got %+v", out)
	}
}

func TestSizerRejections(t *testing.T) {
	p, _ := ProfileForLevel(5)
	s := newTestSizer()
	open := &types.Position{Symbol: "ETH", Side: types.Long, Size: 2, EntryPrice: 90}

	tests := []struct {
		name   string
		req    Request
		reason types.RejectReason
	}{
		{"hold", Request{Symbol: "ETH", Signal: types.Signal{Action: types.Hold, Confidence: 1}}, types.RejectHold},
		{"buy with open position", Request{Symbol: "ETH", Signal: types.Signal{Action: types.Buy, Confidence: 0.9}, Open: open}, types.RejectPositionExists},
		{"sell without position", Request{Symbol: "ETH", Signal: types.Signal{Action: types.Sell, Confidence: 0.9}}, types.RejectNoPosition},
		{"below minimum notional", Request{Symbol: "ETH", Signal: types.Signal{Action: types.Buy, Confidence: 0.9}, Equity: 100, AvailableCash: 100}, types.RejectBelowMinimum},
		{"below lot size", Request{Symbol: "BIG", Signal: types.Signal{Action: types.Buy, Confidence: 0.9}, Equity: 1000, AvailableCash: 1000}, types.RejectBelowMinimum},
		{"not enough cash", Request{Symbol: "ETH", Signal: types.Signal{Action: types.Buy, Confidence: 0.9}, Equity: 10000, AvailableCash: 100}, types.RejectInsufficientCash},
		{"no price", Request{Symbol: "ETH", Signal: types.Signal{Action: types.Buy, Confidence: 0.9}, Equity: 10000, AvailableCash: 10000, Price: -1}, types.RejectInvalidInput},
	}
	for _, tt := range tests {
		tt.req.Profile = p
		if tt.req.Price == 0 {
			tt.req.Price = 100
		}
		if tt.name == "below lot size" {
			tt.req.Price = 5000
		}
		out := s.Size(tt.req)
		if !out.Rejected || out.Reason != tt.reason {
			t.Errorf("%s: expected %s, got rejected=%v reason=%s", tt.name, tt.reason, out.Rejected, out.Reason)
		}
	}
}

func TestSizerSellClosesWholePosition(t *testing.T) {
	p, _ := ProfileForLevel(5)
	open := &types.Position{Symbol: "ETH", Side: types.Long, Size: 2.5, EntryPrice: 90}
	out := newTestSizer().Size(Request{
		Symbol:  "ETH",
		Signal:  types.Signal{Action: types.Sell, Confidence: 0.9},
		Profile: p,
		Equity:  10000,
		Price:   100,
		Open:    open,
	})
	if out.Rejected {
		t.Fatalf("Expected sell order, got %s", out.Reason)
	}
	if out.Order.Side != types.SideSell || out.Order.Quantity != 2.5 {
		t.Errorf("Expected SELL 2.5, got %s %v", out.Order.Side, out.Order.Quantity)
	}
}

func TestSizeNeverExceedsBudget(t *testing.T) {
	s := newTestSizer()
	for level := MinLevel; level <= MaxLevel; level++ {
		p, _ := ProfileForLevel(level)
		for _, price := range []float64{0.37, 3.3, 97.13, 4567.89} {
			out := s.Size(Request{
				Symbol:        "X",
				Signal:        types.Signal{Action: types.Buy, Confidence: 1},
				Profile:       p,
				Equity:        12345.67,
				AvailableCash: 12345.67,
				Price:         price,
			})
			if out.Rejected {
				continue
			}
			if out.Order.Quantity*price > p.PositionSizePct*12345.67+1e-9 {
				t.Errorf("level %d price %v: %v exceeds budget", level, price, out.Order.Quantity*price)
			}
		}
	}
}

func TestFloorToStep(t *testing.T) {
	tests := []struct{ qty, step, want float64 }{
		{1.23456, 0.01, 1.23},
		{0.3, 0.1, 0.3},
		{7.9, 1, 7},
		{5.5, 0, 5.5},
	}
	for _, tt := range tests {
		if got := FloorToStep(tt.qty, tt.step); !approx(got, tt.want) {
			t.Errorf("FloorToStep(%v, %v): expected %v, got %v", tt.qty, tt.step, tt.want, got)
		}
	}
}

func TestExitLevelsAndCheck(t *testing.T) {
	stop, target := ExitLevels(100, 0.05, 0.10, 0)
	if !approx(stop, 95) || !approx(target, 110) {
		t.Fatalf("Expected 95/110, got %v/%v", stop, target)
	}
	pos := types.Position{Symbol: "X", Side: types.Long, EntryPrice: 100, Size: 1, StopLoss: stop, TakeProfit: target}

	price, reason, hit := CheckExit(pos, types.Candle{Open: 97, High: 98, Low: 94, Close: 96})
	if !hit || reason != types.ExitStopLoss || !approx(price, 95) {
		t.Errorf("Expected stop at 95, got hit=%v %s %v", hit, reason, price)
	}

	price, reason, hit = CheckExit(pos, types.Candle{Open: 105, High: 111, Low: 104, Close: 109})
	if !hit || reason != types.ExitTakeProfit || !approx(price, 110) {
		t.Errorf("Expected target at 110, got hit=%v %s %v", hit, reason, price)
	}

	_, reason, _ = CheckExit(pos, types.Candle{Open: 100, High: 112, Low: 93, Close: 100})
	if reason != types.ExitStopLoss {
		t.Errorf("Expected stop to win when both levels are touched, got %s", reason)
	}

	if _, _, hit = CheckExit(pos, types.Candle{Open: 100, High: 101, Low: 99, Close: 100}); hit {
		t.Error("Expected no exit inside the levels")
	}
}

func TestSizerNetsOutCosts(t *testing.T) {
	p, _ := ProfileForLevel(10)
	req := Request{
		Symbol:        "BTC/USDT",
		Signal:        types.Signal{Action: types.Buy, Confidence: 0.9},
		Profile:       p,
		Equity:        10000,
		AvailableCash: 10000,
		Price:         100,
	}
	tests := []struct {
		name  string
		costs Costs
	}{
		{"flat fee leaves less than the minimum", Costs{FlatFee: 995}},
		{"flat fee exceeds the budget", Costs{FlatFee: 1500}},
		{"rate and slippage push below minimum", Costs{FeeRate: 0.5, SlippagePct: 0.5, FlatFee: 990}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSizer(Instrument{Step: 0.0001, MinNotional: 10}, nil).WithCosts(tt.costs)
			out := s.Size(req)
			if !out.Rejected || out.Reason != types.RejectBelowMinimum {
				t.Errorf("Expected BELOW_MINIMUM rejection, got %+v", out)
			}
		})
	}

	c := Costs{FeeRate: 0.001, FlatFee: 1, SlippagePct: 0.0005}
	out := NewSizer(Instrument{Step: 0.0001, MinNotional: 10}, nil).WithCosts(c).Size(req)
	if out.Rejected {
		t.Fatalf("Expected an order, got rejection %s: %s", out.Reason, out.Detail)
	}
	fill := 100 * (1 + c.SlippagePct)
	cost := out.Order.Quantity * fill
	if total := cost + cost*c.FeeRate + c.FlatFee; total > out.Order.Notional+1e-9 {
		t.Errorf("Expected fill plus fees within %v, got %v", out.Order.Notional, total)
	}
	if out.Order.Quantity >= 10 {
		t.Errorf("Expected quantity below the cost-free 10, got %v", out.Order.Quantity)
	}
}
