package risk

import (
	"fmt"
	"time"

	"algo-trading-bot/internal/types"

	"github.com/shopspring/decimal"
)

// Instrument holds exchange trading limits for a symbol.
type Instrument struct {
	Step        float64 `yaml:"step"`
	Tick        float64 `yaml:"tick"`
	MinQty      float64 `yaml:"min_qty"`
	MinNotional float64 `yaml:"min_notional"`
}

// Costs are the fill costs the ledger will charge on entry.
type Costs struct {
	FeeRate     float64
	FlatFee     float64
	SlippagePct float64
}

// Sizer turns signals into orders. A rejection is a normal outcome.
type Sizer struct {
	defaults    Instrument
	instruments map[string]Instrument
	costs       Costs
}

func NewSizer(defaults Instrument, perSymbol map[string]Instrument) *Sizer {
	inst := make(map[string]Instrument, len(perSymbol))
	for k, v := range perSymbol {
		inst[k] = v
	}
	return &Sizer{defaults: defaults, instruments: inst}
}

// WithCosts makes entry quantities net of slippage and fees, so the size
// checked against the instrument minimum is the size that will fill.
func (s *Sizer) WithCosts(c Costs) *Sizer {
	s.costs = c
	return s
}

// Instrument returns the limits that apply to symbol.
func (s *Sizer) Instrument(symbol string) Instrument {
	if in, ok := s.instruments[symbol]; ok {
		return in
	}
	return s.defaults
}

type Request struct {
	Symbol  string
	Signal  types.Signal
	Profile Profile
	Equity  float64
	// AvailableCash is cash not already committed to in-flight orders.
	AvailableCash float64
	Price         float64
	Open          *types.Position
	Time          time.Time
}

type Outcome struct {
	Order    types.Order
	Rejected bool
	Reason   types.RejectReason
	Detail   string
}

func reject(reason types.RejectReason, format string, args ...any) Outcome {
	return Outcome{Rejected: true, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (s *Sizer) Size(req Request) Outcome {
	sig := req.Signal
	switch {
	case sig.Action == types.Hold:
		return reject(types.RejectHold, "hold signal")
	case sig.Confidence < req.Profile.MinConfidence:
		return reject(types.RejectLowConfidence, "confidence %.2f below %.2f", sig.Confidence, req.Profile.MinConfidence)
	case sig.Action == types.Buy && req.Open != nil:
		return reject(types.RejectPositionExists, "position already open in %s", req.Symbol)
	case sig.Action == types.Sell && req.Open == nil:
		return reject(types.RejectNoPosition, "no position in %s to sell", req.Symbol)
	case req.Price <= 0 || req.Equity <= 0:
		return reject(types.RejectInvalidInput, "price %.4f equity %.2f", req.Price, req.Equity)
	}

	inst := s.Instrument(req.Symbol)
	if sig.Action == types.Sell {
		return Outcome{Order: types.Order{
			Symbol:   req.Symbol,
			Side:     types.SideSell,
			Quantity: req.Open.Size,
			Notional: req.Open.Size * req.Price,
			Price:    req.Price,
			Step:     inst.Step,
			Time:     req.Time,
		}}
	}

	notional := req.Equity * req.Profile.PositionSizePct
	if notional > req.AvailableCash {
		return reject(types.RejectInsufficientCash, "order %.2f exceeds available cash %.2f", notional, req.AvailableCash)
	}
	fill := req.Price * (1 + s.costs.SlippagePct)
	qty := FloorToStep((notional-s.costs.FlatFee)/(fill*(1+s.costs.FeeRate)), inst.Step)
	if qty <= 0 || qty < inst.MinQty || qty*fill < inst.MinNotional {
		return reject(types.RejectBelowMinimum, "quantity %.8f (notional %.2f) below exchange minimum", qty, qty*fill)
	}
	return Outcome{Order: types.Order{
		Symbol:        req.Symbol,
		Side:          types.SideBuy,
		Quantity:      qty,
		Notional:      notional,
		Price:         req.Price,
		Step:          inst.Step,
		Tick:          inst.Tick,
		StopLossPct:   req.Profile.StopLossPct,
		TakeProfitPct: req.Profile.TakeProfitPct,
		Time:          req.Time,
	}}
}

// FloorToStep rounds qty down to a multiple of step. A zero step leaves qty unchanged.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	st := decimal.NewFromFloat(step)
	return decimal.NewFromFloat(qty).Div(st).Floor().Mul(st).InexactFloat64()
}
