package types

import "time"

// Candle is one OHLCV bar. Sequences are ordered by Time with no duplicates.
type Candle struct {
	Time                   time.Time
	Open, High, Low, Close float64
	Volume                 float64
}

// Action is the decision a strategy emits for the latest bar.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Signal is produced fresh on every evaluation and never mutated.
type Signal struct {
	Action     Action             `json:"action"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// HoldSignal returns a zero-confidence Hold with the given reason.
func HoldSignal(reason string) Signal {
	return Signal{Action: Hold, Confidence: 0, Reason: reason}
}

type Side string

const (
	Long Side = "LONG"
	Flat Side = "FLAT"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Position is an open holding in one symbol. StopLoss and TakeProfit are
// fixed when the position is opened.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	EntryFee   float64   `json:"entry_fee"`
	OpenedAt   time.Time `json:"opened_at"`
	OrderID    string    `json:"order_id"`
}

// Notional is size times entry price.
func (p Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// UnrealizedPnL values the position at price, before exit fees.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Size
}

type ExitReason string

const (
	ExitSignal        ExitReason = "SIGNAL"
	ExitStopLoss      ExitReason = "STOP_LOSS"
	ExitTakeProfit    ExitReason = "TAKE_PROFIT"
	ExitEndOfBacktest ExitReason = "END_OF_BACKTEST"
	ExitShutdown      ExitReason = "SHUTDOWN"
)

// MarketFill reports whether a close for this reason executes as a market
// order. Stop, target and end-of-window exits fill at the given level.
func (r ExitReason) MarketFill() bool {
	return r == ExitSignal || r == ExitShutdown
}

type ClosedTrade struct {
	Symbol     string     `json:"symbol" csv:"symbol"`
	EntryPrice float64    `json:"entry_price" csv:"entry_price"`
	ExitPrice  float64    `json:"exit_price" csv:"exit_price"`
	Size       float64    `json:"size" csv:"size"`
	OpenedAt   time.Time  `json:"opened_at" csv:"-"`
	ClosedAt   time.Time  `json:"closed_at" csv:"-"`
	GrossPnL   float64    `json:"gross_pnl" csv:"gross_pnl"`
	Fees       float64    `json:"fees" csv:"fees"`
	NetPnL     float64    `json:"net_pnl" csv:"net_pnl"`
	Reason     ExitReason `json:"reason" csv:"reason"`
}

// Win reports whether the trade made money after fees.
func (t ClosedTrade) Win() bool {
	return t.NetPnL > 0
}

// ReturnPct is the net return relative to the entry notional.
func (t ClosedTrade) ReturnPct() float64 {
	cost := t.EntryPrice * t.Size
	if cost == 0 {
		return 0
	}
	return t.NetPnL / cost * 100
}

// Order is what the sizer hands to a ledger. For buys Notional is the
// budget the fill plus fees must stay within.
type Order struct {
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Quantity      float64   `json:"quantity"`
	Notional      float64   `json:"notional"`
	Price         float64   `json:"price"`
	Step          float64   `json:"step"`
	Tick          float64   `json:"tick"`
	StopLossPct   float64   `json:"stop_loss_pct"`
	TakeProfitPct float64   `json:"take_profit_pct"`
	Time          time.Time `json:"time"`
}

// FillResult is what market access reports after executing an order.
type FillResult struct {
	OrderID string  `json:"order_id"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Fee     float64 `json:"fee"`
}

type RejectReason string

const (
	RejectHold             RejectReason = "HOLD"
	RejectLowConfidence    RejectReason = "LOW_CONFIDENCE"
	RejectPositionExists   RejectReason = "POSITION_EXISTS"
	RejectNoPosition       RejectReason = "NO_POSITION"
	RejectBelowMinimum     RejectReason = "BELOW_MINIMUM"
	RejectInsufficientCash RejectReason = "INSUFFICIENT_CASH"
	RejectInvalidInput     RejectReason = "INVALID_INPUT"
)

// CycleState is the per-symbol state reached by one engine cycle.
type CycleState string

const (
	StateIdle           CycleState = "IDLE"
	StateAwaitingSignal CycleState = "AWAITING_SIGNAL"
	StateRejected       CycleState = "REJECTED"
	StateOpened         CycleState = "OPENED"
	StatePositionOpen   CycleState = "POSITION_OPEN"
	StateClosed         CycleState = "CLOSED"
	StateSkipped        CycleState = "SKIPPED"
)

// CycleSummary reports what one engine cycle did for a symbol.
type CycleSummary struct {
	Symbol   string       `json:"symbol"`
	State    CycleState   `json:"state"`
	Signal   Signal       `json:"signal"`
	Price    float64      `json:"price"`
	Time     time.Time    `json:"time"`
	Position *Position    `json:"position,omitempty"`
	Trade    *ClosedTrade `json:"trade,omitempty"`
	Rejected RejectReason `json:"rejected,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Err      string       `json:"error,omitempty"`
}

// SessionStats counts what the engine did since it started.
type SessionStats struct {
	StartedAt  time.Time `json:"started_at"`
	Cycles     int       `json:"cycles"`
	Signals    int       `json:"signals"`
	Opened     int       `json:"opened"`
	Closed     int       `json:"closed"`
	Rejections int       `json:"rejections"`
	Errors     int       `json:"errors"`
}

type EngineStatus struct {
	Running         bool                  `json:"running"`
	Mode            string                `json:"mode"`
	Strategy        string                `json:"strategy"`
	RiskLevel       int                   `json:"risk_level"`
	PositionSizePct float64               `json:"position_size_pct"`
	MinConfidence   float64               `json:"min_confidence"`
	Symbols         []string              `json:"symbols"`
	States          map[string]CycleState `json:"states"`
	Positions       []Position            `json:"positions"`
	Cash            float64               `json:"cash"`
	Equity          float64               `json:"equity"`
	Session         SessionStats          `json:"session"`
}

// DaySummary describes an end-of-day report. Path is empty when the day
// had no closed trades.
type DaySummary struct {
	Day    time.Time `json:"day"`
	Path   string    `json:"path,omitempty"`
	Trades int       `json:"trades"`
	NetPnL float64   `json:"net_pnl"`
}
