package ledger

import (
	"context"
	"sync"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type PaperConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
	FeeRate        float64 `yaml:"fee_rate"`
	FlatFee        float64 `yaml:"flat_fee"`
	SlippagePct    float64 `yaml:"slippage_pct"`
}

func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		InitialBalance: 10000,
		FeeRate:        0.001,
		SlippagePct:    0.0005,
	}
}

func (c PaperConfig) Validate() error {
	if c.InitialBalance <= 0 {
		return errors.Wrapf(types.ErrConfigurationInvalid, "initial balance %.2f must be positive", c.InitialBalance)
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 || c.FlatFee < 0 {
		return errors.Wrapf(types.ErrConfigurationInvalid, "fee rate %.4f / flat fee %.4f", c.FeeRate, c.FlatFee)
	}
	if c.SlippagePct < 0 || c.SlippagePct >= 1 {
		return errors.Wrapf(types.ErrConfigurationInvalid, "slippage %.4f outside [0,1)", c.SlippagePct)
	}
	return nil
}

// PaperStats summarises simulated fills.
type PaperStats struct {
	Fills  int     `json:"fills"`
	Buys   int     `json:"buys"`
	Sells  int     `json:"sells"`
	Volume float64 `json:"volume"`
	Fees   float64 `json:"fees"`
}

// PaperState is a consistent snapshot of the simulated account.
type PaperState struct {
	InitialBalance float64
	Cash           float64
	RealizedPnL    float64
	FeesPaid       float64
	Positions      []types.Position
	History        []types.ClosedTrade
}

// Paper simulates fills against an in-memory account. Entries fill at the
// order's reference price moved against the trader by SlippagePct; exits at
// stop, target or end-of-window levels fill exactly at the level.
type Paper struct {
	cfg PaperConfig
	now func() time.Time

	mu        sync.Mutex
	initial   decimal.Decimal
	cash      decimal.Decimal
	realized  decimal.Decimal
	fees      decimal.Decimal
	volume    decimal.Decimal
	positions map[string]types.Position
	marks     map[string]float64
	history   []types.ClosedTrade
	buys      int
	sells     int
}

var _ interfaces.Ledger = (*Paper)(nil)

func NewPaper(cfg PaperConfig, opts ...Option) (*Paper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	initial := decimal.NewFromFloat(cfg.InitialBalance)
	return &Paper{
		cfg:       cfg,
		now:       o.now,
		initial:   initial,
		cash:      initial,
		realized:  decimal.Zero,
		fees:      decimal.Zero,
		volume:    decimal.Zero,
		positions: make(map[string]types.Position),
		marks:     make(map[string]float64),
	}, nil
}

func (p *Paper) Mode() string { return ModePaper }

// EntryCosts reports the slippage and fees an entry fill is charged.
func (p *Paper) EntryCosts() risk.Costs {
	return risk.Costs{FeeRate: p.cfg.FeeRate, FlatFee: p.cfg.FlatFee, SlippagePct: p.cfg.SlippagePct}
}

func (p *Paper) fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(decimal.NewFromFloat(p.cfg.FeeRate)).Add(decimal.NewFromFloat(p.cfg.FlatFee))
}

func (p *Paper) Open(ctx context.Context, order types.Order) (types.Position, error) {
	if order.Side != types.SideBuy {
		return types.Position{}, errors.Errorf("paper ledger opens long positions only, got %s", order.Side)
	}
	if order.Price <= 0 || order.Quantity <= 0 {
		return types.Position{}, errors.Errorf("invalid order for %s: price %.4f qty %.8f", order.Symbol, order.Price, order.Quantity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.positions[order.Symbol]; ok {
		return types.Position{}, errors.Wrap(types.ErrPositionExists, order.Symbol)
	}

	fill := order.Price * (1 + p.cfg.SlippagePct)
	qty := order.Quantity
	if order.Notional > 0 {
		// Trim so fill cost plus fees stays inside the sized budget.
		maxQty := (order.Notional - p.cfg.FlatFee) / (fill * (1 + p.cfg.FeeRate))
		if qty > maxQty {
			qty = risk.FloorToStep(maxQty, order.Step)
		}
	}
	if qty <= 0 {
		return types.Position{}, errors.Wrapf(types.ErrInsufficientFunds, "%s budget %.2f does not cover fees", order.Symbol, order.Notional)
	}

	cost := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(fill))
	fee := p.fee(cost)
	if p.cash.LessThan(cost.Add(fee)) {
		return types.Position{}, errors.Wrapf(types.ErrInsufficientFunds, "need %s, have %s",
			cost.Add(fee).StringFixed(2), p.cash.StringFixed(2))
	}

	opened := order.Time
	if opened.IsZero() {
		opened = p.now()
	}
	stop, target := exitLevels(order, fill)
	pos := types.Position{
		Symbol:     order.Symbol,
		Side:       types.Long,
		EntryPrice: fill,
		Size:       qty,
		StopLoss:   stop,
		TakeProfit: target,
		EntryFee:   fee.InexactFloat64(),
		OpenedAt:   opened,
		OrderID:    uuid.NewString(),
	}

	p.cash = p.cash.Sub(cost).Sub(fee)
	p.fees = p.fees.Add(fee)
	p.volume = p.volume.Add(cost)
	p.buys++
	p.positions[order.Symbol] = pos
	p.marks[order.Symbol] = order.Price

	logger.Trade(ctx, pos.Symbol, string(types.SideBuy), pos.Size, pos.EntryPrice, pos.OrderID,
		"fee", pos.EntryFee, "stop_loss", pos.StopLoss, "take_profit", pos.TakeProfit, "ledger", ModePaper)
	return pos, nil
}

func (p *Paper) Close(ctx context.Context, pos types.Position, exitPrice float64, reason types.ExitReason) (types.ClosedTrade, error) {
	if exitPrice <= 0 {
		return types.ClosedTrade{}, errors.Errorf("invalid exit price %.4f for %s", exitPrice, pos.Symbol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.positions[pos.Symbol]
	if !ok {
		return types.ClosedTrade{}, errors.Wrap(types.ErrNoPosition, pos.Symbol)
	}

	fill := exitPrice
	if reason.MarketFill() {
		fill = exitPrice * (1 - p.cfg.SlippagePct)
	}
	size := decimal.NewFromFloat(cur.Size)
	proceeds := size.Mul(decimal.NewFromFloat(fill))
	fee := p.fee(proceeds)
	gross := decimal.NewFromFloat(fill).Sub(decimal.NewFromFloat(cur.EntryPrice)).Mul(size)
	entryFee := decimal.NewFromFloat(cur.EntryFee)

	p.cash = p.cash.Add(proceeds).Sub(fee)
	p.fees = p.fees.Add(fee)
	p.realized = p.realized.Add(gross)
	p.volume = p.volume.Add(proceeds)
	p.sells++
	delete(p.positions, cur.Symbol)
	p.marks[cur.Symbol] = exitPrice

	trade := types.ClosedTrade{
		Symbol:     cur.Symbol,
		EntryPrice: cur.EntryPrice,
		ExitPrice:  fill,
		Size:       cur.Size,
		OpenedAt:   cur.OpenedAt,
		ClosedAt:   p.now(),
		GrossPnL:   gross.InexactFloat64(),
		Fees:       entryFee.Add(fee).InexactFloat64(),
		NetPnL:     gross.Sub(entryFee).Sub(fee).InexactFloat64(),
		Reason:     reason,
	}
	p.history = append(p.history, trade)

	logger.Trade(ctx, trade.Symbol, string(types.SideSell), trade.Size, trade.ExitPrice, cur.OrderID,
		"reason", string(reason), "net_pnl", trade.NetPnL, "ledger", ModePaper)
	return trade, nil
}

func (p *Paper) MarkToMarket(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sym, price := range prices {
		if _, ok := p.positions[sym]; ok && price > 0 {
			p.marks[sym] = price
		}
	}
	return p.cash.InexactFloat64() + markValue(p.positions, prices, p.marks)
}

func (p *Paper) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash.InexactFloat64()
}

func (p *Paper) Position(symbol string) (types.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	return pos, ok
}

func (p *Paper) Positions() []types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedPositions(p.positions)
}

func (p *Paper) History() []types.ClosedTrade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.ClosedTrade(nil), p.history...)
}

func (p *Paper) Snapshot() PaperState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PaperState{
		InitialBalance: p.initial.InexactFloat64(),
		Cash:           p.cash.InexactFloat64(),
		RealizedPnL:    p.realized.InexactFloat64(),
		FeesPaid:       p.fees.InexactFloat64(),
		Positions:      sortedPositions(p.positions),
		History:        append([]types.ClosedTrade(nil), p.history...),
	}
}

func (p *Paper) Stats() PaperStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PaperStats{
		Fills:  p.buys + p.sells,
		Buys:   p.buys,
		Sells:  p.sells,
		Volume: p.volume.InexactFloat64(),
		Fees:   p.fees.InexactFloat64(),
	}
}
