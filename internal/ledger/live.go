package ledger

import (
	"context"
	"sync"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

// Live sends orders through market access and records what the exchange
// reports. No lock is held while an order is in flight.
type Live struct {
	market interfaces.MarketAccess
	now    func() time.Time

	mu        sync.Mutex
	cash      float64
	positions map[string]types.Position
	inFlight  map[string]bool
	marks     map[string]float64
	history   []types.ClosedTrade
}

var _ interfaces.Ledger = (*Live)(nil)

func NewLive(market interfaces.MarketAccess, opts ...Option) *Live {
	o := buildOptions(opts)
	return &Live{
		market:    market,
		now:       o.now,
		positions: make(map[string]types.Position),
		inFlight:  make(map[string]bool),
		marks:     make(map[string]float64),
	}
}

func (l *Live) Mode() string { return ModeLive }

// Sync refreshes the cash balance from the exchange.
func (l *Live) Sync(ctx context.Context) error {
	bal, err := l.market.FetchBalance(ctx)
	if err != nil {
		return errors.Wrapf(types.ErrFeedUnavailable, "fetch balance: %v", err)
	}
	l.mu.Lock()
	l.cash = bal
	l.mu.Unlock()
	return nil
}

func (l *Live) reserve(symbol string, wantOpen bool) (types.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[symbol] {
		return types.Position{}, errors.Errorf("order already in flight for %s", symbol)
	}
	pos, open := l.positions[symbol]
	if wantOpen && !open {
		return types.Position{}, errors.Wrap(types.ErrNoPosition, symbol)
	}
	if !wantOpen && open {
		return types.Position{}, errors.Wrap(types.ErrPositionExists, symbol)
	}
	l.inFlight[symbol] = true
	return pos, nil
}

func (l *Live) release(symbol string) {
	l.mu.Lock()
	delete(l.inFlight, symbol)
	l.mu.Unlock()
}

func (l *Live) Open(ctx context.Context, order types.Order) (types.Position, error) {
	if order.Side != types.SideBuy || order.Quantity <= 0 {
		return types.Position{}, errors.Errorf("invalid live entry for %s: %s %.8f", order.Symbol, order.Side, order.Quantity)
	}
	if _, err := l.reserve(order.Symbol, false); err != nil {
		return types.Position{}, err
	}
	defer l.release(order.Symbol)

	fill, err := l.market.PlaceOrder(ctx, order.Symbol, types.SideBuy, order.Quantity)
	if err != nil {
		return types.Position{}, errors.Wrapf(types.ErrExecutionFailed, "buy %s: %v", order.Symbol, err)
	}
	if fill.Size <= 0 || fill.Price <= 0 {
		return types.Position{}, errors.Wrapf(types.ErrExecutionFailed, "buy %s: empty fill %+v", order.Symbol, fill)
	}

	stop, target := exitLevels(order, fill.Price)
	opened := order.Time
	if opened.IsZero() {
		opened = l.now()
	}
	pos := types.Position{
		Symbol:     order.Symbol,
		Side:       types.Long,
		EntryPrice: fill.Price,
		Size:       fill.Size,
		StopLoss:   stop,
		TakeProfit: target,
		EntryFee:   fill.Fee,
		OpenedAt:   opened,
		OrderID:    fill.OrderID,
	}

	l.mu.Lock()
	l.positions[pos.Symbol] = pos
	l.cash -= fill.Size*fill.Price + fill.Fee
	l.marks[pos.Symbol] = fill.Price
	l.mu.Unlock()

	if fill.Size < order.Quantity {
		logger.Warn(ctx, "Partial fill recorded", "symbol", pos.Symbol, "requested", order.Quantity, "filled", fill.Size)
	}
	logger.Trade(ctx, pos.Symbol, string(types.SideBuy), pos.Size, pos.EntryPrice, pos.OrderID,
		"fee", pos.EntryFee, "stop_loss", pos.StopLoss, "take_profit", pos.TakeProfit, "ledger", ModeLive)
	return pos, nil
}

func (l *Live) Close(ctx context.Context, pos types.Position, exitPrice float64, reason types.ExitReason) (types.ClosedTrade, error) {
	cur, err := l.reserve(pos.Symbol, true)
	if err != nil {
		return types.ClosedTrade{}, err
	}
	defer l.release(pos.Symbol)

	fill, err := l.market.PlaceOrder(ctx, cur.Symbol, types.SideSell, cur.Size)
	if err != nil {
		return types.ClosedTrade{}, errors.Wrapf(types.ErrExecutionFailed, "sell %s: %v", cur.Symbol, err)
	}
	if fill.Size <= 0 || fill.Price <= 0 {
		return types.ClosedTrade{}, errors.Wrapf(types.ErrExecutionFailed, "sell %s: empty fill %+v", cur.Symbol, fill)
	}

	gross := (fill.Price - cur.EntryPrice) * fill.Size
	trade := types.ClosedTrade{
		Symbol:     cur.Symbol,
		EntryPrice: cur.EntryPrice,
		ExitPrice:  fill.Price,
		Size:       fill.Size,
		OpenedAt:   cur.OpenedAt,
		ClosedAt:   l.now(),
		GrossPnL:   gross,
		Fees:       cur.EntryFee + fill.Fee,
		NetPnL:     gross - cur.EntryFee - fill.Fee,
		Reason:     reason,
	}

	l.mu.Lock()
	if rest := cur.Size - fill.Size; rest > 0 {
		cur.Size = rest
		l.positions[cur.Symbol] = cur
	} else {
		delete(l.positions, cur.Symbol)
	}
	l.cash += fill.Size*fill.Price - fill.Fee
	l.marks[cur.Symbol] = fill.Price
	l.history = append(l.history, trade)
	l.mu.Unlock()

	logger.Trade(ctx, trade.Symbol, string(types.SideSell), trade.Size, trade.ExitPrice, fill.OrderID,
		"reason", string(reason), "trigger_price", exitPrice, "net_pnl", trade.NetPnL, "ledger", ModeLive)
	return trade, nil
}

func (l *Live) MarkToMarket(prices map[string]float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sym, price := range prices {
		if _, ok := l.positions[sym]; ok && price > 0 {
			l.marks[sym] = price
		}
	}
	return l.cash + markValue(l.positions, prices, l.marks)
}

func (l *Live) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

func (l *Live) Position(symbol string) (types.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	return pos, ok
}

func (l *Live) Positions() []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedPositions(l.positions)
}

func (l *Live) History() []types.ClosedTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.ClosedTrade(nil), l.history...)
}
