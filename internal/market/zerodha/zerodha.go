// Package zerodha is market access backed by the Kite Connect REST API.
package zerodha

import (
	"context"
	"strings"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

const (
	fillPollInterval = 500 * time.Millisecond
	fillPollAttempts = 20
)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string // default exchange for symbols without an "EXCH:" prefix
	Product     string
	FeeRate     float64 // Kite does not report charges per order; fees are estimated
	// Testnet keeps data live but fills orders locally at the last close.
	Testnet bool
}

// kiteAPI is the subset of *kiteconnect.Client used here.
type kiteAPI interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	GetOrderHistory(OrderID string) ([]kiteconnect.Order, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
}

type Zerodha struct {
	p       Params
	kc      kiteAPI
	mapper  *instrumentMapper
	now     func() time.Time
	lastPx  *lastPrices
	pollGap time.Duration
}

var _ interfaces.MarketAccess = (*Zerodha)(nil)

func New(p Params) (*Zerodha, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.Wrap(types.ErrConfigurationInvalid, "missing KITE_API_KEY/KITE_ACCESS_TOKEN")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithClient(p, kc), nil
}

func newWithClient(p Params, kc kiteAPI) *Zerodha {
	if p.Exchange == "" {
		p.Exchange = kiteconnect.ExchangeNSE
	}
	if p.Product == "" {
		p.Product = kiteconnect.ProductCNC
	}
	return &Zerodha{
		p:       p,
		kc:      kc,
		mapper:  newInstrumentMapper(),
		now:     time.Now,
		lastPx:  newLastPrices(),
		pollGap: fillPollInterval,
	}
}

// splitSymbol accepts "NSE:INFY" or a bare trading symbol.
func (z *Zerodha) splitSymbol(symbol string) (exchange, tradingSymbol string) {
	if i := strings.IndexByte(symbol, ':'); i > 0 {
		return strings.ToUpper(symbol[:i]), symbol[i+1:]
	}
	return z.p.Exchange, symbol
}

func (z *Zerodha) token(ctx context.Context, symbol string) (int, error) {
	if tok, ok := z.mapper.getToken(symbol); ok {
		return int(tok), nil
	}
	exchange, ts := z.splitSymbol(symbol)
	instruments, err := z.kc.GetInstrumentsByExchange(exchange)
	if err != nil {
		return 0, errors.Wrapf(types.ErrFeedUnavailable, "instruments %s: %v", exchange, err)
	}
	for _, in := range instruments {
		if in.Tradingsymbol == ts {
			z.mapper.addMapping(symbol, uint32(in.InstrumentToken))
			logger.Debug(ctx, "Resolved instrument token", "symbol", symbol, "token", in.InstrumentToken)
			return in.InstrumentToken, nil
		}
	}
	return 0, errors.Wrapf(types.ErrConfigurationInvalid, "unknown instrument %s on %s", ts, exchange)
}

func (z *Zerodha) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	iv, err := intervalFor(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Errorf("invalid candle limit %d", limit)
	}
	tok, err := z.token(ctx, symbol)
	if err != nil {
		return nil, err
	}

	to := z.now()
	from := to.Add(-iv.lookback(limit))
	rows, err := z.kc.GetHistoricalData(tok, iv.kite, from, to, false, false)
	if err != nil {
		return nil, errors.Wrapf(types.ErrFeedUnavailable, "historical %s %s: %v", symbol, iv.kite, err)
	}

	cs := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		cs = append(cs, types.Candle{
			Time:   r.Date.Time.UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: float64(r.Volume),
		})
	}
	cs = dropForming(resample(cs, iv.group), iv.bar, to)
	if len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	if len(cs) > 0 {
		z.lastPx.set(symbol, cs[len(cs)-1].Close)
	}
	return cs, nil
}

// PlaceOrder sends a market order and polls its history until it completes.
func (z *Zerodha) PlaceOrder(ctx context.Context, symbol string, side types.OrderSide, size float64) (types.FillResult, error) {
	qty := int(size)
	if qty <= 0 {
		return types.FillResult{}, errors.Errorf("order size %.4f below one share", size)
	}

	if z.p.Testnet {
		price, ok := z.lastPx.get(symbol)
		if !ok {
			return types.FillResult{}, errors.Errorf("no price for %s, fetch candles first", symbol)
		}
		fill := types.FillResult{OrderID: "SIM-" + uuid.NewString(), Price: price, Size: float64(qty)}
		fill.Fee = fill.Price * fill.Size * z.p.FeeRate
		logger.Info(ctx, "Simulated order placed", "symbol", symbol, "side", side, "qty", qty, "order_id", fill.OrderID)
		return fill, nil
	}

	exchange, ts := z.splitSymbol(symbol)
	txn := kiteconnect.TransactionTypeBuy
	if side == types.SideSell {
		txn = kiteconnect.TransactionTypeSell
	}
	resp, err := z.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        exchange,
		Tradingsymbol:   ts,
		Validity:        kiteconnect.ValidityDay,
		Product:         z.p.Product,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: txn,
		Quantity:        qty,
		Tag:             "algobot",
	})
	if err != nil {
		return types.FillResult{}, errors.Wrapf(err, "place %s %s", side, symbol)
	}
	return z.awaitFill(ctx, resp.OrderID)
}

func (z *Zerodha) awaitFill(ctx context.Context, orderID string) (types.FillResult, error) {
	for attempt := 0; attempt < fillPollAttempts; attempt++ {
		hist, err := z.kc.GetOrderHistory(orderID)
		if err != nil {
			return types.FillResult{}, errors.Wrapf(err, "order history %s", orderID)
		}
		if len(hist) > 0 {
			last := hist[len(hist)-1]
			switch last.Status {
			case "COMPLETE":
				fill := types.FillResult{
					OrderID: orderID,
					Price:   last.AveragePrice,
					Size:    float64(last.FilledQuantity),
				}
				fill.Fee = fill.Price * fill.Size * z.p.FeeRate
				return fill, nil
			case "REJECTED", "CANCELLED":
				return types.FillResult{}, errors.Errorf("order %s %s: %s", orderID, strings.ToLower(last.Status), last.StatusMessage)
			}
		}
		select {
		case <-ctx.Done():
			return types.FillResult{}, errors.Wrapf(ctx.Err(), "waiting for order %s", orderID)
		case <-time.After(z.pollGap):
		}
	}
	return types.FillResult{}, errors.Errorf("order %s not filled after %d checks", orderID, fillPollAttempts)
}

// FetchBalance returns the net equity-segment margin.
func (z *Zerodha) FetchBalance(ctx context.Context) (float64, error) {
	m, err := z.kc.GetUserMargins()
	if err != nil {
		return 0, errors.Wrap(err, "user margins")
	}
	return m.Equity.Net, nil
}
