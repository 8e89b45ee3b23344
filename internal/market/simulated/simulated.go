// Package simulated is an in-process exchange: random-walk candles and
// immediate fills at the last close. It needs no credentials.
package simulated

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultDepth = 500

type Config struct {
	Seed       int64
	StartPrice float64
	Volatility float64 // per-bar standard deviation of returns
	FeeRate    float64
	Balance    float64
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Seed:       1,
		StartPrice: 1000,
		Volatility: 0.01,
		FeeRate:    0.001,
		Balance:    10000,
	}
}

type Market struct {
	cfg Config

	mu       sync.Mutex
	series   map[string][]types.Candle
	rngs     map[string]*rand.Rand
	last     map[string]float64
	cash     float64
	holdings map[string]float64
}

var _ interfaces.MarketAccess = (*Market)(nil)

func New(cfg Config) *Market {
	def := DefaultConfig()
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = def.StartPrice
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = def.Volatility
	}
	if cfg.Balance <= 0 {
		cfg.Balance = def.Balance
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Market{
		cfg:      cfg,
		series:   make(map[string][]types.Candle),
		rngs:     make(map[string]*rand.Rand),
		last:     make(map[string]float64),
		cash:     cfg.Balance,
		holdings: make(map[string]float64),
	}
}

// rng gives each symbol its own reproducible stream.
func (m *Market) rng(symbol string) *rand.Rand {
	if r, ok := m.rngs[symbol]; ok {
		return r
	}
	h := fnv.New64a()
	h.Write([]byte(symbol))
	r := rand.New(rand.NewSource(m.cfg.Seed ^ int64(h.Sum64())))
	m.rngs[symbol] = r
	return r
}

func (m *Market) bar(r *rand.Rand, open float64, at time.Time) types.Candle {
	vol := m.cfg.Volatility
	c := open * (1 + r.NormFloat64()*vol)
	if c <= 0 {
		c = open * 0.5
	}
	h := math.Max(open, c) * (1 + math.Abs(r.NormFloat64())*vol/2)
	l := math.Min(open, c) * (1 - math.Abs(r.NormFloat64())*vol/2)
	return types.Candle{Time: at, Open: open, High: h, Low: l, Close: c, Volume: r.Float64() * 1000}
}

// FetchCandles returns the last limit closed bars. The series is extended
// forward as the clock advances, so repeated calls agree on shared bars.
func (m *Market) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(types.ErrFeedUnavailable, err.Error())
	}
	d, err := types.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Errorf("invalid candle limit %d", limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := symbol + "|" + timeframe
	r := m.rng(key)
	lastOpen := m.cfg.Now().UTC().Truncate(d).Add(-d)
	cs := m.series[key]

	if len(cs) == 0 {
		n := limit
		if n < defaultDepth {
			n = defaultDepth
		}
		cs = make([]types.Candle, 0, n)
		price := m.cfg.StartPrice
		start := lastOpen.Add(-time.Duration(n-1) * d)
		for i := 0; i < n; i++ {
			c := m.bar(r, price, start.Add(time.Duration(i)*d))
			cs = append(cs, c)
			price = c.Close
		}
	}
	for last := cs[len(cs)-1]; last.Time.Before(lastOpen); last = cs[len(cs)-1] {
		cs = append(cs, m.bar(r, last.Close, last.Time.Add(d)))
	}
	m.series[key] = cs
	m.last[symbol] = cs[len(cs)-1].Close

	if limit > len(cs) {
		limit = len(cs)
	}
	return append([]types.Candle(nil), cs[len(cs)-limit:]...), nil
}

// PlaceOrder fills immediately at the last close seen for symbol.
func (m *Market) PlaceOrder(ctx context.Context, symbol string, side types.OrderSide, size float64) (types.FillResult, error) {
	if size <= 0 {
		return types.FillResult{}, errors.Errorf("invalid order size %.8f", size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.last[symbol]
	if !ok {
		return types.FillResult{}, errors.Errorf("no price for %s, fetch candles first", symbol)
	}
	notional := price * size
	fee := notional * m.cfg.FeeRate

	switch side {
	case types.SideBuy:
		if notional+fee > m.cash {
			return types.FillResult{}, errors.Wrapf(types.ErrInsufficientFunds, "need %.2f, have %.2f", notional+fee, m.cash)
		}
		m.cash -= notional + fee
		m.holdings[symbol] += size
	case types.SideSell:
		if m.holdings[symbol] < size {
			return types.FillResult{}, errors.Errorf("cannot sell %.8f %s, holding %.8f", size, symbol, m.holdings[symbol])
		}
		m.cash += notional - fee
		m.holdings[symbol] -= size
	default:
		return types.FillResult{}, errors.Errorf("unknown side %q", side)
	}

	return types.FillResult{OrderID: "SIM-" + uuid.NewString(), Price: price, Size: size, Fee: fee}, nil
}

func (m *Market) FetchBalance(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash, nil
}
