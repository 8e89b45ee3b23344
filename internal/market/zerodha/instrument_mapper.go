package zerodha

import (
	"sync"
)

// instrumentMapper caches symbol to instrument token lookups.
type instrumentMapper struct {
	symbolToToken map[string]uint32
	mu            sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{symbolToToken: make(map[string]uint32)}
}

func (im *instrumentMapper) addMapping(symbol string, token uint32) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.symbolToToken[symbol] = token
}

func (im *instrumentMapper) getToken(symbol string) (uint32, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	token, ok := im.symbolToToken[symbol]
	return token, ok
}

// lastPrices remembers the latest close per symbol for local fills.
type lastPrices struct {
	mu sync.RWMutex
	px map[string]float64
}

func newLastPrices() *lastPrices {
	return &lastPrices{px: make(map[string]float64)}
}

func (lp *lastPrices) set(symbol string, price float64) {
	lp.mu.Lock()
	lp.px[symbol] = price
	lp.mu.Unlock()
}

func (lp *lastPrices) get(symbol string) (float64, bool) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	p, ok := lp.px[symbol]
	return p, ok
}
