package engine

import (
	"sync"

	"algo-trading-bot/internal/types"
)

// symbolState serializes cycles for one symbol and remembers where its
// state machine stands between cycles.
type symbolState struct {
	mu    sync.Mutex // held for a whole cycle
	state types.CycleState
}

type symbolStates struct {
	mu     sync.RWMutex
	states map[string]*symbolState
}

func newSymbolStates(symbols []string) *symbolStates {
	m := make(map[string]*symbolState, len(symbols))
	for _, s := range symbols {
		m[s] = &symbolState{state: types.StateIdle}
	}
	return &symbolStates{states: m}
}

func (ss *symbolStates) get(symbol string) (*symbolState, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	st, ok := ss.states[symbol]
	return st, ok
}

func (ss *symbolStates) set(st *symbolState, state types.CycleState) {
	ss.mu.Lock()
	st.state = state
	ss.mu.Unlock()
}

func (ss *symbolStates) snapshot() map[string]types.CycleState {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make(map[string]types.CycleState, len(ss.states))
	for sym, st := range ss.states {
		out[sym] = st.state
	}
	return out
}
