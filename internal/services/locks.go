package services

import "sync"

// MarketLocks hands out one mutex per market id. Trades and settlement on the
// same market serialize; different markets proceed in parallel. An entry lives
// only while some caller holds or waits on it, so the map is bounded by the
// number of markets in use rather than every market ever traded.
type MarketLocks struct {
	mu    sync.Mutex
	locks map[uint]*marketLock
}

type marketLock struct {
	sync.Mutex
	refs int
}

func NewMarketLocks() *MarketLocks {
	return &MarketLocks{locks: make(map[uint]*marketLock)}
}

// Lock blocks until the market's lock is held and returns its release func
func (l *MarketLocks) Lock(marketID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[marketID]
	if !ok {
		m = &marketLock{}
		l.locks[marketID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, marketID)
		}
		l.mu.Unlock()
	}
}

func (l *MarketLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
