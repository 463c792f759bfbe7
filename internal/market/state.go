// Package market owns the shared mutable view of the instrument: order
// book, trade ring, closed candles, and the synced account. Stream
// ingestion writes through the setters here; analyzers only read. Each
// field group carries its own lock so one stream never blocks another.
package market

import (
	"sync"
	"time"
)

// Trade is an executed print. Immutable once recorded.
type Trade struct {
	Time         time.Time
	Price        float64
	Quantity     float64
	IsBuyerMaker bool // true means the aggressor sold into the bid
	ID           int64
}

// Candle is one closed OHLCV bar. In-flight bars are never stored.
type Candle struct {
	Interval string
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Position is one open futures position as reported by the venue.
type Position struct {
	Symbol        string
	Quantity      float64 // signed: positive long, negative short
	EntryPrice    float64
	UnrealizedPnL float64
}

// State is the single writable source of truth for market and account
// facts. Analyzers hold a read-only reference.
type State struct {
	bookMu sync.RWMutex
	bids   map[int64]float64
	asks   map[int64]float64

	tradeMu      sync.RWMutex
	trades       []Trade
	tradeNext    int
	tradeCount   int
	currentPrice float64

	candleMu    sync.RWMutex
	candles     map[string][]Candle
	candleLimit int

	acctMu      sync.RWMutex
	balance     float64
	positions   []Position
	dailyPnL    float64
	dailyTrades int
	volume24h   float64
}

// NewState sizes the trade ring and per-interval candle history.
func NewState(tradeCapacity, candleLimit int) *State {
	if tradeCapacity <= 0 {
		tradeCapacity = 2000
	}
	if candleLimit <= 0 {
		candleLimit = 500
	}
	return &State{
		bids:        make(map[int64]float64),
		asks:        make(map[int64]float64),
		trades:      make([]Trade, tradeCapacity),
		candles:     make(map[string][]Candle),
		candleLimit: candleLimit,
	}
}

// ApplyBookUpdate merges delta events into the book. Zero quantity
// removes the level, so no empty entries persist.
func (s *State) ApplyBookUpdate(bids, asks []BookLevel) {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()
	for _, lvl := range bids {
		key := PriceKey(lvl.Price)
		if lvl.Quantity == 0 {
			delete(s.bids, key)
		} else {
			s.bids[key] = lvl.Quantity
		}
	}
	for _, lvl := range asks {
		key := PriceKey(lvl.Price)
		if lvl.Quantity == 0 {
			delete(s.asks, key)
		} else {
			s.asks[key] = lvl.Quantity
		}
	}
}

// BookSnapshot copies the current book with its ordering contract applied.
func (s *State) BookSnapshot() Book {
	s.bookMu.RLock()
	defer s.bookMu.RUnlock()
	return Book{
		Time: time.Now(),
		Bids: levelsFromMap(s.bids, true),
		Asks: levelsFromMap(s.asks, false),
	}
}

// AppendTrade records a print and advances the current price. The ring
// evicts the oldest entry on overflow.
func (s *State) AppendTrade(t Trade) {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()
	s.trades[s.tradeNext] = t
	s.tradeNext = (s.tradeNext + 1) % len(s.trades)
	if s.tradeCount < len(s.trades) {
		s.tradeCount++
	}
	s.currentPrice = t.Price
}

// TradesSince returns prints at or after cutoff in chronological order.
func (s *State) TradesSince(cutoff time.Time) []Trade {
	s.tradeMu.RLock()
	defer s.tradeMu.RUnlock()
	out := make([]Trade, 0, s.tradeCount)
	start := s.tradeNext - s.tradeCount
	if start < 0 {
		start += len(s.trades)
	}
	for i := 0; i < s.tradeCount; i++ {
		t := s.trades[(start+i)%len(s.trades)]
		if !t.Time.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// CurrentPrice is the price of the most recent trade, zero before any.
func (s *State) CurrentPrice() float64 {
	s.tradeMu.RLock()
	defer s.tradeMu.RUnlock()
	return s.currentPrice
}

// AppendCandle stores one closed bar, trimming history to the limit.
func (s *State) AppendCandle(c Candle) {
	s.candleMu.Lock()
	defer s.candleMu.Unlock()
	hist := append(s.candles[c.Interval], c)
	if len(hist) > s.candleLimit {
		hist = hist[len(hist)-s.candleLimit:]
	}
	s.candles[c.Interval] = hist
}

// Closes returns the last `periods` closing prices for the interval,
// oldest first, or nil when history is insufficient.
func (s *State) Closes(interval string, periods int) []float64 {
	s.candleMu.RLock()
	defer s.candleMu.RUnlock()
	hist := s.candles[interval]
	if len(hist) < periods {
		return nil
	}
	out := make([]float64, periods)
	for i, c := range hist[len(hist)-periods:] {
		out[i] = c.Close
	}
	return out
}

// Candles returns up to `n` most recent closed bars for the interval,
// oldest first.
func (s *State) Candles(interval string, n int) []Candle {
	s.candleMu.RLock()
	defer s.candleMu.RUnlock()
	hist := s.candles[interval]
	if len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	out := make([]Candle, len(hist))
	copy(out, hist)
	return out
}

// SetAccount replaces the synced balance and open positions.
func (s *State) SetAccount(balance float64, positions []Position) {
	s.acctMu.Lock()
	defer s.acctMu.Unlock()
	s.balance = balance
	s.positions = make([]Position, len(positions))
	copy(s.positions, positions)
}

// Balance returns the last synced wallet balance.
func (s *State) Balance() float64 {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	return s.balance
}

// Positions copies the open position list.
func (s *State) Positions() []Position {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	out := make([]Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// AddDailyPnL accumulates realized PnL since the last daily reset.
func (s *State) AddDailyPnL(delta float64) {
	s.acctMu.Lock()
	defer s.acctMu.Unlock()
	s.dailyPnL += delta
}

// DailyPnL returns realized PnL since the last daily reset.
func (s *State) DailyPnL() float64 {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	return s.dailyPnL
}

// IncDailyTrades bumps the day's trade counter.
func (s *State) IncDailyTrades() {
	s.acctMu.Lock()
	defer s.acctMu.Unlock()
	s.dailyTrades++
}

// DailyTrades returns the day's trade count.
func (s *State) DailyTrades() int {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	return s.dailyTrades
}

// ResetDaily zeroes the daily PnL and trade counters.
func (s *State) ResetDaily() {
	s.acctMu.Lock()
	defer s.acctMu.Unlock()
	s.dailyPnL = 0
	s.dailyTrades = 0
}

// SetVolume24h records the rolling 24h quote volume from the ticker feed.
func (s *State) SetVolume24h(v float64) {
	s.acctMu.Lock()
	defer s.acctMu.Unlock()
	s.volume24h = v
}

// Volume24h returns the last observed 24h quote volume.
func (s *State) Volume24h() float64 {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	return s.volume24h
}
