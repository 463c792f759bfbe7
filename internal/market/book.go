package market

import (
	"math"
	"sort"
	"time"
)

// priceScale converts float prices into integer ticks so book levels and
// footprint buckets never rely on float map-key equality.
const priceScale = 1e8

// PriceKey maps a price onto its integer tick.
func PriceKey(price float64) int64 {
	return int64(math.Round(price * priceScale))
}

// KeyPrice is the inverse of PriceKey.
func KeyPrice(key int64) float64 {
	return float64(key) / priceScale
}

// BookLevel is one resting price level.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// Book is a point-in-time copy of the order book. Bids are sorted
// descending, asks ascending; that ordering is part of the contract.
type Book struct {
	Time time.Time
	Bids []BookLevel
	Asks []BookLevel
}

// BestBid returns the highest bid, if any.
func (b Book) BestBid() (BookLevel, bool) {
	if len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (b Book) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}

// Mid returns the mid price. A one-sided or empty book has no mid and the
// market is treated as illiquid by callers.
func (b Book) Mid() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

func levelsFromMap(side map[int64]float64, descending bool) []BookLevel {
	keys := make([]int64, 0, len(side))
	for k := range side {
		keys = append(keys, k)
	}
	if descending {
		sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	} else {
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	}
	levels := make([]BookLevel, 0, len(keys))
	for _, k := range keys {
		levels = append(levels, BookLevel{Price: KeyPrice(k), Quantity: side[k]})
	}
	return levels
}
