package orderflow

import (
	"sort"
	"time"

	"flowbot/internal/market"
	"flowbot/internal/signal"
)

// FootprintRow aggregates aggressor volume at one price level.
type FootprintRow struct {
	Price      float64
	BuyVolume  float64
	SellVolume float64
	Delta      float64
}

// Footprint is a per-price breakdown of buy vs sell aggressor volume over
// a time window, rows sorted by ascending price. It is recomputed per
// query and never cached.
type Footprint struct {
	Rows []FootprintRow
}

// Empty reports whether no trades fell inside the window.
func (f Footprint) Empty() bool { return len(f.Rows) == 0 }

// TotalBuy sums buyer-aggressor volume across all rows.
func (f Footprint) TotalBuy() float64 {
	var total float64
	for _, r := range f.Rows {
		total += r.BuyVolume
	}
	return total
}

// TotalSell sums seller-aggressor volume across all rows.
func (f Footprint) TotalSell() float64 {
	var total float64
	for _, r := range f.Rows {
		total += r.SellVolume
	}
	return total
}

// TotalDelta is buy volume minus sell volume over the whole window.
func (f Footprint) TotalDelta() float64 {
	var total float64
	for _, r := range f.Rows {
		total += r.Delta
	}
	return total
}

// VolumeAt returns the traded volume (both sides) at an exact price level.
func (f Footprint) VolumeAt(price float64) float64 {
	key := market.PriceKey(price)
	for _, r := range f.Rows {
		if market.PriceKey(r.Price) == key {
			return r.BuyVolume + r.SellVolume
		}
	}
	return 0
}

// FootprintBuilder aggregates the trade tape into footprints.
type FootprintBuilder struct {
	state *market.State
	now   func() time.Time
}

// NewFootprintBuilder reads trades from the shared market state.
func NewFootprintBuilder(state *market.State) *FootprintBuilder {
	return &FootprintBuilder{state: state, now: time.Now}
}

// Build buckets every trade inside the window by price. A trade is
// seller-initiated when the resting side was the bid (buyer-maker set),
// buyer-initiated otherwise.
func (b *FootprintBuilder) Build(window time.Duration) Footprint {
	cutoff := b.now().Add(-window)
	trades := b.state.TradesSince(cutoff)
	if len(trades) == 0 {
		return Footprint{}
	}

	rows := make(map[int64]*FootprintRow)
	for _, t := range trades {
		key := market.PriceKey(t.Price)
		row, ok := rows[key]
		if !ok {
			row = &FootprintRow{Price: t.Price}
			rows[key] = row
		}
		if t.IsBuyerMaker {
			row.SellVolume += t.Quantity
		} else {
			row.BuyVolume += t.Quantity
		}
	}

	keys := make([]int64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	fp := Footprint{Rows: make([]FootprintRow, 0, len(keys))}
	for _, k := range keys {
		row := rows[k]
		row.Delta = row.BuyVolume - row.SellVolume
		fp.Rows = append(fp.Rows, *row)
	}
	return fp
}

// Absorption is the outcome of checking a wall against a footprint.
type Absorption struct {
	Detected     bool
	Direction    signal.Bias
	TradedVolume float64
	Ratio        float64
}

// DetectAbsorption fires when traded volume at the wall's price exceeds
// ratio times the wall size while the wall still rests on the book.
// Passive size eating aggressive flow implies the opposite direction of
// the aggressors: a bid wall that holds is bullish, an ask wall bearish.
func DetectAbsorption(fp Footprint, wall Wall, ratio float64) Absorption {
	traded := fp.VolumeAt(wall.Price)
	if wall.Size <= 0 || traded < ratio*wall.Size {
		return Absorption{TradedVolume: traded}
	}
	direction := signal.Bullish
	if wall.Side == WallAsk {
		direction = signal.Bearish
	}
	return Absorption{
		Detected:     true,
		Direction:    direction,
		TradedVolume: traded,
		Ratio:        traded / wall.Size,
	}
}
