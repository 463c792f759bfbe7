// Package profile builds price-binned volume histograms from the trade
// tape and derives the point of control, value area, and high-volume
// support/resistance nodes.
package profile

import (
	"sort"
	"time"

	"flowbot/internal/market"
)

// Bin is one price bucket of the histogram. Price is the bin's lower
// boundary.
type Bin struct {
	Price  float64
	Volume float64
}

// Profile is a fully built histogram. Bins are sorted ascending and only
// non-empty bins are kept. Rebuilt from scratch on every query.
type Profile struct {
	Bins          []Bin
	POC           float64
	ValueAreaLow  float64
	ValueAreaHigh float64
	TotalVolume   float64
}

// Empty reports whether no trades fell inside the lookback.
func (p Profile) Empty() bool { return len(p.Bins) == 0 }

// InValueArea checks whether a price sits inside the value area band.
func (p Profile) InValueArea(price float64) bool {
	return !p.Empty() && price >= p.ValueAreaLow && price <= p.ValueAreaHigh
}

// Builder constructs profiles from the shared market state.
type Builder struct {
	state        *market.State
	bins         int
	valueAreaPct float64
	now          func() time.Time
}

// NewBuilder configures bin count and value-area percentage.
func NewBuilder(state *market.State, bins int, valueAreaPct float64) *Builder {
	if bins <= 0 {
		bins = 100
	}
	return &Builder{state: state, bins: bins, valueAreaPct: valueAreaPct, now: time.Now}
}

// Build filters the tape to the lookback window, bins volume over the
// observed price range, and derives POC and value area. An empty window
// returns an empty, strength-neutral profile.
func (b *Builder) Build(lookback time.Duration) Profile {
	cutoff := b.now().Add(-lookback)
	trades := b.state.TradesSince(cutoff)
	if len(trades) == 0 {
		return Profile{}
	}

	minPrice, maxPrice := trades[0].Price, trades[0].Price
	for _, t := range trades[1:] {
		if t.Price < minPrice {
			minPrice = t.Price
		}
		if t.Price > maxPrice {
			maxPrice = t.Price
		}
	}

	binSize := (maxPrice - minPrice) / float64(b.bins)
	volumes := make(map[int]float64)
	for _, t := range trades {
		idx := 0
		if binSize > 0 {
			idx = int((t.Price - minPrice) / binSize)
			if idx >= b.bins {
				idx = b.bins - 1 // exact max price lands in the top bin
			}
		}
		volumes[idx] += t.Quantity
	}

	indices := make([]int, 0, len(volumes))
	for idx := range volumes {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	p := Profile{Bins: make([]Bin, 0, len(indices))}
	for _, idx := range indices {
		p.Bins = append(p.Bins, Bin{
			Price:  minPrice + float64(idx)*binSize,
			Volume: volumes[idx],
		})
		p.TotalVolume += volumes[idx]
	}

	pocIdx := 0
	for i, bin := range p.Bins {
		if bin.Volume > p.Bins[pocIdx].Volume {
			pocIdx = i // ties keep the lowest price bin
		}
	}
	p.POC = p.Bins[pocIdx].Price
	p.expandValueArea(pocIdx)
	return p
}

// expandValueArea grows the band outward from the POC toward the
// neighbor holding more volume until the target share is covered. Ties
// prefer the downward side; an exhausted side stops contributing.
func (p *Profile) expandValueArea(pocIdx int) {
	target := p.TotalVolume * p.valueAreaPct / 100
	low, high := pocIdx, pocIdx
	covered := p.Bins[pocIdx].Volume

	for covered < target {
		lowAvail := low > 0
		highAvail := high < len(p.Bins)-1
		if !lowAvail && !highAvail {
			break
		}
		lowVol, highVol := -1.0, -1.0
		if lowAvail {
			lowVol = p.Bins[low-1].Volume
		}
		if highAvail {
			highVol = p.Bins[high+1].Volume
		}
		if lowAvail && lowVol >= highVol {
			low--
			covered += lowVol
		} else {
			high++
			covered += highVol
		}
	}
	p.ValueAreaLow = p.Bins[low].Price
	p.ValueAreaHigh = p.Bins[high].Price
}

// SupportResistance picks bins with at least 1.5x the average bin volume
// and splits them around the current price, each side ordered by
// proximity, keeping the top three.
func (p Profile) SupportResistance(currentPrice float64) (support, resistance []float64) {
	if p.Empty() {
		return nil, nil
	}
	avg := p.TotalVolume / float64(len(p.Bins))
	threshold := avg * 1.5
	for _, bin := range p.Bins {
		if bin.Volume < threshold {
			continue
		}
		if bin.Price < currentPrice {
			support = append(support, bin.Price)
		} else if bin.Price > currentPrice {
			resistance = append(resistance, bin.Price)
		}
	}
	// closest level first on both sides
	sort.Sort(sort.Reverse(sort.Float64Slice(support)))
	sort.Float64s(resistance)
	if len(support) > 3 {
		support = support[:3]
	}
	if len(resistance) > 3 {
		resistance = resistance[:3]
	}
	return support, resistance
}
