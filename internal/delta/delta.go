// Package delta tracks cumulative order-flow delta over time and detects
// divergences between the delta trend and the price trend.
package delta

import (
	"fmt"
	"time"

	"flowbot/internal/market"
	"flowbot/internal/orderflow"
	"flowbot/internal/signal"
)

const historyCapacity = 100

// HistoryPoint is one sampled (time, cumulative delta, price) tuple.
type HistoryPoint struct {
	Time  time.Time
	Delta float64
	Price float64
}

// Divergence is the outcome of a detection pass.
type Divergence struct {
	Type        signal.Bias
	Strength    int
	PriceChange float64
	DeltaChange float64
}

// Detected reports whether a divergence was found.
func (d Divergence) Detected() bool { return d.Type != signal.Neutral }

// Describe renders the divergence for reason strings.
func (d Divergence) Describe() string {
	switch d.Type {
	case signal.Bullish:
		return fmt.Sprintf("price down %.1f%%, delta up %.1f%%", d.PriceChange*100, d.DeltaChange*100)
	case signal.Bearish:
		return fmt.Sprintf("price up %.1f%%, delta down %.1f%%", d.PriceChange*100, d.DeltaChange*100)
	default:
		return ""
	}
}

// Detector samples cumulative delta once per CumulativeDelta call and
// compares its trend against price over a fixed period window. The
// history ring is analyzer-local state.
type Detector struct {
	footprint *orderflow.FootprintBuilder
	state     *market.State
	periods   int
	threshold float64
	history   []HistoryPoint
	now       func() time.Time
}

// NewDetector wires the detector to the footprint builder it samples.
func NewDetector(fp *orderflow.FootprintBuilder, state *market.State, periods int, threshold float64) *Detector {
	return &Detector{
		footprint: fp,
		state:     state,
		periods:   periods,
		threshold: threshold,
		now:       time.Now,
	}
}

// CumulativeDelta sums the delta of a freshly built footprint over the
// timeframe and appends one history point. An empty footprint is not
// sampled.
func (d *Detector) CumulativeDelta(timeframe time.Duration) float64 {
	fp := d.footprint.Build(timeframe)
	if fp.Empty() {
		return 0
	}
	total := fp.TotalDelta()
	d.history = append(d.history, HistoryPoint{
		Time:  d.now(),
		Delta: total,
		Price: d.state.CurrentPrice(),
	})
	if len(d.history) > historyCapacity {
		d.history = d.history[len(d.history)-historyCapacity:]
	}
	return total
}

// Detect compares the oldest and newest points of the period window.
// Delta's relative change divides by |old|+1 to dodge a zero base.
func (d *Detector) Detect() Divergence {
	if len(d.history) < d.periods {
		return Divergence{Type: signal.Neutral}
	}
	window := d.history[len(d.history)-d.periods:]
	oldest, newest := window[0], window[len(window)-1]
	if oldest.Price == 0 {
		return Divergence{Type: signal.Neutral}
	}

	priceChange := (newest.Price - oldest.Price) / oldest.Price
	deltaChange := (newest.Delta - oldest.Delta) / (abs(oldest.Delta) + 1)
	gap := abs(priceChange - deltaChange)

	div := Divergence{Type: signal.Neutral, PriceChange: priceChange, DeltaChange: deltaChange}
	switch {
	case priceChange < -0.01 && deltaChange > 0.01 && gap > d.threshold:
		div.Type = signal.Bullish
	case priceChange > 0.01 && deltaChange < -0.01 && gap > d.threshold:
		div.Type = signal.Bearish
	default:
		return div
	}
	strength := int(gap * 200)
	if strength > 100 {
		strength = 100
	}
	div.Strength = strength
	return div
}

// HistoryLen exposes the number of samples collected so far.
func (d *Detector) HistoryLen() int { return len(d.history) }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
