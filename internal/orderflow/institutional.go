package orderflow

import (
	"time"

	"flowbot/internal/market"
	"flowbot/internal/signal"
)

// LargeTrade is a single print at or above the institutional threshold.
type LargeTrade struct {
	Time     time.Time
	Price    float64
	Quantity float64
	Buy      bool // aggressor bought
}

// InstitutionalDetector flags outsized prints on the tape.
type InstitutionalDetector struct {
	state *market.State
	now   func() time.Time
}

// NewInstitutionalDetector reads the shared trade ring.
func NewInstitutionalDetector(state *market.State) *InstitutionalDetector {
	return &InstitutionalDetector{state: state, now: time.Now}
}

// LargeTrades returns prints inside the window with quantity at or above
// the threshold. Side comes from the aggressor flag.
func (d *InstitutionalDetector) LargeTrades(threshold float64, window time.Duration) []LargeTrade {
	cutoff := d.now().Add(-window)
	var out []LargeTrade
	for _, t := range d.state.TradesSince(cutoff) {
		if t.Quantity < threshold {
			continue
		}
		out = append(out, LargeTrade{
			Time:     t.Time,
			Price:    t.Price,
			Quantity: t.Quantity,
			Buy:      !t.IsBuyerMaker,
		})
	}
	return out
}

// InstitutionalBias compares large buy vs sell volume under a dominance
// multiple. Neither side dominating yields neutral.
func InstitutionalBias(trades []LargeTrade, dominance float64) (signal.Bias, float64, float64) {
	var buyVol, sellVol float64
	for _, t := range trades {
		if t.Buy {
			buyVol += t.Quantity
		} else {
			sellVol += t.Quantity
		}
	}
	switch {
	case buyVol > sellVol*dominance:
		return signal.Bullish, buyVol, sellVol
	case sellVol > buyVol*dominance:
		return signal.Bearish, buyVol, sellVol
	default:
		return signal.Neutral, buyVol, sellVol
	}
}
