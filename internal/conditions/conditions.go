// Package conditions classifies the market regime, volatility bucket,
// spread, and liquidity, and gates whether trading makes sense at all.
package conditions

import (
	"fmt"

	"flowbot/internal/indicator"
	"flowbot/internal/market"
	"flowbot/internal/signal"
)

// Regime is the classified market state.
type Regime string

const (
	RegimeUnknown       Regime = "unknown"
	RegimeTrendingUp    Regime = "trending_up"
	RegimeTrendingDown  Regime = "trending_down"
	RegimeRanging       Regime = "ranging"
	RegimeTransitioning Regime = "transitioning"
)

// Volatility buckets the recent 1-minute volatility.
type Volatility string

const (
	VolatilityLow     Volatility = "low"
	VolatilityNormal  Volatility = "normal"
	VolatilityHigh    Volatility = "high"
	VolatilityExtreme Volatility = "extreme"
)

// spreadSentinelBips is reported when the book is one-sided or empty,
// which forces the tradeability gate shut.
const spreadSentinelBips = 1000

// Conditions is a fresh classification; nothing here is cached between
// calls.
type Conditions struct {
	Regime     Regime
	Volatility Volatility
	SpreadBips float64
	Volume24h  float64
	Tradeable  bool
	Warnings   []string
}

// Params carries the thresholds from configuration.
type Params struct {
	TrendThreshold           float64
	RangingThreshold         float64
	MinVolatilityPct         float64
	MaxVolatilityPct         float64
	MaxSpreadBips            float64
	MinVolume24h             float64
	RequireTrendConfirmation bool
}

// Analyzer classifies conditions from the shared market state. Analyze is
// a pure function of current data; callers that need the last known
// regime keep the returned value themselves.
type Analyzer struct {
	state  *market.State
	params Params
}

// NewAnalyzer wires the analyzer to the market state.
func NewAnalyzer(state *market.State, params Params) *Analyzer {
	return &Analyzer{state: state, params: params}
}

// Analyze runs the full classification and tradeability gate.
func (a *Analyzer) Analyze() Conditions {
	c := Conditions{
		Regime:     a.detectRegime(),
		Volatility: a.measureVolatility(),
		SpreadBips: a.spread(),
		Volume24h:  a.state.Volume24h(),
		Tradeable:  true,
	}

	if c.SpreadBips > a.params.MaxSpreadBips {
		c.Tradeable = false
		c.Warnings = append(c.Warnings, fmt.Sprintf("spread too wide: %.1f bips", c.SpreadBips))
	}
	if c.Volume24h < a.params.MinVolume24h {
		c.Tradeable = false
		c.Warnings = append(c.Warnings, fmt.Sprintf("low 24h volume: $%.2fB", c.Volume24h/1e9))
	}
	switch c.Volatility {
	case VolatilityExtreme:
		c.Warnings = append(c.Warnings, "extreme volatility detected")
	case VolatilityLow:
		c.Warnings = append(c.Warnings, "low volatility, reduce position sizes")
	}
	return c
}

// detectRegime uses 15-minute closes over 50 periods plus the EMA20/EMA50
// relation. Recomputed every call, no hysteresis.
func (a *Analyzer) detectRegime() Regime {
	closes := a.state.Closes("15m", 50)
	if closes == nil {
		return RegimeUnknown
	}
	ema20 := indicator.EMA(closes[len(closes)-20:], 20)
	ema50 := indicator.EMA(closes, 50)
	priceChange := (closes[len(closes)-1] - closes[0]) / closes[0]

	switch {
	case priceChange > a.params.TrendThreshold && ema20 > ema50:
		return RegimeTrendingUp
	case priceChange < -a.params.TrendThreshold && ema20 < ema50:
		return RegimeTrendingDown
	case abs(priceChange) < a.params.RangingThreshold:
		return RegimeRanging
	default:
		return RegimeTransitioning
	}
}

// measureVolatility buckets the 1-minute 60-period volatility.
func (a *Analyzer) measureVolatility() Volatility {
	closes := a.state.Closes("1m", 60)
	if closes == nil {
		return VolatilityNormal
	}
	vol := indicator.Volatility(closes, 60)
	switch {
	case vol < a.params.MinVolatilityPct:
		return VolatilityLow
	case vol > a.params.MaxVolatilityPct:
		return VolatilityExtreme
	case vol > a.params.MaxVolatilityPct*0.7:
		return VolatilityHigh
	default:
		return VolatilityNormal
	}
}

// spread reports best bid/ask distance in basis points.
func (a *Analyzer) spread() float64 {
	book := a.state.BookSnapshot()
	bid, okB := book.BestBid()
	ask, okA := book.BestAsk()
	if !okB || !okA {
		return spreadSentinelBips
	}
	return (ask.Price - bid.Price) / bid.Price * 10000
}

// ShouldTrade decides whether a directional signal should act under the
// supplied conditions. Rejections come back as human-readable reasons,
// not errors.
func (a *Analyzer) ShouldTrade(c Conditions, bias signal.Bias) (bool, string) {
	if c.Regime == RegimeRanging {
		return false, "market is ranging, avoiding directional trades"
	}
	if a.params.RequireTrendConfirmation {
		if bias == signal.Bullish && c.Regime == RegimeTrendingDown {
			return false, "bullish signal against downtrend"
		}
		if bias == signal.Bearish && c.Regime == RegimeTrendingUp {
			return false, "bearish signal against uptrend"
		}
	}
	if c.Volatility == VolatilityExtreme {
		return false, "volatility too high, risk of whipsaw"
	}
	return true, "market conditions favorable"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
