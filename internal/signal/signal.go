// Package signal standardizes the decision payload shared between the
// strategy, risk, and execution layers.
package signal

import "time"

// Bias expresses the directional lean of a signal or sub-signal.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

// Action is the final verdict of an analysis cycle.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Wait Action = "wait"
)

// ReasonCode identifies why a signal gained strength or was rejected.
// Formatting for humans happens at the logging/alerting edge, not here.
type ReasonCode string

const (
	ReasonNotTradeable  ReasonCode = "market_not_tradeable"
	ReasonEMACrossover  ReasonCode = "ema_crossover"
	ReasonEMAAlignment  ReasonCode = "ema_alignment"
	ReasonAtSupport     ReasonCode = "price_at_support"
	ReasonAtResistance  ReasonCode = "price_at_resistance"
	ReasonDeltaDiverge  ReasonCode = "delta_divergence"
	ReasonWallsFound    ReasonCode = "liquidity_walls"
	ReasonAbsorption    ReasonCode = "absorption"
	ReasonInstitutional ReasonCode = "institutional_flow"
	ReasonImbalance     ReasonCode = "volume_imbalance"
	ReasonConditionVeto ReasonCode = "condition_veto"
)

// Reason pairs a code with a short free-form detail string.
type Reason struct {
	Code   ReasonCode
	Detail string
}

// Component records one sub-signal's contribution to the fused decision.
type Component struct {
	Name     string
	Bias     Bias
	Strength int
}

// Signal is the fused output of one analysis cycle. It is immutable once
// returned by the strategy and consumed by the executor.
type Signal struct {
	Time       time.Time
	Bias       Bias
	Strength   int
	Action     Action
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Reasons    []Reason
	Components []Component
}

// Actionable reports whether the signal asks for an order.
func (s Signal) Actionable() bool {
	return s.Action == Buy || s.Action == Sell
}
