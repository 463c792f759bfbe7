// Package sizing converts a decision plus account state into a bounded
// order quantity and validates it against the account risk limits.
package sizing

import (
	"fmt"
	"math"

	"flowbot/internal/config"
	"flowbot/internal/market"
)

// Method is the sizing policy, fixed at configuration load.
type Method string

const (
	FixedPercent Method = "fixed_percent"
	FixedDollar  Method = "fixed_dollar"
	Kelly        Method = "kelly"
	NoBalance    Method = "no_balance"
)

// ParseMethod converts the config string into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case FixedPercent, FixedDollar, Kelly:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown sizing method %q", s)
}

// Result is a sized position with its diagnostics.
type Result struct {
	Quantity     float64
	Notional     float64
	Risk         float64
	Method       Method
	RiskPercent  float64 // fixed_percent only
	KellyPercent float64 // kelly only
}

// Sizer dispatches on the configured method.
type Sizer struct {
	state  *market.State
	cfg    config.Sizing
	method Method
	// shared with the risk manager's daily limit
	maxDailyLossPct float64
}

// NewSizer parses the configured method once. An invalid method falls
// back to fixed percent, matching the permissive original behavior.
func NewSizer(state *market.State, cfg config.Sizing, maxDailyLossPct float64) *Sizer {
	method, err := ParseMethod(cfg.Method)
	if err != nil {
		method = FixedPercent
	}
	return &Sizer{state: state, cfg: cfg, method: method, maxDailyLossPct: maxDailyLossPct}
}

// Size computes the order quantity for the entry/stop pair. A zero or
// negative balance yields a no_balance zero-quantity result rather than
// an error so the executor can reject gracefully downstream.
func (s *Sizer) Size(entry, stop float64, signalStrength int) Result {
	balance := s.state.Balance()
	if balance <= 0 {
		return Result{Method: NoBalance}
	}
	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit == 0 || entry <= 0 {
		return Result{Method: s.method}
	}

	switch s.method {
	case FixedDollar:
		return s.fixedDollar(entry, riskPerUnit)
	case Kelly:
		return s.kelly(balance, entry, riskPerUnit, signalStrength)
	default:
		return s.fixedPercent(balance, entry, riskPerUnit)
	}
}

func (s *Sizer) fixedPercent(balance, entry, riskPerUnit float64) Result {
	riskAmount := balance * s.cfg.RiskPerTradePct / 100
	qty := riskAmount / riskPerUnit
	return Result{
		Quantity:    qty,
		Notional:    qty * entry,
		Risk:        riskAmount,
		Method:      FixedPercent,
		RiskPercent: s.cfg.RiskPerTradePct,
	}
}

func (s *Sizer) fixedDollar(entry, riskPerUnit float64) Result {
	qty := s.cfg.FixedPositionUSDT / entry
	return Result{
		Quantity: qty,
		Notional: s.cfg.FixedPositionUSDT,
		Risk:     qty * riskPerUnit,
		Method:   FixedDollar,
	}
}

// kelly applies the fractional Kelly criterion scaled by signal
// confidence: f = max(0, (p*b - (1-p)) / b) * fraction * strength/100.
func (s *Sizer) kelly(balance, entry, riskPerUnit float64, signalStrength int) Result {
	p := s.cfg.KellyWinRate
	b := s.cfg.KellyRiskReward
	f := (p*b - (1 - p)) / b
	if f < 0 {
		f = 0
	}
	f *= s.cfg.KellyFraction
	f *= float64(signalStrength) / 100

	riskAmount := balance * f
	qty := riskAmount / riskPerUnit
	return Result{
		Quantity:     qty,
		Notional:     qty * entry,
		Risk:         riskAmount,
		Method:       Kelly,
		KellyPercent: f * 100,
	}
}

// CheckRiskLimits validates aggregate exposure. All three checks run in
// order and the first failure wins; the reason is a control-flow outcome,
// not an error.
func (s *Sizer) CheckRiskLimits(r Result) (bool, string) {
	balance := s.state.Balance()

	maxRisk := balance * s.cfg.MaxAccountRiskPct / 100
	if r.Risk > maxRisk {
		return false, fmt.Sprintf("position risk $%.2f exceeds max $%.2f", r.Risk, maxRisk)
	}

	if dailyPnL := s.state.DailyPnL(); dailyPnL < 0 && balance > 0 {
		lossPct := math.Abs(dailyPnL) / balance * 100
		if lossPct >= s.maxDailyLossPct {
			return false, fmt.Sprintf("daily loss limit reached: %.1f%%", lossPct)
		}
	}

	if len(s.state.Positions()) >= s.cfg.MaxPositions {
		return false, fmt.Sprintf("maximum positions reached: %d", s.cfg.MaxPositions)
	}

	return true, "position size valid"
}
