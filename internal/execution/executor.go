// Package execution is the single gated path from a fused signal to a
// venue order. Every gate is a hard stop with a reported reason; order
// submission is fire-and-forget with no rollback beyond what the venue
// guarantees.
package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flowbot/internal/market"
	"flowbot/internal/metrics"
	"flowbot/internal/risk"
	"flowbot/internal/signal"
	"flowbot/internal/sizing"
)

// Side enumerates order directions.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType enumerates the order types the engine places.
type OrderType string

const (
	Market           OrderType = "MARKET"
	StopMarket       OrderType = "STOP_MARKET"
	TakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// OrderRequest is a placement request handed to the venue.
type OrderRequest struct {
	ClientID   string
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   float64
	StopPrice  float64 // stop/take-profit trigger, zero for market
	ReduceOnly bool
}

// OrderResult reports the venue's acknowledgement.
type OrderResult struct {
	OrderID     int64
	ExecutedQty float64
	AvgPrice    float64
}

// Venue is the external order-placement collaborator.
type Venue interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// Controls are the master switches polled before every execution.
type Controls interface {
	TradingEnabled() bool
	EmergencyStop() bool
}

// Alerter delivers human-facing notifications; a no-op implementation is
// fine.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Executor runs the gate sequence and places the bracket.
type Executor struct {
	symbol   string
	leverage int
	venue    Venue
	sizer    *sizing.Sizer
	riskMgr  *risk.Manager
	state    *market.State
	controls Controls
	alerter  Alerter
	log      zerolog.Logger
}

// NewExecutor wires the gates together.
func NewExecutor(symbol string, leverage int, venue Venue, sizer *sizing.Sizer,
	riskMgr *risk.Manager, state *market.State, controls Controls,
	alerter Alerter, log zerolog.Logger) *Executor {
	return &Executor{
		symbol:   symbol,
		leverage: leverage,
		venue:    venue,
		sizer:    sizer,
		riskMgr:  riskMgr,
		state:    state,
		controls: controls,
		alerter:  alerter,
		log:      log,
	}
}

// Execute runs the gate sequence in strict order: master switch,
// emergency stop, daily limits, then size and risk-limit validation.
// Only when every gate passes does the bracket go to the venue. A
// submission failure is reported and the cycle moves on.
func (e *Executor) Execute(ctx context.Context, sig signal.Signal) error {
	if !e.controls.TradingEnabled() {
		e.reject("trading_disabled", "trading disabled by master switch")
		return nil
	}
	if e.controls.EmergencyStop() {
		e.reject("emergency_stop", "emergency stop active, no new trades")
		return nil
	}
	if ok, reason := e.riskMgr.CheckDailyLimits(); !ok {
		e.reject("daily_limits", reason)
		return nil
	}

	size := e.sizer.Size(sig.EntryPrice, sig.StopLoss, sig.Strength)
	if ok, reason := e.sizer.CheckRiskLimits(size); !ok || size.Quantity <= 0 {
		if size.Quantity <= 0 {
			reason = "sized to zero quantity (" + string(size.Method) + ")"
		}
		e.reject("risk_limits", reason)
		return nil
	}

	return e.placeBracket(ctx, sig, size)
}

func (e *Executor) reject(gate, reason string) {
	metrics.RejectionsTotal.WithLabelValues(gate).Inc()
	e.log.Warn().Str("gate", gate).Str("reason", reason).Msg("execution blocked")
}

func (e *Executor) placeBracket(ctx context.Context, sig signal.Signal, size sizing.Result) error {
	side := Buy
	exitSide := Sell
	if sig.Action == signal.Sell {
		side, exitSide = Sell, Buy
	}

	e.log.Info().
		Str("symbol", e.symbol).
		Str("side", string(side)).
		Float64("entry", sig.EntryPrice).
		Float64("qty", size.Quantity).
		Float64("notional", size.Notional).
		Float64("risk", size.Risk).
		Float64("stop", sig.StopLoss).
		Float64("target", sig.TakeProfit).
		Int("strength", sig.Strength).
		Msg("executing trade")

	if err := e.venue.SetLeverage(ctx, e.symbol, e.leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	entry, err := e.venue.PlaceOrder(ctx, OrderRequest{
		ClientID: uuid.NewString(),
		Symbol:   e.symbol,
		Side:     side,
		Type:     Market,
		Quantity: size.Quantity,
	})
	if err != nil {
		return fmt.Errorf("entry order: %w", err)
	}
	metrics.OrdersTotal.WithLabelValues(e.symbol, string(side)).Inc()
	e.log.Info().Int64("order_id", entry.OrderID).Float64("filled", entry.ExecutedQty).Msg("entry filled")

	if _, err := e.venue.PlaceOrder(ctx, OrderRequest{
		ClientID:   uuid.NewString(),
		Symbol:     e.symbol,
		Side:       exitSide,
		Type:       StopMarket,
		Quantity:   size.Quantity,
		StopPrice:  sig.StopLoss,
		ReduceOnly: true,
	}); err != nil {
		return fmt.Errorf("stop loss order: %w", err)
	}

	if _, err := e.venue.PlaceOrder(ctx, OrderRequest{
		ClientID:   uuid.NewString(),
		Symbol:     e.symbol,
		Side:       exitSide,
		Type:       TakeProfitMarket,
		Quantity:   size.Quantity,
		StopPrice:  sig.TakeProfit,
		ReduceOnly: true,
	}); err != nil {
		return fmt.Errorf("take profit order: %w", err)
	}

	e.state.IncDailyTrades()
	if e.alerter != nil {
		e.alerter.Alert(ctx, fmt.Sprintf("%s %s qty=%.6f entry=%.2f stop=%.2f target=%.2f",
			side, e.symbol, size.Quantity, sig.EntryPrice, sig.StopLoss, sig.TakeProfit))
	}
	return nil
}
