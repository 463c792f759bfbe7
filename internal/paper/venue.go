// Package paper simulates the venue so the whole pipeline can run
// without credentials: market orders fill instantly at the last traded
// price and the account is marked to market on sync.
package paper

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"flowbot/internal/execution"
	"flowbot/internal/market"
	"flowbot/internal/metrics"
)

type position struct {
	qty   float64 // signed
	entry float64
}

// Venue implements execution.Venue and engine.AccountSyncer against a
// virtual futures account.
type Venue struct {
	mu          sync.Mutex
	state       *market.State
	log         zerolog.Logger
	cash        float64
	realized    float64
	positions   map[string]position
	nextOrderID int64
}

// NewVenue seeds the virtual account.
func NewVenue(startingCash float64, state *market.State, log zerolog.Logger) *Venue {
	return &Venue{
		state:     state,
		log:       log,
		cash:      startingCash,
		positions: make(map[string]position),
	}
}

// SetLeverage is accepted and ignored; the simulation does not model
// margin.
func (v *Venue) SetLeverage(context.Context, string, int) error { return nil }

// PlaceOrder fills market orders at the current price. Protective
// stop/take-profit orders are acknowledged without being tracked; the
// risk manager's monitoring covers the paper flow.
func (v *Venue) PlaceOrder(_ context.Context, req execution.OrderRequest) (execution.OrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextOrderID++
	if req.Type != execution.Market {
		v.log.Debug().Str("type", string(req.Type)).Float64("trigger", req.StopPrice).Msg("protective order acknowledged")
		return execution.OrderResult{OrderID: v.nextOrderID}, nil
	}

	price := v.state.CurrentPrice()
	if price <= 0 {
		return execution.OrderResult{}, errors.New("no market price yet")
	}
	if req.Quantity <= 0 {
		return execution.OrderResult{}, errors.New("quantity must be positive")
	}

	signed := req.Quantity
	if req.Side == execution.Sell {
		signed = -req.Quantity
	}
	v.apply(req.Symbol, signed, price)

	v.log.Info().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("qty", req.Quantity).
		Float64("price", price).
		Msg("paper fill")
	return execution.OrderResult{OrderID: v.nextOrderID, ExecutedQty: req.Quantity, AvgPrice: price}, nil
}

func (v *Venue) apply(symbol string, signed, price float64) {
	pos := v.positions[symbol]

	if pos.qty == 0 || sameSign(pos.qty, signed) {
		total := pos.qty + signed
		pos.entry = (pos.entry*math.Abs(pos.qty) + price*math.Abs(signed)) / math.Abs(total)
		pos.qty = total
		v.positions[symbol] = pos
		return
	}

	// reducing or flipping
	closed := math.Min(math.Abs(signed), math.Abs(pos.qty))
	direction := 1.0
	if pos.qty < 0 {
		direction = -1
	}
	realized := (price - pos.entry) * closed * direction
	v.cash += realized
	v.realized += realized
	v.state.AddDailyPnL(realized)

	remaining := pos.qty + signed
	if remaining == 0 {
		delete(v.positions, symbol)
		return
	}
	if sameSign(remaining, pos.qty) {
		pos.qty = remaining
	} else {
		pos = position{qty: remaining, entry: price}
	}
	v.positions[symbol] = pos
}

// Sync marks open positions at the current price and writes the virtual
// account into the market state.
func (v *Venue) Sync(_ context.Context, _ string, state *market.State) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	mark := state.CurrentPrice()
	var positions []market.Position
	for sym, pos := range v.positions {
		pnl := 0.0
		if mark > 0 {
			pnl = (mark - pos.entry) * pos.qty
		}
		positions = append(positions, market.Position{
			Symbol:        sym,
			Quantity:      pos.qty,
			EntryPrice:    pos.entry,
			UnrealizedPnL: pnl,
		})
	}
	state.SetAccount(v.cash, positions)
	metrics.AccountBalance.Set(v.cash)
	return nil
}

// RealizedPnL reports closed-trade profit and loss.
func (v *Venue) RealizedPnL() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.realized
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
