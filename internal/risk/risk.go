// Package risk monitors open exposure: trailing stops that only ever
// tighten, and the daily loss cutoff with its midnight reset.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"flowbot/internal/config"
	"flowbot/internal/market"
)

// Manager re-evaluates open positions every cycle. It owns the trailing
// stop map; positions are read from the shared market state.
type Manager struct {
	state      *market.State
	cfg        config.Risk
	log        zerolog.Logger
	stops      map[string]float64
	dailyReset time.Time
	now        func() time.Time
}

// NewManager starts the daily window at the most recent midnight.
func NewManager(state *market.State, cfg config.Risk, log zerolog.Logger) *Manager {
	m := &Manager{
		state: state,
		cfg:   cfg,
		log:   log,
		stops: make(map[string]float64),
		now:   time.Now,
	}
	m.dailyReset = midnight(m.now())
	return m
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func positionID(p market.Position) string {
	side := "LONG"
	if p.Quantity < 0 {
		side = "SHORT"
	}
	return p.Symbol + "_" + side
}

// MonitorPositions recomputes PnL for every open position and advances
// trailing stops. A stop only replaces the tracked one when it tightens:
// strictly higher for longs, strictly lower for shorts, and never while
// the position is not in profit. Stops tracked for positions that have
// closed are dropped so a later same-side position starts fresh.
func (m *Manager) MonitorPositions() {
	currentPrice := m.state.CurrentPrice()
	if currentPrice <= 0 {
		return
	}
	open := make(map[string]bool)
	for _, pos := range m.state.Positions() {
		if pos.Quantity == 0 {
			continue
		}
		open[positionID(pos)] = true
		notional := pos.EntryPrice * math.Abs(pos.Quantity)
		var pnlPct float64
		if notional > 0 {
			pnlPct = pos.UnrealizedPnL / notional * 100
		}

		if m.cfg.TrailingStopEnabled {
			m.updateTrailingStop(pos, currentPrice)
		}

		if math.Abs(pnlPct) > 1 {
			m.log.Info().
				Str("position", positionID(pos)).
				Float64("entry", pos.EntryPrice).
				Float64("price", currentPrice).
				Float64("pnl_pct", pnlPct).
				Msg("position update")
		}
	}

	// stops for positions that are no longer open must not carry over
	// to the next position on the same side
	for id := range m.stops {
		if !open[id] {
			m.ClearStop(id)
			m.log.Debug().Str("position", id).Msg("trailing stop cleared, position closed")
		}
	}
}

func (m *Manager) updateTrailingStop(pos market.Position, currentPrice float64) {
	if pos.UnrealizedPnL <= 0 {
		return
	}
	id := positionID(pos)
	isLong := pos.Quantity > 0

	if isLong {
		newStop := currentPrice * (1 - m.cfg.TrailingStopPct/100)
		if cur, ok := m.stops[id]; !ok || newStop > cur {
			m.stops[id] = newStop
			m.log.Info().Str("position", id).Float64("stop", newStop).Msg("trailing stop advanced")
		}
		return
	}
	newStop := currentPrice * (1 + m.cfg.TrailingStopPct/100)
	if cur, ok := m.stops[id]; !ok || newStop < cur {
		m.stops[id] = newStop
		m.log.Info().Str("position", id).Float64("stop", newStop).Msg("trailing stop advanced")
	}
}

// TrailingStop returns the tracked stop for a position id, if any.
func (m *Manager) TrailingStop(id string) (float64, bool) {
	stop, ok := m.stops[id]
	return stop, ok
}

// ClearStop drops tracking for a closed position.
func (m *Manager) ClearStop(id string) {
	delete(m.stops, id)
}

// CheckDailyLimits resets the daily counters when the wall clock crosses
// into a new day and reports whether the daily loss cutoff is hit.
func (m *Manager) CheckDailyLimits() (bool, string) {
	now := m.now()
	if now.After(m.dailyReset.Add(24 * time.Hour)) {
		m.state.ResetDaily()
		m.dailyReset = midnight(now)
		m.log.Info().Msg("daily limits reset")
	}

	dailyPnL := m.state.DailyPnL()
	balance := m.state.Balance()
	if dailyPnL < 0 && balance > 0 {
		lossPct := math.Abs(dailyPnL) / balance * 100
		if lossPct >= m.cfg.MaxDailyLossPct {
			return false, fmt.Sprintf("daily loss limit hit: %.2f%%", lossPct)
		}
	}
	return true, "daily limits OK"
}
