// Package engine runs the analysis loop: analyze on its cadence, monitor
// exposure every cycle, resync the account periodically, and poll the
// master switches. A single cycle's failure never kills the loop.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"flowbot/internal/execution"
	"flowbot/internal/market"
	"flowbot/internal/metrics"
	"flowbot/internal/risk"
	"flowbot/internal/signal"
	"flowbot/internal/strategy"
)

// AccountSyncer refreshes balance and open positions into the state.
type AccountSyncer interface {
	Sync(ctx context.Context, symbol string, state *market.State) error
}

// Controls are the externally settable switches the loop polls each
// iteration. It implements execution.Controls.
type Controls struct {
	trading   atomic.Bool
	emergency atomic.Bool
}

// NewControls seeds the switches from configuration.
func NewControls(tradingEnabled, emergencyStop bool) *Controls {
	c := &Controls{}
	c.trading.Store(tradingEnabled)
	c.emergency.Store(emergencyStop)
	return c
}

// TradingEnabled reports the master switch.
func (c *Controls) TradingEnabled() bool { return c.trading.Load() }

// EmergencyStop reports the emergency flag.
func (c *Controls) EmergencyStop() bool { return c.emergency.Load() }

// SetTrading flips the master switch.
func (c *Controls) SetTrading(enabled bool) { c.trading.Store(enabled) }

// SetEmergencyStop raises or clears the emergency flag.
func (c *Controls) SetEmergencyStop(stop bool) { c.emergency.Store(stop) }

// Config is the loop cadence.
type Config struct {
	Symbol           string
	Warmup           time.Duration
	AnalysisInterval int // cycles between analyses
	AccountSyncEvery int // cycles between account syncs
}

// Engine owns the cooperative single-flow analysis loop.
type Engine struct {
	cfg      Config
	state    *market.State
	strategy *strategy.Strategy
	riskMgr  *risk.Manager
	executor *execution.Executor
	accounts AccountSyncer
	controls *Controls
	log      zerolog.Logger
}

// New wires the loop.
func New(cfg Config, state *market.State, strat *strategy.Strategy,
	riskMgr *risk.Manager, executor *execution.Executor,
	accounts AccountSyncer, controls *Controls, log zerolog.Logger) *Engine {
	if cfg.AnalysisInterval <= 0 {
		cfg.AnalysisInterval = 5
	}
	if cfg.AccountSyncEvery <= 0 {
		cfg.AccountSyncEvery = 60
	}
	return &Engine{
		cfg:      cfg,
		state:    state,
		strategy: strat,
		riskMgr:  riskMgr,
		executor: executor,
		accounts: accounts,
		controls: controls,
		log:      log,
	}
}

// Run waits out the warmup, then ticks once per second until the context
// is canceled or the emergency stop fires. Cycle failures are logged,
// backed off, and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Warmup > 0 {
		e.log.Info().Dur("warmup", e.cfg.Warmup).Msg("waiting for initial data")
		select {
		case <-time.After(e.cfg.Warmup):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.log.Info().Msg("engine live, analyzing markets")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine shutting down")
			return ctx.Err()
		case <-ticker.C:
		}

		if e.controls.EmergencyStop() {
			e.log.Warn().Msg("emergency stop activated, engine halting")
			return nil
		}

		if err := e.runCycle(ctx, cycle); err != nil {
			e.log.Error().Err(err).Msg("cycle failed, backing off")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		cycle++
	}
}

func (e *Engine) runCycle(ctx context.Context, cycle int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &cyclePanic{value: r}
		}
	}()

	if cycle%e.cfg.AnalysisInterval == 0 {
		sig := e.strategy.Analyze(time.Now())
		e.log.Info().
			Str("bias", string(sig.Bias)).
			Int("strength", sig.Strength).
			Str("action", string(sig.Action)).
			Msg("analysis cycle")
		for _, r := range sig.Reasons {
			e.log.Debug().Str("code", string(r.Code)).Str("detail", r.Detail).Msg("signal reason")
		}
		if sig.Actionable() {
			if err := e.executor.Execute(ctx, sig); err != nil {
				// reported, cycle moves on without rollback
				e.log.Error().Err(err).Msg("order submission failed")
			}
		}
	}

	e.riskMgr.MonitorPositions()
	if ok, reason := e.riskMgr.CheckDailyLimits(); !ok {
		e.log.Warn().Str("reason", reason).Msg("daily limits breached")
	}
	metrics.DailyPnL.Set(e.state.DailyPnL())

	if cycle%e.cfg.AccountSyncEvery == 0 {
		if err := e.accounts.Sync(ctx, e.cfg.Symbol, e.state); err != nil {
			// keep the last-known account state
			e.log.Warn().Err(err).Msg("account sync failed")
		}
	}
	return nil
}

type cyclePanic struct{ value any }

func (p *cyclePanic) Error() string { return fmt.Sprintf("panic in analysis cycle: %v", p.value) }

// LogSignal renders a fused signal's reasons at info level; used by the
// paper binary for visibility.
func LogSignal(log zerolog.Logger, sig signal.Signal) {
	evt := log.Info().
		Str("bias", string(sig.Bias)).
		Int("strength", sig.Strength).
		Str("action", string(sig.Action))
	for _, r := range sig.Reasons {
		evt = evt.Str(string(r.Code), r.Detail)
	}
	evt.Msg("signal")
}
