package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"flowbot/internal/config"
	"flowbot/internal/market"
	"flowbot/internal/risk"
)

func TestControlsSwitches(t *testing.T) {
	c := NewControls(true, false)
	require.True(t, c.TradingEnabled())
	require.False(t, c.EmergencyStop())

	c.SetTrading(false)
	c.SetEmergencyStop(true)
	require.False(t, c.TradingEnabled())
	require.True(t, c.EmergencyStop())
}

func TestCyclePanicError(t *testing.T) {
	err := &cyclePanic{value: "boom"}
	require.Contains(t, err.Error(), "boom")
}

func TestConfigDefaults(t *testing.T) {
	e := New(Config{Symbol: "BTCUSDT"}, nil, nil, nil, nil, nil, NewControls(true, false), zerolog.Nop())
	require.Equal(t, 5, e.cfg.AnalysisInterval)
	require.Equal(t, 60, e.cfg.AccountSyncEvery)
}

func TestRunCycleRecoversPanic(t *testing.T) {
	// a nil strategy makes the analysis step panic; the cycle must
	// report an error instead of killing the caller
	e := New(Config{Symbol: "BTCUSDT", AnalysisInterval: 1},
		nil, nil, nil, nil, nil, NewControls(true, false), zerolog.Nop())

	var err error
	require.NotPanics(t, func() { err = e.runCycle(context.Background(), 0) })
	require.Error(t, err)
	require.Contains(t, err.Error(), "panic in analysis cycle")
}

func TestRunCycleOffAnalysisCadence(t *testing.T) {
	state := market.NewState(10, 0)
	riskMgr := risk.NewManager(state, config.Risk{MaxDailyLossPct: 3}, zerolog.Nop())

	// cycle 1 of 5 skips analysis entirely, so the nil strategy is
	// never touched and monitoring alone runs clean
	e := New(Config{Symbol: "BTCUSDT"},
		state, nil, riskMgr, nil, nil, NewControls(true, false), zerolog.Nop())
	require.NoError(t, e.runCycle(context.Background(), 1))
}

func TestRunReturnsOnCancel(t *testing.T) {
	state := market.NewState(10, 0)
	riskMgr := risk.NewManager(state, config.Risk{MaxDailyLossPct: 3}, zerolog.Nop())
	e := New(Config{Symbol: "BTCUSDT"},
		state, nil, riskMgr, nil, nil, NewControls(true, false), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, e.Run(ctx), context.DeadlineExceeded)
}

func TestRunHaltsOnEmergencyStop(t *testing.T) {
	state := market.NewState(10, 0)
	riskMgr := risk.NewManager(state, config.Risk{MaxDailyLossPct: 3}, zerolog.Nop())
	controls := NewControls(true, true)
	e := New(Config{Symbol: "BTCUSDT"},
		state, nil, riskMgr, nil, nil, controls, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not halt on emergency stop")
	}
}
