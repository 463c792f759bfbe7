package sizing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flowbot/internal/config"
	"flowbot/internal/market"
)

func testSizingConfig() config.Sizing {
	return config.Sizing{
		Method:            "fixed_percent",
		RiskPerTradePct:   1.0,
		FixedPositionUSDT: 50,
		KellyWinRate:      0.55,
		KellyRiskReward:   2.0,
		KellyFraction:     0.25,
		MaxAccountRiskPct: 5.0,
		MaxPositions:      3,
	}
}

func fundedState(balance float64) *market.State {
	state := market.NewState(0, 0)
	state.SetAccount(balance, nil)
	return state
}

func TestParseMethod(t *testing.T) {
	for _, valid := range []string{"fixed_percent", "fixed_dollar", "kelly"} {
		m, err := ParseMethod(valid)
		require.NoError(t, err)
		require.Equal(t, Method(valid), m)
	}
	_, err := ParseMethod("martingale")
	require.Error(t, err)
}

func TestSizeFixedPercent(t *testing.T) {
	s := NewSizer(fundedState(1000), testSizingConfig(), 3.0)

	// $1000 at 1% risks $10; $1000 price distance => 0.01 units
	r := s.Size(50000, 49000, 80)
	require.Equal(t, FixedPercent, r.Method)
	require.InDelta(t, 0.01, r.Quantity, 1e-9)
	require.InDelta(t, 10.0, r.Risk, 1e-9)
	require.InDelta(t, 500.0, r.Notional, 1e-9)
	require.Equal(t, 1.0, r.RiskPercent)
}

func TestSizeFixedDollar(t *testing.T) {
	cfg := testSizingConfig()
	cfg.Method = "fixed_dollar"
	s := NewSizer(fundedState(1000), cfg, 3.0)

	r := s.Size(50000, 49000, 80)
	require.Equal(t, FixedDollar, r.Method)
	require.InDelta(t, 0.001, r.Quantity, 1e-9)
	require.InDelta(t, 50.0, r.Notional, 1e-9)
	require.InDelta(t, 1.0, r.Risk, 1e-9)
}

func TestSizeKelly(t *testing.T) {
	cfg := testSizingConfig()
	cfg.Method = "kelly"
	s := NewSizer(fundedState(1000), cfg, 3.0)

	// f = (0.55*2 - 0.45)/2 * 0.25 * 0.8 = 0.065
	r := s.Size(50000, 49000, 80)
	require.Equal(t, Kelly, r.Method)
	require.InDelta(t, 6.5, r.KellyPercent, 1e-9)
	require.InDelta(t, 65.0, r.Risk, 1e-9)
	require.InDelta(t, 0.065, r.Quantity, 1e-9)
}

func TestSizeKellyNegativeEdgeClamped(t *testing.T) {
	cfg := testSizingConfig()
	cfg.Method = "kelly"
	cfg.KellyWinRate = 0.2
	s := NewSizer(fundedState(1000), cfg, 3.0)

	r := s.Size(50000, 49000, 80)
	require.Zero(t, r.Quantity)
	require.Zero(t, r.KellyPercent)
}

func TestSizeNoBalance(t *testing.T) {
	s := NewSizer(fundedState(0), testSizingConfig(), 3.0)
	r := s.Size(50000, 49000, 80)
	require.Equal(t, NoBalance, r.Method)
	require.Zero(t, r.Quantity)
}

func TestSizeZeroStopDistance(t *testing.T) {
	s := NewSizer(fundedState(1000), testSizingConfig(), 3.0)
	r := s.Size(50000, 50000, 80)
	require.Zero(t, r.Quantity)
}

func TestUnknownMethodFallsBackToFixedPercent(t *testing.T) {
	cfg := testSizingConfig()
	cfg.Method = "nonsense"
	s := NewSizer(fundedState(1000), cfg, 3.0)
	require.Equal(t, FixedPercent, s.Size(50000, 49000, 80).Method)
}

func TestCheckRiskLimitsMaxAccountRisk(t *testing.T) {
	s := NewSizer(fundedState(1000), testSizingConfig(), 3.0)
	ok, reason := s.CheckRiskLimits(Result{Risk: 100})
	require.False(t, ok)
	require.Contains(t, reason, "exceeds max")
}

func TestCheckRiskLimitsDailyLoss(t *testing.T) {
	state := fundedState(1000)
	state.AddDailyPnL(-35)
	s := NewSizer(state, testSizingConfig(), 3.0)
	ok, reason := s.CheckRiskLimits(Result{Risk: 10})
	require.False(t, ok)
	require.Contains(t, reason, "daily loss")
}

func TestCheckRiskLimitsMaxPositions(t *testing.T) {
	state := fundedState(1000)
	state.SetAccount(1000, []market.Position{
		{Symbol: "BTCUSDT", Quantity: 0.1},
		{Symbol: "ETHUSDT", Quantity: 1},
		{Symbol: "SOLUSDT", Quantity: 10},
	})
	s := NewSizer(state, testSizingConfig(), 3.0)
	ok, reason := s.CheckRiskLimits(Result{Risk: 10})
	require.False(t, ok)
	require.Contains(t, reason, "maximum positions")
}

func TestCheckRiskLimitsPass(t *testing.T) {
	s := NewSizer(fundedState(1000), testSizingConfig(), 3.0)
	ok, _ := s.CheckRiskLimits(Result{Risk: 10})
	require.True(t, ok)
}
