package conditions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flowbot/internal/market"
	"flowbot/internal/signal"
)

func testParams() Params {
	return Params{
		TrendThreshold:           0.02,
		RangingThreshold:         0.005,
		MinVolatilityPct:         0.5,
		MaxVolatilityPct:         10.0,
		MaxSpreadBips:            50,
		MinVolume24h:             1e9,
		RequireTrendConfirmation: true,
	}
}

func seedCandles(state *market.State, interval string, closes []float64) {
	for _, c := range closes {
		state.AppendCandle(market.Candle{Interval: interval, Close: c})
	}
}

// trendingCloses rises steadily so both the 15m regime and the 1m
// volatility windows are populated.
func trendingCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func liquidState() *market.State {
	state := market.NewState(100, 200)
	state.ApplyBookUpdate(
		[]market.BookLevel{{Price: 50000, Quantity: 1}},
		[]market.BookLevel{{Price: 50005, Quantity: 1}},
	)
	state.SetVolume24h(2e9)
	return state
}

func TestAnalyzeUnknownRegimeWithoutCandles(t *testing.T) {
	a := NewAnalyzer(liquidState(), testParams())
	c := a.Analyze()
	require.Equal(t, RegimeUnknown, c.Regime)
	require.True(t, c.Tradeable)
}

func TestAnalyzeSpreadSentinel(t *testing.T) {
	state := market.NewState(100, 200)
	state.SetVolume24h(2e9)
	// one-sided book reports the sentinel spread and shuts the gate
	state.ApplyBookUpdate([]market.BookLevel{{Price: 50000, Quantity: 1}}, nil)

	a := NewAnalyzer(state, testParams())
	c := a.Analyze()
	require.Equal(t, float64(spreadSentinelBips), c.SpreadBips)
	require.False(t, c.Tradeable)
	require.NotEmpty(t, c.Warnings)
}

func TestAnalyzeLowVolume(t *testing.T) {
	state := liquidState()
	state.SetVolume24h(5e8)
	a := NewAnalyzer(state, testParams())
	c := a.Analyze()
	require.False(t, c.Tradeable)
}

func TestDetectRegimeTrendingUp(t *testing.T) {
	state := liquidState()
	// +5% over 50 bars with ema20 above ema50
	seedCandles(state, "15m", trendingCloses(50, 50000, 50))
	a := NewAnalyzer(state, testParams())
	require.Equal(t, RegimeTrendingUp, a.Analyze().Regime)
}

func TestDetectRegimeRanging(t *testing.T) {
	state := liquidState()
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 50000
	}
	seedCandles(state, "15m", flat)
	a := NewAnalyzer(state, testParams())
	require.Equal(t, RegimeRanging, a.Analyze().Regime)
}

func TestShouldTradeRangingVeto(t *testing.T) {
	a := NewAnalyzer(liquidState(), testParams())
	c := Conditions{Regime: RegimeRanging, Volatility: VolatilityNormal}
	ok, reason := a.ShouldTrade(c, signal.Bullish)
	require.False(t, ok)
	require.Contains(t, reason, "ranging")
}

func TestShouldTradeTrendContradiction(t *testing.T) {
	a := NewAnalyzer(liquidState(), testParams())

	ok, _ := a.ShouldTrade(Conditions{Regime: RegimeTrendingDown, Volatility: VolatilityNormal}, signal.Bullish)
	require.False(t, ok)
	ok, _ = a.ShouldTrade(Conditions{Regime: RegimeTrendingUp, Volatility: VolatilityNormal}, signal.Bearish)
	require.False(t, ok)

	// with the trend is fine
	ok, _ = a.ShouldTrade(Conditions{Regime: RegimeTrendingUp, Volatility: VolatilityNormal}, signal.Bullish)
	require.True(t, ok)
}

func TestShouldTradeWithoutTrendConfirmation(t *testing.T) {
	params := testParams()
	params.RequireTrendConfirmation = false
	a := NewAnalyzer(liquidState(), params)

	ok, _ := a.ShouldTrade(Conditions{Regime: RegimeTrendingDown, Volatility: VolatilityNormal}, signal.Bullish)
	require.True(t, ok)
}

func TestShouldTradeExtremeVolatilityVeto(t *testing.T) {
	a := NewAnalyzer(liquidState(), testParams())
	ok, reason := a.ShouldTrade(Conditions{Regime: RegimeTrendingUp, Volatility: VolatilityExtreme}, signal.Bullish)
	require.False(t, ok)
	require.Contains(t, reason, "volatility")
}
