package orderflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flowbot/internal/market"
	"flowbot/internal/signal"
)

func TestLargeTradesFiltering(t *testing.T) {
	now := time.Now()
	state := market.NewState(100, 0)
	d := NewInstitutionalDetector(state)
	d.now = func() time.Time { return now }

	state.AppendTrade(market.Trade{Time: now.Add(-10 * time.Second), Price: 50000, Quantity: 15, IsBuyerMaker: false})
	state.AppendTrade(market.Trade{Time: now.Add(-5 * time.Second), Price: 50001, Quantity: 0.5})
	state.AppendTrade(market.Trade{Time: now.Add(-3 * time.Minute), Price: 49999, Quantity: 50})
	state.AppendTrade(market.Trade{Time: now.Add(-2 * time.Second), Price: 50002, Quantity: 12, IsBuyerMaker: true})

	large := d.LargeTrades(10, 2*time.Minute)
	require.Len(t, large, 2)
	require.True(t, large[0].Buy)
	require.False(t, large[1].Buy)
}

func TestInstitutionalBias(t *testing.T) {
	buy := func(q float64) LargeTrade { return LargeTrade{Quantity: q, Buy: true} }
	sell := func(q float64) LargeTrade { return LargeTrade{Quantity: q} }

	bias, buyVol, sellVol := InstitutionalBias([]LargeTrade{buy(50), sell(20)}, 2)
	require.Equal(t, signal.Bullish, bias)
	require.Equal(t, 50.0, buyVol)
	require.Equal(t, 20.0, sellVol)

	bias, _, _ = InstitutionalBias([]LargeTrade{buy(20), sell(50)}, 2)
	require.Equal(t, signal.Bearish, bias)

	// 50 vs 30 does not clear the 2x dominance bar
	bias, _, _ = InstitutionalBias([]LargeTrade{buy(50), sell(30)}, 2)
	require.Equal(t, signal.Neutral, bias)

	bias, _, _ = InstitutionalBias(nil, 2)
	require.Equal(t, signal.Neutral, bias)
}
