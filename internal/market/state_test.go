package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriceKeyRoundTrip(t *testing.T) {
	for _, p := range []float64{0.00000001, 1.5, 50000.12345678, 98765.4} {
		require.InDelta(t, p, KeyPrice(PriceKey(p)), 1e-8)
	}
}

func TestApplyBookUpdateZeroRemoves(t *testing.T) {
	s := NewState(0, 0)
	s.ApplyBookUpdate(
		[]BookLevel{{Price: 100, Quantity: 5}, {Price: 99, Quantity: 3}},
		[]BookLevel{{Price: 101, Quantity: 2}},
	)

	book := s.BookSnapshot()
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)

	s.ApplyBookUpdate([]BookLevel{{Price: 100, Quantity: 0}}, nil)
	book = s.BookSnapshot()
	require.Len(t, book.Bids, 1)
	require.Equal(t, 99.0, book.Bids[0].Price)
}

func TestBookSnapshotOrdering(t *testing.T) {
	s := NewState(0, 0)
	s.ApplyBookUpdate(
		[]BookLevel{{Price: 98, Quantity: 1}, {Price: 100, Quantity: 1}, {Price: 99, Quantity: 1}},
		[]BookLevel{{Price: 103, Quantity: 1}, {Price: 101, Quantity: 1}, {Price: 102, Quantity: 1}},
	)
	book := s.BookSnapshot()

	// bids descending, asks ascending
	require.Equal(t, []float64{100, 99, 98}, prices(book.Bids))
	require.Equal(t, []float64{101, 102, 103}, prices(book.Asks))

	bid, ok := book.BestBid()
	require.True(t, ok)
	require.Equal(t, 100.0, bid.Price)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	require.Equal(t, 101.0, ask.Price)
	mid, ok := book.Mid()
	require.True(t, ok)
	require.Equal(t, 100.5, mid)
}

func TestBestQuotesEmptyBook(t *testing.T) {
	s := NewState(0, 0)
	book := s.BookSnapshot()
	_, ok := book.BestBid()
	require.False(t, ok)
	_, ok = book.Mid()
	require.False(t, ok)
}

func TestTradeRingEviction(t *testing.T) {
	s := NewState(3, 0)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.AppendTrade(Trade{Time: base.Add(time.Duration(i) * time.Second), Price: float64(100 + i), ID: int64(i)})
	}

	trades := s.TradesSince(base)
	require.Len(t, trades, 3)
	require.Equal(t, int64(2), trades[0].ID)
	require.Equal(t, int64(4), trades[2].ID)
	require.Equal(t, 104.0, s.CurrentPrice())
}

func TestTradesSinceCutoff(t *testing.T) {
	s := NewState(10, 0)
	base := time.Now()
	for i := 0; i < 6; i++ {
		s.AppendTrade(Trade{Time: base.Add(time.Duration(i) * time.Minute), Price: 100})
	}
	got := s.TradesSince(base.Add(3 * time.Minute))
	require.Len(t, got, 3)
}

func TestCandleHistoryTrim(t *testing.T) {
	s := NewState(0, 3)
	for i := 0; i < 5; i++ {
		s.AppendCandle(Candle{Interval: "1m", Close: float64(i)})
	}
	closes := s.Closes("1m", 3)
	require.Equal(t, []float64{2, 3, 4}, closes)

	// insufficient history yields nil rather than a partial slice
	require.Nil(t, s.Closes("1m", 4))
	require.Nil(t, s.Closes("5m", 1))
}

func TestDailyCounters(t *testing.T) {
	s := NewState(0, 0)
	s.AddDailyPnL(-12.5)
	s.AddDailyPnL(4)
	s.IncDailyTrades()
	require.Equal(t, -8.5, s.DailyPnL())
	require.Equal(t, 1, s.DailyTrades())

	s.ResetDaily()
	require.Zero(t, s.DailyPnL())
	require.Zero(t, s.DailyTrades())
}

func TestSetAccountCopies(t *testing.T) {
	s := NewState(0, 0)
	src := []Position{{Symbol: "BTCUSDT", Quantity: 0.5}}
	s.SetAccount(1000, src)
	src[0].Quantity = 99

	got := s.Positions()
	require.Equal(t, 0.5, got[0].Quantity)
	require.Equal(t, 1000.0, s.Balance())
}

func prices(levels []BookLevel) []float64 {
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}
