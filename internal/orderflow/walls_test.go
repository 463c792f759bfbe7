package orderflow

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"flowbot/internal/market"
)

func testBook(t time.Time) market.Book {
	return market.Book{
		Time: t,
		Bids: []market.BookLevel{
			{Price: 49999, Quantity: 150}, // qualifying wall
			{Price: 49998, Quantity: 2},
			{Price: 49000, Quantity: 500}, // too far from mid
		},
		Asks: []market.BookLevel{
			{Price: 50001, Quantity: 120}, // qualifying wall
			{Price: 50002, Quantity: 50},
		},
	}
}

func TestWallDetector(t *testing.T) {
	d := NewWallDetector(100, 0.5)
	walls := d.Detect(testBook(time.Now()))

	require.Len(t, walls, 2)
	require.Equal(t, WallBid, walls[0].Side)
	require.Equal(t, 49999.0, walls[0].Price)
	require.Equal(t, WallAsk, walls[1].Side)
	require.Equal(t, 50001.0, walls[1].Price)
}

func TestWallDetectorIlliquidBook(t *testing.T) {
	d := NewWallDetector(100, 0.5)
	oneSided := market.Book{
		Time: time.Now(),
		Bids: []market.BookLevel{{Price: 50000, Quantity: 500}},
	}
	require.Nil(t, d.Detect(oneSided))
}

func TestWallTrackerLifecycle(t *testing.T) {
	tracker := NewWallTracker(5*time.Second, zerolog.Nop())
	base := time.Now()

	wall := Wall{Side: WallBid, Price: 49999, Size: 150}
	events := tracker.Update(base, []Wall{wall})
	require.Len(t, events, 1)
	require.Equal(t, WallNew, events[0].Type)
	require.Equal(t, 1, tracker.Active())

	// still present after the spoof lifetime, so removal is genuine
	events = tracker.Update(base.Add(6*time.Second), []Wall{wall})
	require.Empty(t, events)

	events = tracker.Update(base.Add(7*time.Second), nil)
	require.Len(t, events, 1)
	require.Equal(t, WallRemoved, events[0].Type)
	require.Zero(t, tracker.Active())
}

func TestWallTrackerSpoofDetection(t *testing.T) {
	tracker := NewWallTracker(5*time.Second, zerolog.Nop())
	base := time.Now()

	wall := Wall{Side: WallAsk, Price: 50001, Size: 200}
	tracker.Update(base, []Wall{wall})

	// vanishes 2s after first seen, inside the spoof lifetime
	events := tracker.Update(base.Add(2*time.Second), nil)
	require.Len(t, events, 1)
	require.Equal(t, WallSpoofed, events[0].Type)
	require.Equal(t, WallAsk, events[0].Wall.Side)
}

func TestWallTrackerKeyedBySideAndPrice(t *testing.T) {
	tracker := NewWallTracker(time.Second, zerolog.Nop())
	base := time.Now()

	// same price on both sides tracks as two walls
	events := tracker.Update(base, []Wall{
		{Side: WallBid, Price: 50000, Size: 150},
		{Side: WallAsk, Price: 50000, Size: 150},
	})
	require.Len(t, events, 2)
	require.Equal(t, 2, tracker.Active())
}
