// Package orderflow derives microstructure signals from the book and the
// trade tape: liquidity walls and their lifecycle, per-price footprints,
// absorption, and institutional-size prints.
package orderflow

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"flowbot/internal/market"
	"flowbot/internal/metrics"
)

// WallSide names which side of the book a wall rests on.
type WallSide string

const (
	WallBid WallSide = "bid"
	WallAsk WallSide = "ask"
)

// Wall is a resting order large enough to matter, close enough to mid to
// interact with the flow.
type Wall struct {
	Side      WallSide
	Price     float64
	Size      float64
	FirstSeen time.Time
	LastSeen  time.Time
}

// WallDetector scans a book snapshot for qualifying levels.
type WallDetector struct {
	minSize        float64
	maxDistancePct float64
}

// NewWallDetector configures the size floor (base asset) and the maximum
// distance from mid in percent.
func NewWallDetector(minSize, maxDistancePct float64) *WallDetector {
	return &WallDetector{minSize: minSize, maxDistancePct: maxDistancePct}
}

// Detect returns every level whose size and distance qualify. An illiquid
// book (no mid) yields nothing.
func (d *WallDetector) Detect(book market.Book) []Wall {
	mid, ok := book.Mid()
	if !ok || mid <= 0 {
		return nil
	}
	now := book.Time
	var walls []Wall
	scan := func(levels []market.BookLevel, side WallSide) {
		for _, lvl := range levels {
			if lvl.Quantity < d.minSize {
				continue
			}
			if math.Abs(lvl.Price-mid)/mid > d.maxDistancePct/100 {
				continue
			}
			walls = append(walls, Wall{
				Side:      side,
				Price:     lvl.Price,
				Size:      lvl.Quantity,
				FirstSeen: now,
				LastSeen:  now,
			})
		}
	}
	scan(book.Bids, WallBid)
	scan(book.Asks, WallAsk)
	return walls
}

// WallEventType classifies a lifecycle transition.
type WallEventType string

const (
	WallNew     WallEventType = "new"
	WallRemoved WallEventType = "removed"
	WallSpoofed WallEventType = "spoofed"
)

// WallEvent reports one lifecycle transition from a tracker update.
type WallEvent struct {
	Type WallEventType
	Wall Wall
}

type wallKey struct {
	side     WallSide
	priceKey int64
}

// WallTracker diffs successive wall sets and tags short-lived walls as
// spoofed. It is owned by the strategy and updated once per cycle.
type WallTracker struct {
	spoofMaxLifetime time.Duration
	active           map[wallKey]Wall
	log              zerolog.Logger
}

// NewWallTracker builds a tracker with the configured spoof lifetime.
func NewWallTracker(spoofMaxLifetime time.Duration, log zerolog.Logger) *WallTracker {
	return &WallTracker{
		spoofMaxLifetime: spoofMaxLifetime,
		active:           make(map[wallKey]Wall),
		log:              log,
	}
}

// Update reconciles the current wall set against the tracked one, keyed
// by (side, price bucket), and returns the lifecycle events.
func (t *WallTracker) Update(now time.Time, walls []Wall) []WallEvent {
	seen := make(map[wallKey]bool, len(walls))
	var events []WallEvent

	for _, w := range walls {
		key := wallKey{side: w.Side, priceKey: market.PriceKey(w.Price)}
		seen[key] = true
		if existing, ok := t.active[key]; ok {
			existing.LastSeen = now
			existing.Size = w.Size
			t.active[key] = existing
			continue
		}
		w.FirstSeen = now
		w.LastSeen = now
		t.active[key] = w
		events = append(events, WallEvent{Type: WallNew, Wall: w})
	}

	for key, w := range t.active {
		if seen[key] {
			continue
		}
		delete(t.active, key)
		evt := WallEvent{Type: WallRemoved, Wall: w}
		if w.LastSeen.Sub(w.FirstSeen) < t.spoofMaxLifetime {
			evt.Type = WallSpoofed
			metrics.WallsSpoofed.Inc()
			t.log.Debug().
				Str("side", string(w.Side)).
				Float64("price", w.Price).
				Float64("size", w.Size).
				Msg("wall vanished inside spoof lifetime")
		}
		events = append(events, evt)
	}
	return events
}

// Active returns the number of walls currently tracked.
func (t *WallTracker) Active() int { return len(t.active) }
