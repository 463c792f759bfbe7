// Package strategy fuses every analyzer into one decision per cycle:
// weighted scoring across moving averages, volume profile, delta
// divergence, and order flow, gated by market conditions.
//
// Bias assignment follows first-wins: the first non-neutral contributor
// claims the bias and later contributors only add strength. The one
// exception is full EMA alignment, which asserts its direction inside
// the moving-average sub-signal regardless of the crossover outcome.
package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"flowbot/internal/conditions"
	"flowbot/internal/config"
	"flowbot/internal/delta"
	"flowbot/internal/indicator"
	"flowbot/internal/market"
	"flowbot/internal/metrics"
	"flowbot/internal/orderflow"
	"flowbot/internal/profile"
	"flowbot/internal/signal"
)

// srProximity is how close (fractionally) price must sit to a volume
// node to count as testing it.
const srProximity = 0.005

// institutionalDominance is the buy/sell multiple required to call
// directional institutional flow.
const institutionalDominance = 2.0

// Params carries the fusion thresholds from configuration.
type Params struct {
	EMAFast              int
	EMAMedium            int
	EMASlow              int
	EMATrend             int
	VPLookback           time.Duration
	DeltaTimeframe       time.Duration
	FootprintWindow      time.Duration
	InstitutionalMinSize float64
	InstitutionalWindow  time.Duration
	AbsorptionRatio      float64
	ImbalanceThreshold   float64
	MinSignalStrength    int
	StopLossPct          float64
	TakeProfitPct        float64
}

// ParamsFromConfig flattens the relevant config sections.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		EMAFast:              cfg.EMA.Fast,
		EMAMedium:            cfg.EMA.Medium,
		EMASlow:              cfg.EMA.Slow,
		EMATrend:             cfg.EMA.Trend,
		VPLookback:           time.Duration(cfg.VolumeProfile.LookbackHours) * time.Hour,
		DeltaTimeframe:       time.Duration(cfg.Delta.TimeframeMinutes) * time.Minute,
		FootprintWindow:      time.Duration(cfg.OrderFlow.FootprintWindowSec) * time.Second,
		InstitutionalMinSize: cfg.OrderFlow.InstitutionalMinBTC,
		InstitutionalWindow:  time.Duration(cfg.OrderFlow.InstitutionalWindowSec) * time.Second,
		AbsorptionRatio:      cfg.OrderFlow.AbsorptionRatio,
		ImbalanceThreshold:   cfg.OrderFlow.ImbalanceThreshold,
		MinSignalStrength:    cfg.Strategy.MinSignalStrength,
		StopLossPct:          cfg.Risk.StopLossPct,
		TakeProfitPct:        cfg.Risk.TakeProfitPct,
	}
}

// Strategy orchestrates the analyzers. It owns the wall tracker; all
// other state lives in the analyzers or the shared market state.
type Strategy struct {
	params        Params
	state         *market.State
	walls         *orderflow.WallDetector
	tracker       *orderflow.WallTracker
	footprint     *orderflow.FootprintBuilder
	institutional *orderflow.InstitutionalDetector
	profile       *profile.Builder
	delta         *delta.Detector
	conditions    *conditions.Analyzer
	log           zerolog.Logger
}

// New wires the fusion pipeline.
func New(params Params, state *market.State, walls *orderflow.WallDetector,
	tracker *orderflow.WallTracker, footprint *orderflow.FootprintBuilder,
	institutional *orderflow.InstitutionalDetector, profileBuilder *profile.Builder,
	deltaDetector *delta.Detector, condAnalyzer *conditions.Analyzer,
	log zerolog.Logger) *Strategy {
	return &Strategy{
		params:        params,
		state:         state,
		walls:         walls,
		tracker:       tracker,
		footprint:     footprint,
		institutional: institutional,
		profile:       profileBuilder,
		delta:         deltaDetector,
		conditions:    condAnalyzer,
		log:           log,
	}
}

// FromConfig builds the strategy and every analyzer it fuses. Both
// binaries wire through here so their pipelines cannot drift.
func FromConfig(cfg *config.Config, state *market.State, log zerolog.Logger) *Strategy {
	footprint := orderflow.NewFootprintBuilder(state)
	return New(
		ParamsFromConfig(cfg),
		state,
		orderflow.NewWallDetector(cfg.OrderFlow.WallMinSizeBTC, cfg.OrderFlow.WallDistancePercent),
		orderflow.NewWallTracker(time.Duration(cfg.OrderFlow.SpoofMaxLifetimeSec*float64(time.Second)), log),
		footprint,
		orderflow.NewInstitutionalDetector(state),
		profile.NewBuilder(state, cfg.VolumeProfile.PriceBins, cfg.VolumeProfile.ValueAreaPercent),
		delta.NewDetector(footprint, state, cfg.Delta.Periods, cfg.Delta.Threshold),
		conditions.NewAnalyzer(state, conditions.Params{
			TrendThreshold:           cfg.Conditions.TrendThreshold,
			RangingThreshold:         cfg.Conditions.RangingThreshold,
			MinVolatilityPct:         cfg.Conditions.MinVolatilityPct,
			MaxVolatilityPct:         cfg.Conditions.MaxVolatilityPct,
			MaxSpreadBips:            cfg.Conditions.MaxSpreadBips,
			MinVolume24h:             cfg.Conditions.MinVolume24hUSDT,
			RequireTrendConfirmation: cfg.Conditions.RequireTrendConfirmation,
		}),
		log,
	)
}

type subSignal struct {
	bias     signal.Bias
	strength int
	reasons  []signal.Reason
}

// Analyze runs the fusion steps in strict order and returns the fused
// signal. Later steps observe the side effects of earlier ones within
// the same cycle.
func (s *Strategy) Analyze(now time.Time) signal.Signal {
	sig := signal.Signal{Time: now, Bias: signal.Neutral, Action: signal.Wait}

	// step 1: market conditions short-circuit
	conds := s.conditions.Analyze()
	if !conds.Tradeable {
		sig.Reasons = append(sig.Reasons, signal.Reason{
			Code:   signal.ReasonNotTradeable,
			Detail: joinWarnings(conds.Warnings),
		})
		metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
		return sig
	}

	// step 2: moving averages
	ma := s.analyzeMovingAverages()
	sig.Components = append(sig.Components, signal.Component{Name: "moving_averages", Bias: ma.bias, Strength: ma.strength})
	if ma.bias != signal.Neutral {
		sig.Strength += ma.strength
		sig.Reasons = append(sig.Reasons, ma.reasons...)
		if sig.Bias == signal.Neutral {
			sig.Bias = ma.bias
		}
	}

	// step 3: volume profile
	vp := s.analyzeVolumeProfile()
	sig.Components = append(sig.Components, signal.Component{Name: "volume_profile", Bias: vp.bias, Strength: vp.strength})
	sig.Strength += vp.strength
	sig.Reasons = append(sig.Reasons, vp.reasons...)
	if sig.Bias == signal.Neutral && vp.bias != signal.Neutral {
		sig.Bias = vp.bias
	}

	// step 4: delta divergence, weighted at half
	s.delta.CumulativeDelta(s.params.DeltaTimeframe)
	div := s.delta.Detect()
	sig.Components = append(sig.Components, signal.Component{Name: "delta_divergence", Bias: div.Type, Strength: div.Strength})
	if div.Detected() {
		sig.Strength += div.Strength / 2
		sig.Reasons = append(sig.Reasons, signal.Reason{Code: signal.ReasonDeltaDiverge, Detail: div.Describe()})
		if sig.Bias == signal.Neutral {
			sig.Bias = div.Type
		}
	}

	// step 5: order flow
	of := s.analyzeOrderFlow()
	sig.Components = append(sig.Components, signal.Component{Name: "orderflow", Bias: of.bias, Strength: of.strength})
	sig.Strength += of.strength
	sig.Reasons = append(sig.Reasons, of.reasons...)
	if sig.Bias == signal.Neutral && of.bias != signal.Neutral {
		sig.Bias = of.bias
	}

	// step 6: final decision
	if sig.Strength >= s.params.MinSignalStrength {
		if ok, reason := s.conditions.ShouldTrade(conds, sig.Bias); ok {
			switch sig.Bias {
			case signal.Bullish:
				sig.Action = signal.Buy
			case signal.Bearish:
				sig.Action = signal.Sell
			}
			if sig.Actionable() {
				entry := s.state.CurrentPrice()
				sig.EntryPrice = entry
				if sig.Action == signal.Buy {
					sig.StopLoss = entry * (1 - s.params.StopLossPct/100)
					sig.TakeProfit = entry * (1 + s.params.TakeProfitPct/100)
				} else {
					sig.StopLoss = entry * (1 + s.params.StopLossPct/100)
					sig.TakeProfit = entry * (1 - s.params.TakeProfitPct/100)
				}
			}
		} else {
			sig.Reasons = append(sig.Reasons, signal.Reason{Code: signal.ReasonConditionVeto, Detail: reason})
		}
	}

	metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
	return sig
}

// analyzeMovingAverages scores the fast/medium crossover and full EMA
// alignment over 5-minute closes. The two checks are independent and
// additive; alignment asserts the direction even when it disagrees with
// the crossover.
func (s *Strategy) analyzeMovingAverages() subSignal {
	out := subSignal{bias: signal.Neutral}
	closes := s.state.Closes("5m", s.params.EMATrend)
	if closes == nil {
		return out
	}
	n := len(closes)

	emaFast := indicator.EMA(closes[n-s.params.EMAFast:], s.params.EMAFast)
	emaMedium := indicator.EMA(closes[n-s.params.EMAMedium:], s.params.EMAMedium)
	emaSlow := indicator.EMA(closes[n-s.params.EMASlow:], s.params.EMASlow)
	emaTrend := indicator.EMA(closes, s.params.EMATrend)

	prevFast := indicator.EMA(closes[n-s.params.EMAFast-1:n-1], s.params.EMAFast)
	prevMedium := indicator.EMA(closes[n-s.params.EMAMedium-1:n-1], s.params.EMAMedium)

	currentPrice := closes[n-1]

	switch indicator.Crossover(emaFast, emaMedium, prevFast, prevMedium) {
	case indicator.CrossBullish:
		out.strength = 25
		out.bias = signal.Bullish
		detail := fmt.Sprintf("EMA%d crossed above EMA%d", s.params.EMAFast, s.params.EMAMedium)
		if currentPrice > emaTrend {
			out.strength += 10
			detail += " (above trend EMA)"
		}
		out.reasons = append(out.reasons, signal.Reason{Code: signal.ReasonEMACrossover, Detail: detail})
	case indicator.CrossBearish:
		out.strength = 25
		out.bias = signal.Bearish
		detail := fmt.Sprintf("EMA%d crossed below EMA%d", s.params.EMAFast, s.params.EMAMedium)
		if currentPrice < emaTrend {
			out.strength += 10
			detail += " (below trend EMA)"
		}
		out.reasons = append(out.reasons, signal.Reason{Code: signal.ReasonEMACrossover, Detail: detail})
	}

	if emaFast > emaMedium && emaMedium > emaSlow && emaSlow > emaTrend {
		out.strength += 15
		out.bias = signal.Bullish
		out.reasons = append(out.reasons, signal.Reason{Code: signal.ReasonEMAAlignment, Detail: "all EMAs aligned bullish"})
	} else if emaFast < emaMedium && emaMedium < emaSlow && emaSlow < emaTrend {
		out.strength += 15
		out.bias = signal.Bearish
		out.reasons = append(out.reasons, signal.Reason{Code: signal.ReasonEMAAlignment, Detail: "all EMAs aligned bearish"})
	}
	return out
}

// analyzeVolumeProfile rewards price testing the nearest high-volume
// node on either side.
func (s *Strategy) analyzeVolumeProfile() subSignal {
	out := subSignal{bias: signal.Neutral}
	prof := s.profile.Build(s.params.VPLookback)
	if prof.Empty() {
		return out
	}
	currentPrice := s.state.CurrentPrice()
	if currentPrice <= 0 {
		return out
	}
	support, resistance := prof.SupportResistance(currentPrice)

	if len(support) > 0 && math.Abs(currentPrice-support[0])/currentPrice < srProximity {
		out.strength += 15
		out.bias = signal.Bullish
		out.reasons = append(out.reasons, signal.Reason{
			Code:   signal.ReasonAtSupport,
			Detail: fmt.Sprintf("price at major support %.2f", support[0]),
		})
	}
	if len(resistance) > 0 && math.Abs(currentPrice-resistance[0])/currentPrice < srProximity {
		out.strength += 15
		if out.bias == signal.Neutral {
			out.bias = signal.Bearish
		}
		out.reasons = append(out.reasons, signal.Reason{
			Code:   signal.ReasonAtResistance,
			Detail: fmt.Sprintf("price at major resistance %.2f", resistance[0]),
		})
	}
	return out
}

// analyzeOrderFlow detects walls, updates their lifecycle, and scores
// absorption, institutional flow, and aggregate imbalance. Wall tracking
// is a deliberate side effect observed by later cycles.
func (s *Strategy) analyzeOrderFlow() subSignal {
	out := subSignal{bias: signal.Neutral}

	book := s.state.BookSnapshot()
	walls := s.walls.Detect(book)
	events := s.tracker.Update(book.Time, walls)
	for _, evt := range events {
		if evt.Type == orderflow.WallSpoofed {
			s.log.Debug().Str("side", string(evt.Wall.Side)).Float64("price", evt.Wall.Price).Msg("spoofed wall")
		}
	}
	if len(walls) > 0 {
		out.reasons = append(out.reasons, signal.Reason{
			Code:   signal.ReasonWallsFound,
			Detail: fmt.Sprintf("%d liquidity walls on the book", len(walls)),
		})
	}

	fp := s.footprint.Build(s.params.FootprintWindow)
	for _, wall := range walls {
		absorb := orderflow.DetectAbsorption(fp, wall, s.params.AbsorptionRatio)
		if !absorb.Detected {
			continue
		}
		out.strength += 30
		out.bias = absorb.Direction
		out.reasons = append(out.reasons, signal.Reason{
			Code: signal.ReasonAbsorption,
			Detail: fmt.Sprintf("%s wall at %.2f absorbed %.1f (%.1fx)",
				wall.Side, wall.Price, absorb.TradedVolume, absorb.Ratio),
		})
	}

	large := s.institutional.LargeTrades(s.params.InstitutionalMinSize, s.params.InstitutionalWindow)
	if len(large) > 0 {
		bias, buyVol, sellVol := orderflow.InstitutionalBias(large, institutionalDominance)
		switch bias {
		case signal.Bullish:
			out.strength += 20
			out.bias = signal.Bullish
			out.reasons = append(out.reasons, signal.Reason{
				Code:   signal.ReasonInstitutional,
				Detail: fmt.Sprintf("institutional buying %.1f vs %.1f", buyVol, sellVol),
			})
		case signal.Bearish:
			out.strength += 20
			out.bias = signal.Bearish
			out.reasons = append(out.reasons, signal.Reason{
				Code:   signal.ReasonInstitutional,
				Detail: fmt.Sprintf("institutional selling %.1f vs %.1f", sellVol, buyVol),
			})
		}
	}

	if !fp.Empty() {
		totalBuy, totalSell := fp.TotalBuy(), fp.TotalSell()
		if total := totalBuy + totalSell; total > 0 {
			imbalance := totalBuy / total
			if imbalance > s.params.ImbalanceThreshold {
				out.strength += 20
				out.reasons = append(out.reasons, signal.Reason{
					Code:   signal.ReasonImbalance,
					Detail: fmt.Sprintf("strong buy imbalance %.0f%%", imbalance*100),
				})
				if out.bias == signal.Neutral {
					out.bias = signal.Bullish
				}
			} else if imbalance < 1-s.params.ImbalanceThreshold {
				out.strength += 20
				out.reasons = append(out.reasons, signal.Reason{
					Code:   signal.ReasonImbalance,
					Detail: fmt.Sprintf("strong sell imbalance %.0f%%", (1-imbalance)*100),
				})
				if out.bias == signal.Neutral {
					out.bias = signal.Bearish
				}
			}
		}
	}
	return out
}

func joinWarnings(warnings []string) string {
	out := ""
	for i, w := range warnings {
		if i > 0 {
			out += ", "
		}
		out += w
	}
	return out
}
