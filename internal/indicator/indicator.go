// Package indicator holds the stateless numeric primitives the analyzers
// share. All series are ordered oldest to newest. Insufficient history
// returns the zero value, never an error.
package indicator

import "math"

// EMA computes an exponential moving average seeded with the first
// element. Returns 0 when the series is shorter than the period.
func EMA(series []float64, period int) float64 {
	if period <= 0 || len(series) < period {
		return 0
	}
	alpha := 2.0 / float64(period+1)
	ema := series[0]
	for _, price := range series[1:] {
		ema = price*alpha + ema*(1-alpha)
	}
	return ema
}

// EMASeries computes the EMA recurrence over the whole series, returning
// an output of the same length, or nil when history is insufficient.
func EMASeries(series []float64, period int) []float64 {
	if period <= 0 || len(series) < period {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// Cross classifies an EMA crossover.
type Cross int

const (
	CrossNone Cross = iota
	CrossBullish
	CrossBearish
)

// Crossover compares the current and previous fast/slow values. An exact
// tie with no prior order change yields CrossNone.
func Crossover(fast, slow, prevFast, prevSlow float64) Cross {
	if prevFast <= prevSlow && fast > slow {
		return CrossBullish
	}
	if prevFast >= prevSlow && fast < slow {
		return CrossBearish
	}
	return CrossNone
}

// Volatility is the standard deviation of simple returns over the
// trailing `periods` window, as a percentage. Returns 0 on short input.
func Volatility(series []float64, periods int) float64 {
	if periods <= 1 || len(series) < periods {
		return 0
	}
	window := series[len(series)-periods:]
	returns := make([]float64, 0, periods-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return 0
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance) * 100
}

// ATR is the mean true range over the trailing `period` window.
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(highs) < period || len(lows) < period || len(closes) < period {
		return 0
	}
	n := len(closes)
	if len(highs) < n {
		n = len(highs)
	}
	if len(lows) < n {
		n = len(lows)
	}
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trs = append(trs, tr)
	}
	if len(trs) == 0 {
		return 0
	}
	if len(trs) > period {
		trs = trs[len(trs)-period:]
	}
	var sum float64
	for _, tr := range trs {
		sum += tr
	}
	return sum / float64(len(trs))
}
