package features

import (
	"math"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last
// window returns. Returns 0 when there are fewer than window returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for a timeframe,
// assuming a 24x365 market.
func BarsPerYear(tf repository.Timeframe) float64 {
	d := tf.Duration()
	if d <= 0 {
		d = repository.DefaultTimeframe().Duration()
	}
	return float64(365*24*60) / d.Minutes()
}

// Slope is the fractional change of series over the last lookback points.
func Slope(series []float64, lookback int) float64 {
	if lookback <= 0 || len(series) <= lookback {
		return 0
	}
	prev := series[len(series)-1-lookback]
	cur := series[len(series)-1]
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev
}
