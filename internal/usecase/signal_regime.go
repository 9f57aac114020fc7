package usecase

import "strings"

// regimeAdjustment shifts rule thresholds and scales the final confidence for one regime.
type regimeAdjustment struct {
	RSIDelta   float64
	MACDDelta  float64
	Multiplier float64
}

// RegimeUnknown is used when the classifier had no answer.
const RegimeUnknown = "unknown"

var regimeTable = map[string]regimeAdjustment{
	"bull_low":        {RSIDelta: 5, MACDDelta: -0.02, Multiplier: 1.10},
	"bull_normal":     {RSIDelta: 5, MACDDelta: 0, Multiplier: 1.05},
	"bull_high":       {RSIDelta: 3, MACDDelta: 0.03, Multiplier: 0.95},
	"bear_low":        {RSIDelta: -5, MACDDelta: -0.02, Multiplier: 1.00},
	"bear_normal":     {RSIDelta: -5, MACDDelta: 0, Multiplier: 0.95},
	"bear_high":       {RSIDelta: -3, MACDDelta: 0.05, Multiplier: 0.85},
	"sideways_low":    {RSIDelta: 0, MACDDelta: -0.03, Multiplier: 1.00},
	"sideways_normal": {RSIDelta: 0, MACDDelta: 0, Multiplier: 0.95},
	"sideways_high":   {RSIDelta: 0, MACDDelta: 0.05, Multiplier: 0.90},
}

var neutralAdjustment = regimeAdjustment{Multiplier: 1.0}

// normalizeRegime maps classifier labels such as "Bull_High_Vol" or
// "bull-high" onto the table keys. Unrecognized labels become "unknown".
func normalizeRegime(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.TrimSuffix(s, "_volatility")
	s = strings.TrimSuffix(s, "_vol")
	s = strings.Replace(s, "bullish", "bull", 1)
	s = strings.Replace(s, "bearish", "bear", 1)
	s = strings.Replace(s, "ranging", "sideways", 1)
	s = strings.Replace(s, "_medium", "_normal", 1)
	if _, ok := regimeTable[s]; ok {
		return s
	}
	return RegimeUnknown
}

func adjustmentFor(regime string) regimeAdjustment {
	if adj, ok := regimeTable[regime]; ok {
		return adj
	}
	return neutralAdjustment
}
