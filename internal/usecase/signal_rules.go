package usecase

import (
	"fmt"
	"math"

	"TradeCore/internal/domain/models"
)

// Blend weights for the composite score.
var indicatorWeights = map[string]float64{
	"rsi":       0.25,
	"macd":      0.30,
	"bollinger": 0.20,
	"volume":    0.15,
	"trend":     0.10,
}

const (
	rsiOversold       = 30.0
	rsiOverbought     = 70.0
	macdThreshold     = 0.1
	bollingerBand     = 0.3
	volumeStrong      = 1.5
	compositeMargin   = 0.1
	neutralConfidence = 0.5
)

func neutral(value float64, detail string) models.IndicatorSignal {
	return models.IndicatorSignal{Signal: models.SignalNeutral, Confidence: neutralConfidence, Value: value, Detail: detail}
}

func evaluateRSI(rsi float64, adj regimeAdjustment) models.IndicatorSignal {
	oversold := rsiOversold + adj.RSIDelta
	overbought := rsiOverbought + adj.RSIDelta
	switch {
	case rsi < oversold:
		depth := (oversold - rsi) / oversold
		return models.IndicatorSignal{
			Signal:     models.SignalBuy,
			Confidence: math.Min(0.9, neutralConfidence+depth),
			Value:      rsi,
			Detail:     fmt.Sprintf("oversold below %.0f", oversold),
		}
	case rsi > overbought:
		depth := (rsi - overbought) / (100 - overbought)
		return models.IndicatorSignal{
			Signal:     models.SignalSell,
			Confidence: math.Min(0.9, neutralConfidence+depth),
			Value:      rsi,
			Detail:     fmt.Sprintf("overbought above %.0f", overbought),
		}
	}
	return neutral(rsi, "inside band")
}

func evaluateMACD(m models.MACDValue, adj regimeAdjustment) models.IndicatorSignal {
	thr := macdThreshold + adj.MACDDelta
	if thr <= 0 {
		thr = macdThreshold
	}
	h := m.Histogram
	if math.Abs(h) <= thr {
		return neutral(h, "histogram flat")
	}
	conf := math.Min(0.85, neutralConfidence+0.1*math.Abs(h)/thr)
	if h > 0 {
		return models.IndicatorSignal{Signal: models.SignalBuy, Confidence: conf, Value: h, Detail: "bullish histogram"}
	}
	return models.IndicatorSignal{Signal: models.SignalSell, Confidence: conf, Value: h, Detail: "bearish histogram"}
}

func evaluateBollinger(price float64, b models.BollingerBands) models.IndicatorSignal {
	width := b.Upper - b.Lower
	if width <= 0 || price <= 0 {
		return neutral(0, "bands collapsed")
	}
	pos := (price - b.Lower) / width
	switch {
	case pos <= bollingerBand:
		conf := math.Min(0.8, neutralConfidence+(bollingerBand-pos)/bollingerBand*0.3)
		return models.IndicatorSignal{Signal: models.SignalBuy, Confidence: conf, Value: pos, Detail: "near lower band"}
	case pos >= 1-bollingerBand:
		conf := math.Min(0.8, neutralConfidence+(pos-(1-bollingerBand))/bollingerBand*0.3)
		return models.IndicatorSignal{Signal: models.SignalSell, Confidence: conf, Value: pos, Detail: "near upper band"}
	}
	return neutral(pos, "mid band")
}

// evaluateVolume labels the volume ratio. Direction on strong and moderate
// volume follows price against the reference mean.
func evaluateVolume(v models.VolumeStats, price, reference float64) models.IndicatorSignal {
	if v.Average <= 0 {
		return neutral(0, "no volume average")
	}
	ratio := v.Current / v.Average
	side := models.SignalNeutral
	if reference > 0 && price > 0 {
		if price > reference {
			side = models.SignalBuy
		} else if price < reference {
			side = models.SignalSell
		}
	}
	switch {
	case ratio >= volumeStrong:
		return models.IndicatorSignal{
			Signal:     side,
			Confidence: 0.7 + math.Min(0.2, (ratio-volumeStrong)*0.1),
			Value:      ratio,
			Strength:   "strong",
		}
	case ratio >= 1.0:
		return models.IndicatorSignal{Signal: side, Confidence: 0.6, Value: ratio, Strength: "moderate"}
	case ratio >= 0.5:
		return models.IndicatorSignal{Signal: models.SignalNeutral, Confidence: 0.4, Value: ratio, Strength: "weak"}
	}
	return models.IndicatorSignal{Signal: models.SignalNeutral, Confidence: neutralConfidence, Value: ratio, Strength: "neutral"}
}

// evaluateTrend votes on three moving-average crossovers; zero averages abstain.
func evaluateTrend(ma models.MovingAverages) models.IndicatorSignal {
	bull, bear := 0, 0
	vote := func(fast, slow float64) {
		if fast == 0 || slow == 0 {
			return
		}
		if fast > slow {
			bull++
		} else if fast < slow {
			bear++
		}
	}
	vote(ma.EMA12, ma.EMA26)
	vote(ma.SMA20, ma.SMA50)
	vote(ma.SMA50, ma.SMA200)

	switch {
	case bull >= 2:
		return models.IndicatorSignal{Signal: models.SignalBuy, Confidence: neutralConfidence + 0.15*float64(bull-1), Value: float64(bull), Detail: "bullish crossovers"}
	case bear >= 2:
		return models.IndicatorSignal{Signal: models.SignalSell, Confidence: neutralConfidence + 0.15*float64(bear-1), Value: float64(-bear), Detail: "bearish crossovers"}
	}
	return neutral(float64(bull-bear), "mixed crossovers")
}

// evaluateAll runs every rule whose input is present.
func evaluateAll(ind *models.Indicators, adj regimeAdjustment) map[string]models.IndicatorSignal {
	out := make(map[string]models.IndicatorSignal, len(indicatorWeights))
	if ind.RSI != nil {
		out["rsi"] = evaluateRSI(*ind.RSI, adj)
	}
	if ind.MACD != nil {
		out["macd"] = evaluateMACD(*ind.MACD, adj)
	}
	if ind.Bollinger != nil {
		out["bollinger"] = evaluateBollinger(ind.Price, *ind.Bollinger)
	}
	if ind.Volume != nil {
		ref := 0.0
		if ind.Bollinger != nil {
			ref = ind.Bollinger.Middle
		} else if ind.Averages != nil {
			ref = ind.Averages.SMA20
		}
		out["volume"] = evaluateVolume(*ind.Volume, ind.Price, ref)
	}
	if ind.Averages != nil {
		out["trend"] = evaluateTrend(*ind.Averages)
	}
	return out
}

// blend folds the per-indicator verdicts into buy and sell scores and picks the side.
func blend(signals map[string]models.IndicatorSignal) (side models.SignalSide, conf, buy, sell float64) {
	for name, s := range signals {
		w := indicatorWeights[name]
		switch s.Signal {
		case models.SignalBuy:
			buy += w * s.Confidence
		case models.SignalSell:
			sell += w * s.Confidence
		}
	}
	switch {
	case buy > sell+compositeMargin:
		return models.SignalBuy, buy, buy, sell
	case sell > buy+compositeMargin:
		return models.SignalSell, sell, buy, sell
	}
	return models.SignalNeutral, neutralConfidence, buy, sell
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
