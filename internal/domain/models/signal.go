package models

import "time"

// SignalSide is the direction of a technical verdict.
type SignalSide string

const (
	SignalBuy     SignalSide = "buy"
	SignalSell    SignalSide = "sell"
	SignalNeutral SignalSide = "neutral"
)

// SignalStatus tags how a CompositeSignal was produced.
type SignalStatus string

const (
	SignalComputed SignalStatus = "computed"
	SignalCached   SignalStatus = "cached"
	SignalDegraded SignalStatus = "degraded"
)

// Indicators is the raw reading set returned by the Indicator Service.
// Nil sections mean the collaborator had no value for that indicator.
type Indicators struct {
	Price     float64         `json:"price"`
	RSI       *float64        `json:"rsi,omitempty"`
	MACD      *MACDValue      `json:"macd,omitempty"`
	Bollinger *BollingerBands `json:"bollinger,omitempty"`
	Volume    *VolumeStats    `json:"volume,omitempty"`
	Averages  *MovingAverages `json:"averages,omitempty"`
}

type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

type VolumeStats struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
}

// MovingAverages holds the pairs used for the trend vote. Zero means unavailable.
type MovingAverages struct {
	EMA12  float64 `json:"ema12"`
	EMA26  float64 `json:"ema26"`
	SMA20  float64 `json:"sma20"`
	SMA50  float64 `json:"sma50"`
	SMA200 float64 `json:"sma200"`
}

// Regime is the trend x volatility label from the regime classifier.
type Regime struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	State      string    `json:"regime"`
	Confidence float64   `json:"confidence"`
}

// IndicatorSignal is the verdict of one indicator rule.
type IndicatorSignal struct {
	Signal     SignalSide `json:"signal"`
	Confidence float64    `json:"confidence"`
	Value      float64    `json:"value"`
	Strength   string     `json:"strength,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// CompositeSignal is the fused verdict across all indicator rules.
type CompositeSignal struct {
	Symbol           string                     `json:"symbol"`
	Timeframe        string                     `json:"timeframe"`
	Signal           SignalSide                 `json:"signal"`
	Confidence       float64                    `json:"confidence"`
	BuyScore         float64                    `json:"buyScore"`
	SellScore        float64                    `json:"sellScore"`
	Regime           string                     `json:"regime"`
	RegimeMultiplier float64                    `json:"regimeMultiplier"`
	Indicators       map[string]IndicatorSignal `json:"indicators,omitempty"`
	Reason           string                     `json:"reason,omitempty"`
	Status           SignalStatus               `json:"status"`
	Timestamp        time.Time                  `json:"timestamp"`
}

// Degraded reports whether the signal was produced without indicator data.
func (s CompositeSignal) Degraded() bool { return s.Status == SignalDegraded }

// Candle represents an OHLCV record used by the local indicator calculator.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Tick is a single trade print from the market stream.
type Tick struct {
	Symbol    string
	Timestamp int64
	Price     float64
	Volume    float64
}

// Ticker is the latest reference price for a symbol.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Timestamp time.Time `json:"timestamp"`
}
