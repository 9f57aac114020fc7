package features

import (
	"math"
	"testing"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"

	"github.com/stretchr/testify/assert"
)

func TestComputeLogReturns(t *testing.T) {
	candles := []models.Candle{{Close: 100}, {Close: 110}, {Close: 0}, {Close: 121}}
	r := ComputeLogReturns(candles)
	assert.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Zero(t, r[1])
	assert.Zero(t, r[2])
	assert.Nil(t, ComputeLogReturns(candles[:1]))
}

func TestRealizedVolatility(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	assert.InDelta(t, 0, RealizedVolatility(flat, 4, 252), 1e-9)

	alt := []float64{0.01, -0.01, 0.01, -0.01}
	// sample variance = 4*0.0001/3
	want := math.Sqrt(0.0004 / 3 * 252)
	assert.InDelta(t, want, RealizedVolatility(alt, 4, 252), 1e-12)

	assert.Zero(t, RealizedVolatility(alt, 5, 252))
}

func TestBarsPerYear(t *testing.T) {
	assert.Equal(t, float64(365*24), BarsPerYear(repository.TF1h))
	assert.Equal(t, float64(365), BarsPerYear(repository.TF1d))
	assert.Equal(t, float64(365*24), BarsPerYear(repository.Timeframe("bogus")))
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 0.1, Slope([]float64{100, 105, 110}, 2), 1e-12)
	assert.Zero(t, Slope([]float64{1}, 1))
}
