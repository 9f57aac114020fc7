package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
indicators:
  source: http
  service_url: http://indicators:8000
`

func TestParse_AppliesTradingDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 10000.0, c.Paper.InitialBalance)
	assert.Equal(t, 30*time.Second, c.Signals.CacheTTL)
	assert.Equal(t, 5*time.Minute, c.Evolution.IndicatorTTL)
	assert.Equal(t, 0.75, c.Evolution.MaxCorrelation)
	assert.Equal(t, 0.95, c.Evolution.NoveltyDecay)
	assert.Equal(t, 0.8, c.Evolution.EliteThreshold)
	assert.Equal(t, 0.01, c.Router.LearningRate)
	assert.Equal(t, "tradecore.events", c.Kafka.EventsTopic)
	assert.Equal(t, "none", c.Ticks.Backend)
}

func TestParse_RejectsBadIndicatorSource(t *testing.T) {
	_, err := Parse([]byte("environment: test\nindicators:\n  source: carrier-pigeon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indicators.source")
}

func TestParse_LocalIndicatorsNeedClickHouse(t *testing.T) {
	_, err := Parse([]byte("environment: test\nindicators:\n  source: local\n"))
	require.Error(t, err)
}

func TestParse_KafkaTicksNeedKafka(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "ticks:\n  backend: kafka\n"))
	require.Error(t, err)
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("SYMBOLS", "AAPL, MSFT,,TSLA")
	t.Setenv("PAPER_SNAPSHOT_PATH", "/tmp/acct.json")
	t.Setenv("BRAIN_SERVICE_URL", "http://brain")

	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	c.ApplyEnv()

	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, c.Finnhub.Symbols)
	assert.Equal(t, "/tmp/acct.json", c.Paper.SnapshotPath)
	assert.Equal(t, "http://brain", c.Brain.ServiceURL)
}

func TestParse_CustomSegments(t *testing.T) {
	c, err := Parse([]byte(minimalYAML + `
evolution:
  segments:
    - name: rate_shock
      days: 20
      win_rate_shift: -0.1
      loss_multiplier: 1.8
`))
	require.NoError(t, err)
	require.Len(t, c.Evolution.Segments, 1)
	assert.Equal(t, "rate_shock", c.Evolution.Segments[0].Name)
	assert.Equal(t, -0.1, c.Evolution.Segments[0].WinRateShift)
	assert.Equal(t, 1.8, c.Evolution.Segments[0].LossMultiplier)
	assert.Equal(t, 1.0, c.Evolution.Segments[0].WinMultiplier)
	assert.Equal(t, 1.0, c.Evolution.Segments[0].TradeFrequency)
}
