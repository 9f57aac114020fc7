package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps"`
		RateLimitBurst  int           `yaml:"rate_limit_burst"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		// CollectTopic enables error aggregation onto the event stream.
		CollectTopic string `yaml:"collect_topic"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Paper struct {
		SnapshotPath   string        `yaml:"snapshot_path"`
		InitialBalance float64       `yaml:"initial_balance"`
		SymbolLock     bool          `yaml:"symbol_lock"`
		LockTTL        time.Duration `yaml:"lock_ttl"`
		PriceTimeout   time.Duration `yaml:"price_timeout"`
	} `yaml:"paper"`
	Signals struct {
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		SweepInterval  time.Duration `yaml:"sweep_interval"`
		IndicatorCount int           `yaml:"indicator_count"`
		SharedCache    bool          `yaml:"shared_cache"`
	} `yaml:"signals"`
	Router struct {
		Seed         int64   `yaml:"seed"`
		LearningRate float64 `yaml:"learning_rate"`
	} `yaml:"router"`
	Evolution struct {
		IndicatorTTL     time.Duration `yaml:"indicator_ttl"`
		MaxCorrelation   float64       `yaml:"max_correlation"`
		NoveltyDecay     float64       `yaml:"novelty_decay"`
		EliteThreshold   float64       `yaml:"elite_threshold"`
		NoveltyMaxSize   int           `yaml:"novelty_max_size"`
		CleanupInterval  time.Duration `yaml:"cleanup_interval"`
		QueueName        string        `yaml:"queue_name"`
		QueueConcurrency int           `yaml:"queue_concurrency"`
		// Segments replaces the built-in adversarial stress segments when set.
		Segments []struct {
			Name           string  `yaml:"name"`
			Days           int     `yaml:"days"`
			WinRateShift   float64 `yaml:"win_rate_shift"`
			WinMultiplier  float64 `yaml:"win_multiplier"`
			LossMultiplier float64 `yaml:"loss_multiplier"`
			TradeFrequency float64 `yaml:"trade_frequency"`
		} `yaml:"segments"`
	} `yaml:"evolution"`
	Indicators struct {
		// Source is "http" (remote indicator service) or "local" (ClickHouse candles + talib).
		Source     string        `yaml:"source"`
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
		RPS        float64       `yaml:"rps"`
	} `yaml:"indicators"`
	Brain struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"brain"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		RestURL        string        `yaml:"rest_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxPriceAge    time.Duration `yaml:"max_price_age"`
	} `yaml:"finnhub"`
	Ticks struct {
		// Backend is "kafka", "clickhouse" or "none".
		Backend    string `yaml:"backend"`
		BufferSize int    `yaml:"buffer_size"`
		MaxRPS     int    `yaml:"max_rps"`
	} `yaml:"ticks"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		TicksTopic    string   `yaml:"ticks_topic"`
		EventsTopic   string   `yaml:"events_topic"`
		OutcomesTopic string   `yaml:"outcomes_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		AutoCreate    bool     `yaml:"auto_create_topics"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id"`
			OffsetReset string        `yaml:"auto_offset_reset"`
			Workers     int           `yaml:"workers"`
			BufferSize  int           `yaml:"buffer_size"`
			RetryMax    int           `yaml:"retry_max"`
			BackoffMin  time.Duration `yaml:"backoff_min"`
			BackoffMax  time.Duration `yaml:"backoff_max"`
			DLQTopic    string        `yaml:"dlq_topic"`
			MinBytes    int           `yaml:"min_bytes"`
			MaxBytes    int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), then YAML, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TRADECORE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("PAPER_SNAPSHOT_PATH"); v != "" {
		c.Paper.SnapshotPath = v
	}
	if v := os.Getenv("INDICATOR_SERVICE_URL"); v != "" {
		c.Indicators.ServiceURL = v
	}
	if v := os.Getenv("BRAIN_SERVICE_URL"); v != "" {
		c.Brain.ServiceURL = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyDefaults fills zero values with the trading defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Paper.SnapshotPath == "" {
		c.Paper.SnapshotPath = "data/paper_account.json"
	}
	if c.Paper.InitialBalance == 0 {
		c.Paper.InitialBalance = 10000
	}
	if c.Paper.LockTTL == 0 {
		c.Paper.LockTTL = 10 * time.Second
	}
	if c.Paper.PriceTimeout == 0 {
		c.Paper.PriceTimeout = 5 * time.Second
	}
	if c.Signals.CacheTTL == 0 {
		c.Signals.CacheTTL = 30 * time.Second
	}
	if c.Signals.SweepInterval == 0 {
		c.Signals.SweepInterval = time.Minute
	}
	if c.Signals.IndicatorCount == 0 {
		c.Signals.IndicatorCount = 200
	}
	if c.Router.LearningRate == 0 {
		c.Router.LearningRate = 0.01
	}
	if c.Evolution.IndicatorTTL == 0 {
		c.Evolution.IndicatorTTL = 5 * time.Minute
	}
	if c.Evolution.MaxCorrelation == 0 {
		c.Evolution.MaxCorrelation = 0.75
	}
	if c.Evolution.NoveltyDecay == 0 {
		c.Evolution.NoveltyDecay = 0.95
	}
	if c.Evolution.EliteThreshold == 0 {
		c.Evolution.EliteThreshold = 0.8
	}
	if c.Evolution.NoveltyMaxSize == 0 {
		c.Evolution.NoveltyMaxSize = 1000
	}
	if c.Evolution.CleanupInterval == 0 {
		c.Evolution.CleanupInterval = 10 * time.Minute
	}
	if c.Evolution.QueueName == "" {
		c.Evolution.QueueName = "evolution"
	}
	if c.Evolution.QueueConcurrency == 0 {
		c.Evolution.QueueConcurrency = 2
	}
	for i := range c.Evolution.Segments {
		seg := &c.Evolution.Segments[i]
		for _, m := range []*float64{&seg.WinMultiplier, &seg.LossMultiplier, &seg.TradeFrequency} {
			if *m == 0 {
				*m = 1
			}
		}
	}
	if c.Indicators.Source == "" {
		c.Indicators.Source = "http"
	}
	if c.Indicators.Timeout == 0 {
		c.Indicators.Timeout = 10 * time.Second
	}
	if c.Brain.Timeout == 0 {
		c.Brain.Timeout = 15 * time.Second
	}
	if c.Finnhub.WebSocketURL == "" {
		c.Finnhub.WebSocketURL = "wss://ws.finnhub.io"
	}
	if c.Finnhub.RestURL == "" {
		c.Finnhub.RestURL = "https://finnhub.io/api/v1"
	}
	if c.Finnhub.ReconnectDelay == 0 {
		c.Finnhub.ReconnectDelay = 5 * time.Second
	}
	if c.Finnhub.PingInterval == 0 {
		c.Finnhub.PingInterval = 30 * time.Second
	}
	if c.Finnhub.MaxPriceAge == 0 {
		c.Finnhub.MaxPriceAge = time.Minute
	}
	if c.Ticks.Backend == "" {
		c.Ticks.Backend = "none"
	}
	if c.Ticks.BufferSize == 0 {
		c.Ticks.BufferSize = 2000
	}
	if c.Ticks.MaxRPS == 0 {
		c.Ticks.MaxRPS = 50
	}
	if c.Kafka.TicksTopic == "" {
		c.Kafka.TicksTopic = "tradecore.ticks"
	}
	if c.Kafka.EventsTopic == "" {
		c.Kafka.EventsTopic = "tradecore.events"
	}
	if c.Kafka.OutcomesTopic == "" {
		c.Kafka.OutcomesTopic = "tradecore.outcomes"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "tradecore"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "tradecore"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Paper.InitialBalance <= 0 {
		return fmt.Errorf("paper.initial_balance must be positive")
	}
	if c.Evolution.MaxCorrelation <= 0 || c.Evolution.MaxCorrelation > 1 {
		return fmt.Errorf("evolution.max_correlation must be in (0,1], got %v", c.Evolution.MaxCorrelation)
	}
	if c.Evolution.NoveltyDecay <= 0 || c.Evolution.NoveltyDecay > 1 {
		return fmt.Errorf("evolution.novelty_decay must be in (0,1], got %v", c.Evolution.NoveltyDecay)
	}
	switch c.Indicators.Source {
	case "http":
		if c.Indicators.ServiceURL == "" {
			return fmt.Errorf("indicators.service_url is required for source 'http'")
		}
	case "local":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("indicators.source 'local' needs clickhouse.enabled")
		}
	default:
		return fmt.Errorf("indicators.source must be 'http' or 'local', got '%s'", c.Indicators.Source)
	}
	switch c.Ticks.Backend {
	case "none":
	case "kafka":
		if !c.Kafka.Enabled {
			return fmt.Errorf("ticks.backend 'kafka' needs kafka.enabled")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("ticks.backend 'clickhouse' needs clickhouse.enabled")
		}
	default:
		return fmt.Errorf("ticks.backend must be 'kafka', 'clickhouse' or 'none', got '%s'", c.Ticks.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
