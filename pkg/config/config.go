package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Market struct {
		IndexSymbol string `yaml:"index_symbol"`
		FxPair      string `yaml:"fx_pair"`
		FxSource    string `yaml:"fx_source"`
	} `yaml:"market"`
	Backtest struct {
		Window          int     `yaml:"window"`
		MinObs          int     `yaml:"min_obs"`
		TopN            int     `yaml:"top_n"`
		Workers         int     `yaml:"workers"`
		FillPolicy      string  `yaml:"fill_policy"`
		MaxGap          int     `yaml:"max_gap"`
		ResidualCeiling float64 `yaml:"residual_ceiling"`
		RiskFreeRate    float64 `yaml:"risk_free_rate"`
		PeriodsPerYear  float64 `yaml:"periods_per_year"`
	} `yaml:"backtest"`
	Ingest struct {
		BaseURL        string        `yaml:"base_url"`
		Token          string        `yaml:"token"`
		RequestDelay   time.Duration `yaml:"request_delay"`
		Jitter         time.Duration `yaml:"jitter"`
		MaxRetries     int           `yaml:"max_retries"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"ingest"`
	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
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
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		BarTTL     time.Duration `yaml:"bar_ttl"`
		HistoryTTL time.Duration `yaml:"history_ttl"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("INGEST_TOKEN"); v != "" {
		c.Ingest.Token = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("MARKET_INDEX"); v != "" {
		c.Market.IndexSymbol = v
	}
	if v := os.Getenv("FX_PAIR"); v != "" {
		c.Market.FxPair = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Market.IndexSymbol == "" {
		c.Market.IndexSymbol = "NGXASI"
	}
	if c.Market.FxPair == "" {
		c.Market.FxPair = "USDNGN"
	}
	if c.Backtest.Window == 0 {
		c.Backtest.Window = 90
	}
	if c.Backtest.MinObs == 0 {
		c.Backtest.MinObs = 60
	}
	if c.Backtest.TopN == 0 {
		c.Backtest.TopN = 5
	}
	if c.Backtest.FillPolicy == "" {
		c.Backtest.FillPolicy = "none"
	}
	if c.Backtest.PeriodsPerYear == 0 {
		c.Backtest.PeriodsPerYear = 252
	}
	if c.Cache.BarTTL == 0 {
		c.Cache.BarTTL = 15 * time.Minute
	}
	if c.Cache.HistoryTTL == 0 {
		c.Cache.HistoryTTL = time.Minute
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "ngxquant"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Backtest.Window < 2 {
		return fmt.Errorf("backtest.window must be at least 2, got %d", c.Backtest.Window)
	}
	if c.Backtest.MinObs < 4 {
		return fmt.Errorf("backtest.min_obs must be at least 4, got %d", c.Backtest.MinObs)
	}
	if c.Backtest.MinObs > c.Backtest.Window {
		return fmt.Errorf("backtest.min_obs %d exceeds window %d", c.Backtest.MinObs, c.Backtest.Window)
	}
	switch c.Backtest.FillPolicy {
	case "none", "forward", "fail":
	default:
		return fmt.Errorf("backtest.fill_policy must be 'none', 'forward' or 'fail', got '%s'", c.Backtest.FillPolicy)
	}
	return nil
}
