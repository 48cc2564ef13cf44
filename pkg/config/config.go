package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Renderer struct {
		FeedURL         string        `yaml:"feed_url"`
		RegionID        string        `yaml:"region_id" default:"signal-container"`
		Timeout         time.Duration `yaml:"timeout" default:"15s"`
		AutoRefresh     bool          `yaml:"auto_refresh" default:"true"`
		RefreshOnStart  bool          `yaml:"refresh_on_start" default:"false"`
		RegionRetention time.Duration `yaml:"region_retention" default:"0s"`
	} `yaml:"renderer"`
	Binance struct {
		BaseURL string        `yaml:"base_url" default:"https://api.binance.com"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"binance"`
	Detector struct {
		QuoteAsset     string        `yaml:"quote_asset" default:"USDT"`
		MinChange      float64       `yaml:"min_change" default:"2"`
		MaxChange      float64       `yaml:"max_change" default:"5"`
		MinQuoteVolume float64       `yaml:"min_quote_volume" default:"500000"`
		EntryFactor    float64       `yaml:"entry_factor" default:"1.001"`
		TargetFactor   float64       `yaml:"target_factor" default:"1.03"`
		StopFactor     float64       `yaml:"stop_factor" default:"0.99"`
		Strength       string        `yaml:"strength" default:"Medium"`
		ScanInterval   time.Duration `yaml:"scan_interval" default:"1m"`
		ScanTimeout    time.Duration `yaml:"scan_timeout" default:"30s"`
	} `yaml:"detector"`
	Cache struct {
		Backend string        `yaml:"backend" default:"memory"`
		FeedTTL time.Duration `yaml:"feed_ttl" default:"30s"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"earlypump"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
	} `yaml:"rate_limit"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"early_pump.signals"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"early-pump-history"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"earlypump"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// FeedPath is the route serving the detected feed; an unset renderer.feed_url points here.
const FeedPath = "/api/early-pump"

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	c, err := withDefaults()
	if err != nil {
		return nil, err
	}
	c.deriveFeedURL()
	return c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.deriveFeedURL()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file and then applies environment overrides.
// A missing YAML file falls back to defaults so the binary runs with env only.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if errors.Is(err, fs.ErrNotExist) {
		c, err = withDefaults()
	}
	if err != nil {
		return nil, err
	}

	applyEnv(c)
	// after PORT so the renderer reads the feed from the port actually served
	c.deriveFeedURL()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func withDefaults() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func parse(path string) (*Config, error) {
	c, err := withDefaults()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) deriveFeedURL() {
	if c.Renderer.FeedURL == "" {
		c.Renderer.FeedURL = fmt.Sprintf("http://127.0.0.1:%d%s", c.Server.Port, FeedPath)
	}
}

func applyEnv(c *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Renderer.FeedURL = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		c.Binance.BaseURL = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Renderer.FeedURL == "" {
		return fmt.Errorf("renderer.feed_url is required")
	}
	if u, err := url.Parse(c.Renderer.FeedURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("renderer.feed_url must be an absolute URL, got '%s'", c.Renderer.FeedURL)
	}
	// POST /api/refresh waits for the feed fetch before it writes its response
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Renderer.Timeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed renderer.timeout (%s)", c.Server.WriteTimeout, c.Renderer.Timeout)
	}
	if c.Renderer.RegionID == "" {
		return fmt.Errorf("renderer.region_id is required")
	}
	if c.Detector.MinChange >= c.Detector.MaxChange {
		return fmt.Errorf("detector.min_change must be below detector.max_change")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("clickhouse history requires kafka to be enabled")
	}
	return nil
}
