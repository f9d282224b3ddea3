package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"PairFlow/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout" validate:"oneof=stdout stderr"`
		Panel  struct {
			Capacity      int           `yaml:"capacity" default:"100" validate:"gte=1"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"5s"`
		} `yaml:"panel"`
	} `yaml:"logging"`
	Feed struct {
		URL              string        `yaml:"url" default:"wss://stream.binance.com:9443/ws"`
		Mode             string        `yaml:"mode" default:"binance" validate:"oneof=binance relay"`
		Symbols          []string      `yaml:"symbols" validate:"min=2,dive,required"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"15s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		InitialBackoff   time.Duration `yaml:"initial_backoff" default:"1s"`
		MaxBackoff       time.Duration `yaml:"max_backoff" default:"30s"`
		BufferSize       int           `yaml:"buffer_size" default:"1024" validate:"gte=1"`
		PipelineQueue    int           `yaml:"pipeline_queue" default:"1024" validate:"gte=1"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" default:"10s"`
	} `yaml:"feed"`
	Store struct {
		TickCapacity int `yaml:"tick_capacity" default:"10000"`
		BarCapacity  int `yaml:"bar_capacity" default:"500"`
	} `yaml:"store"`
	Analytics struct {
		Timeframe     string        `yaml:"timeframe" default:"1m"`
		RollingWindow int           `yaml:"rolling_window" default:"20"`
		Interval      time.Duration `yaml:"interval" default:"100ms"`
	} `yaml:"analytics"`
	Alerts struct {
		Interval         time.Duration `yaml:"interval" default:"500ms"`
		Throttle         time.Duration `yaml:"throttle" default:"1s"`
		MaxNotifications int           `yaml:"max_notifications" default:"50" validate:"gte=1"`
	} `yaml:"alerts"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"1"`
	} `yaml:"rate_limit"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pairflow"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Topics       struct {
			Ticks  string `yaml:"ticks" default:"pairflow.ticks"`
			Bars   string `yaml:"bars" default:"pairflow.bars"`
			Alerts string `yaml:"alerts" default:"pairflow.alerts"`
			Logs   string `yaml:"logs" default:"pairflow.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled     bool          `yaml:"enabled"`
			Topic       string        `yaml:"topic" default:"pairflow.relay.ticks"`
			GroupID     string        `yaml:"group_id" default:"pairflow"`
			Workers     int           `yaml:"workers" default:"4"`
			BufferSize  int           `yaml:"buffer_size" default:"256"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic    string        `yaml:"dlq_topic"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
			StartOffset string        `yaml:"start_offset" default:"latest" validate:"oneof=latest earliest"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads a .env file when present, reads config from YAML and
// overrides it with environment variables.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = util.SplitList(v)
	}
	if v := getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := getenv("FEED_MODE"); v != "" {
		c.Feed.Mode = strings.ToLower(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Analytics.Timeframe {
	case "1s", "1m", "5m":
	default:
		return fmt.Errorf("analytics.timeframe must be one of 1s, 1m, 5m, got '%s'", c.Analytics.Timeframe)
	}
	if c.Analytics.RollingWindow < 5 || c.Analytics.RollingWindow > 100 {
		return fmt.Errorf("analytics.rolling_window must be in [5,100], got %d", c.Analytics.RollingWindow)
	}
	if c.Analytics.Interval <= 0 || c.Alerts.Interval <= 0 || c.Alerts.Throttle <= 0 {
		return fmt.Errorf("analytics and alert intervals must be positive")
	}
	if c.Store.TickCapacity <= 0 || c.Store.BarCapacity <= 0 {
		return fmt.Errorf("store capacities must be positive")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Consumer.Enabled && c.Kafka.Consumer.Topic == c.Kafka.Topics.Ticks {
			return fmt.Errorf("kafka.consumer.topic must differ from kafka.topics.ticks")
		}
	}
	return nil
}
