package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\nfeed:\n  symbols: [btcusdt, ethusdt]\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 || c.Analytics.Timeframe != "1m" || c.Analytics.RollingWindow != 20 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.Analytics.Interval != 100*time.Millisecond || c.Alerts.Interval != 500*time.Millisecond {
		t.Fatalf("intervals = %v %v", c.Analytics.Interval, c.Alerts.Interval)
	}
	if c.Store.TickCapacity != 10000 || c.Store.BarCapacity != 500 || c.Feed.Mode != "binance" {
		t.Fatalf("store/feed defaults: %+v %+v", c.Store, c.Feed)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"one symbol":    "feed:\n  symbols: [btcusdt]\n",
		"bad mode":      "feed:\n  mode: ftp\n  symbols: [a, b]\n",
		"bad timeframe": "feed:\n  symbols: [a, b]\nanalytics:\n  timeframe: 2m\n",
		"window":        "feed:\n  symbols: [a, b]\nanalytics:\n  rolling_window: 101\n",
		"no brokers":    "feed:\n  symbols: [a, b]\nkafka:\n  enabled: true\n",
		"loop": "feed:\n  symbols: [a, b]\nkafka:\n  enabled: true\n  brokers: [k:9092]\n" +
			"  topics:\n    ticks: same\n  consumer:\n    enabled: true\n    topic: same\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	c, err := parse(writeConfig(t, "feed:\n  symbols: [a, b]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := map[string]string{
		"SYMBOLS":       " SOLUSDT, bnbusdt ,",
		"FEED_MODE":     "RELAY",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"REDIS_ADDR":    "redis:6379",
		"HTTP_PORT":     "9000",
		"LOG_LEVEL":     "DEBUG",
	}
	c.applyEnv(func(k string) string { return env[k] })

	if strings.Join(c.Feed.Symbols, ",") != "SOLUSDT,bnbusdt" || c.Feed.Mode != "relay" {
		t.Fatalf("feed = %+v", c.Feed)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 || !c.Redis.Enabled || c.Redis.Addr != "redis:6379" {
		t.Fatalf("kafka/redis = %+v %+v", c.Kafka.Brokers, c.Redis)
	}
	if c.Server.Port != 9000 || c.Logging.Level != "debug" {
		t.Fatalf("port=%d level=%s", c.Server.Port, c.Logging.Level)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadWithEnvReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("HTTP_PORT=9191\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("HTTP_PORT", "")
	os.Unsetenv("HTTP_PORT")

	c, err := LoadWithEnv(writeConfig(t, "feed:\n  symbols: [a, b]\n"), envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9191 {
		t.Fatalf("port = %d", c.Server.Port)
	}
}
