package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"PairFlow/internal/di"
	"PairFlow/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Printf("pairflow: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "dotenv file, skipped when missing")
	checkOnly := flag.Bool("check", false, "validate configuration and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath, *envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Printf("config ok: feed=%s symbols=%v http=:%d kafka=%t redis=%t\n",
			cfg.Feed.URL, cfg.Feed.Symbols, cfg.Server.Port, cfg.Kafka.Enabled, cfg.Redis.Enabled)
		return nil
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return app.Run()
}
