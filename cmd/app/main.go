package main

import (
	"flag"
	"log"
	"os"

	"TradeCore/internal/di"
	"TradeCore/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s indicators=%s ticks=%s kafka=%t clickhouse=%t redis=%t",
		cfg.Environment, cfg.Indicators.Source, cfg.Ticks.Backend,
		cfg.Kafka.Enabled, cfg.ClickHouse.Enabled, cfg.Redis.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
