package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/wabridge/internal/gateway"
	"github.com/danmuck/wabridge/internal/logging"
	"github.com/danmuck/wabridge/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to wabridge TOML config (defaults when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("wabridge")

	cfg := gateway.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wabridge: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	log.Info().Str("config", *configPath).Str("listen", cfg.ListenAddr).Msg("wabridge_starting")

	svc := gateway.NewService(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wabridge: %v\n", err)
		os.Exit(1)
	}
}
