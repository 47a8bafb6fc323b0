package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/bridgectl/internal/bridged"
	"github.com/danmuck/bridgectl/internal/logging"
	"github.com/danmuck/bridgectl/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to bridged config.toml (defaults apply when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("bridged")

	cfg := bridged.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := bridged.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
		os.Exit(1)
	}
}
