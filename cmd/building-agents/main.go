// Command building-agents runs the ERNI Gruppe customer service agent API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	buildingagents "github.com/erni-gruppe/building-agents"
	"github.com/erni-gruppe/building-agents/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "building-agents:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	app, err := buildingagents.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Logger.Info("service.starting",
		"addr", cfg.Server.Addr,
		"entry_agent", cfg.EntryAgent,
		"model_provider", cfg.Models.Provider,
	)
	return app.Run(ctx)
}
