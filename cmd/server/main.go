package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gowvp/dayflow/internal/app"
	"github.com/gowvp/dayflow/internal/conf"
)

var buildVersion = "0.0.1"

var (
	configPath = flag.String("conf", "configs/config.toml", "config file path")
	debug      = flag.Bool("debug", false, "enable debug log and gin debug mode")
)

func main() {
	flag.Parse()

	bc, err := conf.SetupConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	bc.Debug = *debug || bc.Server.Debug
	bc.Server.Debug = bc.Debug
	bc.BuildVersion = buildVersion

	_, cleanup, err := app.SetupLog(&bc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup log:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("dayflow starting", "config", bc.ConfigPath, "provider", bc.Analysis.Provider, "storage", bc.Server.Storage.Dir)
	if err := app.Run(ctx, &bc); err != nil {
		slog.Error("dayflow exited", "err", err)
		cleanup()
		os.Exit(1)
	}
	slog.Info("dayflow stopped")
}
