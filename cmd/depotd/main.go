// depotd is the warehouse tracking daemon.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvasst/depot/internal/config"
	"github.com/kvasst/depot/internal/logging"
	"github.com/kvasst/depot/internal/server"
	"github.com/kvasst/depot/internal/storage"
	"github.com/kvasst/depot/internal/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "depot.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "log in JSON format")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.DefaultConfig()
		} else {
			slog.Error("load config", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	// Env then CLI overrides, CLI winning.
	cfg.ApplyEnv()
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logJSON {
		cfg.Logging.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		slog.Error("invalid log level", "level", cfg.Logging.Level)
		os.Exit(1)
	}
	logging.Init(level, cfg.Logging.JSON)

	log := logging.Component("depotd")
	log.Info("starting", "version", Version, "data_dir", cfg.Storage.DataDir)

	engine, err := storage.New(cfg, nil)
	if err != nil {
		log.Error("create engine", "error", err)
		os.Exit(1)
	}
	if err := engine.Load(); err != nil {
		log.Error("load data", "error", err)
		os.Exit(1)
	}
	if err := engine.Start(); err != nil {
		log.Error("start engine", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, engine, warehouse.New(engine))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error("server", "error", err)
	}

	if err := engine.Stop(); err != nil {
		log.Error("engine shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
