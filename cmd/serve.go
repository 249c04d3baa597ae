package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"ai-orchestra/internal/config"
	"ai-orchestra/internal/logging"
	"ai-orchestra/internal/orchestrator"
	"ai-orchestra/internal/provider"
	providerfactory "ai-orchestra/internal/provider/factory"
	"ai-orchestra/internal/server"
)

const serveUsage = `Usage:
  ai-orchestra serve [--config <path>] [--port <port>] [--log-level <level>]

Flags:
  --config    string   Path to YAML configuration file (optional, defaults apply)
  --port      int      Override server port from configuration
  --log-level string   Log level: trace, debug, info, warn, error (default info)`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	var logLevel string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")
	fs.StringVar(&logLevel, "log-level", "info", "log level")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	log := logging.New(logLevel)

	registry := provider.NewRegistry()
	if err := providerfactory.RegisterConfiguredProviders(cfg, registry); err != nil {
		return err
	}

	orch := orchestrator.New(cfg, registry, log)

	srv, err := server.New(cfg, orch, log)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
