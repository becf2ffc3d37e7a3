// matter-hmi is a Matter light switch with an interactive shell.
//
// It drives the lights in its binding table through unicast On/Off
// commands and group casts, and follows their state through subscriptions.
// By default the lights live on a simulated network described by the
// configuration file.
//
// Usage:
//
//	matter-hmi [options]
//
// Example:
//
//	matter-hmi -config ./hmi.yaml -log-level debug
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/matter-hmi/internal/app"
	"github.com/backkem/matter-hmi/internal/config"
	"github.com/backkem/matter-hmi/internal/shell"
	"github.com/pion/logging"
)

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logs := shell.NewLogWriter(os.Stderr)
	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.Writer = logs
	loggerFactory.DefaultLogLevel = cfg.Level()

	a, err := app.New(app.Options{Config: cfg, LoggerFactory: loggerFactory})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	if err := a.Start(cfg); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.noShell {
		<-ctx.Done()
	} else {
		sh, err := shell.New(shell.Config{
			Controller:    a.Controller,
			Devices:       a.Devices,
			LocalEndpoint: cfg.Endpoint(),
			Store:         a.Store,
			Network:       a.Network,
			Logs:          logs,
			LoggerFactory: loggerFactory,
		})
		if err != nil {
			_ = a.Stop()
			log.Fatalf("Failed to create shell: %v", err)
		}
		if err := sh.Run(ctx, stop); err != nil {
			log.Printf("Shell error: %v", err)
		}
	}

	log.Println("Shutting down...")
	if err := a.Stop(); err != nil {
		log.Fatalf("Stop error: %v", err)
	}
}
