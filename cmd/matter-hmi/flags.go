package main

import (
	"flag"

	"github.com/backkem/matter-hmi/internal/config"
)

// options holds the command line flags.
type options struct {
	// configPath names the configuration file. Empty means the default
	// search locations.
	configPath string

	// logLevel overrides the configured log level when set.
	logLevel string

	// noShell runs without the interactive shell until interrupted.
	noShell bool
}

// parseFlags parses the command line:
//
//	-config     configuration file (default: $MATTER_HMI_CONFIG or ~/.config/matter-hmi/config.yaml)
//	-log-level  disabled, error, warn, info, debug or trace
//	-no-shell   run without the interactive shell
func parseFlags() options {
	o := options{}

	flag.StringVar(&o.configPath, "config", "", "configuration file")
	flag.Func("log-level", "log level (disabled, error, warn, info, debug, trace)", func(s string) error {
		if _, err := config.ParseLogLevel(s); err != nil {
			return err
		}
		o.logLevel = s
		return nil
	})
	flag.BoolVar(&o.noShell, "no-shell", false, "run without the interactive shell")

	flag.Parse()
	return o
}
