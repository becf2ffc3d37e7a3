// Package app assembles a matter-hmi instance from its configuration.
package app

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-hmi/internal/config"
	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/hmi"
	"github.com/backkem/matter-hmi/pkg/sim"
	"github.com/backkem/matter-hmi/pkg/worker"
	"github.com/pion/logging"
)

// ErrNoNetwork is returned when simulation is disabled and no connector
// or transport was supplied.
var ErrNoNetwork = errors.New("app: no connector or transport configured")

// Options configures an App.
type Options struct {
	Config config.Config

	// Connector and Transport replace the simulated network. Both must be
	// set when simulation is disabled.
	Connector controller.Connector
	Transport controller.Transport

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// App holds the wired components. Fields are valid after New.
type App struct {
	Table      *binding.Table
	Store      binding.Store
	Worker     *worker.Worker
	Network    *sim.Network
	Controller *controller.Controller
	Devices    *hmi.DeviceTable

	log logging.LeveledLogger
}

// New builds every component without starting any of them, except the
// simulated network, which delivers from its own goroutine.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	a := &App{}
	if opts.LoggerFactory != nil {
		a.log = opts.LoggerFactory.NewLogger("app")
	}

	connector, transport := opts.Connector, opts.Transport
	if cfg.Simulation.Enabled && (connector == nil || transport == nil) {
		n, err := cfg.BuildNetwork(opts.LoggerFactory)
		if err != nil {
			return nil, err
		}
		a.Network = n
		connector, transport = n, n
	}
	if connector == nil || transport == nil {
		return nil, ErrNoNetwork
	}

	a.Table = binding.NewTable(binding.TableConfig{
		Capacity:      cfg.BindingCapacity,
		LoggerFactory: opts.LoggerFactory,
	})
	if cfg.BindingsFile != "" {
		a.Store = binding.NewFileStore(cfg.BindingsFile)
	}
	a.Worker = worker.New(worker.Config{
		QueueSize:     cfg.QueueSize,
		LoggerFactory: opts.LoggerFactory,
	})
	a.Devices = hmi.NewDeviceTable(hmi.Config{LoggerFactory: opts.LoggerFactory})

	ctrl, err := controller.New(controller.Config{
		Table:         a.Table,
		Worker:        a.Worker,
		Connector:     connector,
		Transport:     transport,
		Listener:      a.Devices,
		Subscribe:     cfg.SubscribeParams(),
		LoggerFactory: opts.LoggerFactory,
	})
	if err != nil {
		a.closeNetwork()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.Controller = ctrl
	return a, nil
}

// Start fills the binding table and starts the worker.
//
// Stored bindings win. When the store is empty or absent the configured
// seed bindings are added and written back to the store.
func (a *App) Start(cfg config.Config) error {
	if err := a.restore(cfg); err != nil {
		return err
	}
	if err := a.Worker.Start(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if a.log != nil {
		a.log.Infof("started with %d binding(s)", a.Table.Size())
	}
	return nil
}

func (a *App) restore(cfg config.Config) error {
	var stored []binding.Entry
	if a.Store != nil {
		entries, err := a.Store.Load()
		if err != nil {
			return fmt.Errorf("app: load bindings: %w", err)
		}
		stored = entries
	}

	if len(stored) > 0 {
		n, err := binding.Restore(a.Table, stored)
		if err != nil && a.log != nil {
			a.log.Warnf("restored %d of %d stored binding(s): %v", n, len(stored), err)
		}
		return nil
	}

	seeds, err := cfg.Entries()
	if err != nil {
		return err
	}
	if n, err := binding.Restore(a.Table, seeds); err != nil && a.log != nil {
		a.log.Warnf("added %d of %d seed binding(s): %v", n, len(seeds), err)
	}
	if a.Store != nil && a.Table.Size() > 0 {
		if err := a.Store.Save(a.Table.Entries()); err != nil {
			return fmt.Errorf("app: save bindings: %w", err)
		}
	}
	return nil
}

// Stop stops the worker, closes the controller and then the network.
func (a *App) Stop() error {
	a.Worker.Stop()
	err := a.Controller.Close()
	a.closeNetwork()
	if a.log != nil {
		a.log.Info("stopped")
	}
	return err
}

func (a *App) closeNetwork() {
	if a.Network != nil {
		_ = a.Network.Close()
	}
}
