// Package config loads the matter-hmi configuration from defaults, an
// optional YAML file and MATTER_HMI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
	"github.com/backkem/matter-hmi/pkg/sim"
	"github.com/pion/logging"
	"github.com/spf13/viper"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// EnvPrefix prefixes environment overrides, e.g. MATTER_HMI_LOG_LEVEL.
const EnvPrefix = "MATTER_HMI"

// Config holds application configuration.
type Config struct {
	LogLevel        string             `mapstructure:"log_level"`
	LocalEndpoint   uint16             `mapstructure:"local_endpoint"`
	BindingCapacity int                `mapstructure:"binding_capacity"`
	QueueSize       int                `mapstructure:"queue_size"`
	BindingsFile    string             `mapstructure:"bindings_file"`
	Subscription    SubscriptionConfig `mapstructure:"subscription"`
	Bindings        []BindingConfig    `mapstructure:"bindings"`
	Simulation      SimulationConfig   `mapstructure:"simulation"`
}

// SubscriptionConfig holds the parameters of the per-peer subscription.
type SubscriptionConfig struct {
	MinInterval       time.Duration `mapstructure:"min_interval"`
	MaxInterval       time.Duration `mapstructure:"max_interval"`
	KeepSubscriptions bool          `mapstructure:"keep_subscriptions"`
	FabricFiltered    bool          `mapstructure:"fabric_filtered"`
}

// BindingConfig is a seed binding, applied when the stored table is empty.
type BindingConfig struct {
	Kind     string `mapstructure:"kind"`
	Fabric   uint8  `mapstructure:"fabric"`
	Node     uint64 `mapstructure:"node"`
	Endpoint uint16 `mapstructure:"endpoint"`
	Group    uint16 `mapstructure:"group"`
	Cluster  string `mapstructure:"cluster"`
}

// SimulationConfig describes the simulated network.
type SimulationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Latency time.Duration `mapstructure:"latency"`
	Jitter  time.Duration `mapstructure:"jitter"`
	Lights  []LightConfig `mapstructure:"lights"`
}

// LightConfig describes one simulated light.
type LightConfig struct {
	Fabric      uint8    `mapstructure:"fabric"`
	Node        uint64   `mapstructure:"node"`
	Endpoint    uint16   `mapstructure:"endpoint"`
	Interface   string   `mapstructure:"interface"`
	Unreachable bool     `mapstructure:"unreachable"`
	On          bool     `mapstructure:"on"`
	Groups      []uint16 `mapstructure:"groups"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("local_endpoint", 1)
	v.SetDefault("binding_capacity", binding.DefaultCapacity)
	v.SetDefault("queue_size", 10)
	v.SetDefault("bindings_file", filepath.Join(os.Getenv("HOME"), ".local", "share", "matter-hmi", "bindings.yaml"))

	v.SetDefault("subscription.min_interval", "0s")
	v.SetDefault("subscription.max_interval", "600s")
	v.SetDefault("subscription.keep_subscriptions", true)
	v.SetDefault("subscription.fabric_filtered", false)

	v.SetDefault("bindings", []map[string]any{
		{"kind": "unicast", "fabric": 1, "node": 1, "endpoint": 1, "cluster": "onoff"},
		{"kind": "unicast", "fabric": 1, "node": 2, "endpoint": 1, "cluster": "onoff"},
		{"kind": "group", "fabric": 1, "group": 1, "cluster": "onoff"},
	})

	v.SetDefault("simulation.enabled", true)
	v.SetDefault("simulation.latency", "20ms")
	v.SetDefault("simulation.jitter", "10ms")
	v.SetDefault("simulation.lights", []map[string]any{
		{"fabric": 1, "node": 1, "endpoint": 1, "interface": "wifi", "groups": []int{1}},
		{"fabric": 1, "node": 2, "endpoint": 1, "interface": "thread", "groups": []int{1}},
		{"fabric": 1, "node": 3, "endpoint": 1, "interface": "ethernet", "unreachable": true},
	})
}

// Load reads configuration from the file at path, or from MATTER_HMI_CONFIG,
// or from ~/.config/matter-hmi/config.yaml if present, and applies
// environment overrides. The result is validated.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "matter-hmi"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file must exist.
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks ranges and that every binding and light parses.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if datamodel.EndpointID(c.LocalEndpoint) == datamodel.EndpointWildcard {
		return fmt.Errorf("%w: local_endpoint cannot be the wildcard endpoint", ErrInvalid)
	}
	if c.BindingCapacity < 1 || c.BindingCapacity > 254 {
		return fmt.Errorf("%w: binding_capacity %d out of range [1, 254]", ErrInvalid, c.BindingCapacity)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalid)
	}
	s := c.Subscription
	if s.MinInterval < 0 || s.MaxInterval <= 0 || s.MinInterval > s.MaxInterval {
		return fmt.Errorf("%w: subscription intervals [%s, %s]", ErrInvalid, s.MinInterval, s.MaxInterval)
	}
	if _, err := c.Entries(); err != nil {
		return err
	}
	if c.Simulation.Enabled {
		for i, l := range c.Simulation.Lights {
			if _, err := l.light(); err != nil {
				return fmt.Errorf("%w: simulation light %d: %v", ErrInvalid, i, err)
			}
			if !l.peer().IsValid() {
				return fmt.Errorf("%w: simulation light %d: invalid peer %s", ErrInvalid, i, l.peer())
			}
		}
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logging.LogLevel {
	l, _ := ParseLogLevel(c.LogLevel)
	return l
}

// ParseLogLevel maps a level name to a pion log level.
func ParseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
}

// Endpoint returns the local endpoint the switch triggers from.
func (c *Config) Endpoint() datamodel.EndpointID {
	return datamodel.EndpointID(c.LocalEndpoint)
}

// SubscribeParams returns the controller subscription parameters.
func (c *Config) SubscribeParams() controller.SubscribeParams {
	return controller.SubscribeParams{
		MinInterval:       c.Subscription.MinInterval,
		MaxInterval:       c.Subscription.MaxInterval,
		KeepSubscriptions: c.Subscription.KeepSubscriptions,
		FabricFiltered:    c.Subscription.FabricFiltered,
	}
}

// Entries converts the seed bindings to binding entries on the local
// endpoint.
func (c *Config) Entries() ([]binding.Entry, error) {
	out := make([]binding.Entry, 0, len(c.Bindings))
	for i, b := range c.Bindings {
		e, err := b.entry(c.Endpoint())
		if err != nil {
			return nil, fmt.Errorf("%w: binding %d: %v", ErrInvalid, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (b BindingConfig) entry(local datamodel.EndpointID) (binding.Entry, error) {
	kind, err := binding.ParseKind(strings.ToLower(b.Kind))
	if err != nil {
		return binding.Entry{}, err
	}
	cluster := datamodel.ClusterID(0x0006)
	if b.Cluster != "" {
		if cluster, err = clusters.ParseCluster(b.Cluster); err != nil {
			return binding.Entry{}, err
		}
	}

	var e binding.Entry
	fi := fabric.FabricIndex(b.Fabric)
	if kind == binding.KindMulticast {
		e = binding.Multicast(fi, fabric.GroupID(b.Group), local, cluster)
	} else {
		ep := datamodel.EndpointID(b.Endpoint)
		if ep == 0 {
			ep = 1
		}
		e = binding.Unicast(fi, fabric.NodeID(b.Node), local, ep, cluster)
	}
	if err := e.Validate(); err != nil {
		return binding.Entry{}, err
	}
	return e, nil
}

func (l LightConfig) peer() fabric.PeerID {
	return fabric.PeerID{FabricIndex: fabric.FabricIndex(l.Fabric), NodeID: fabric.NodeID(l.Node)}
}

func (l LightConfig) light() (sim.LightConfig, error) {
	iface, ok := generaldiagnostics.ParseInterfaceType(l.Interface)
	if !ok {
		return sim.LightConfig{}, fmt.Errorf("unknown interface %q", l.Interface)
	}
	return sim.LightConfig{
		Endpoint:    datamodel.EndpointID(l.Endpoint),
		Interface:   iface,
		Unreachable: l.Unreachable,
		On:          l.On,
	}, nil
}

// BuildNetwork creates the simulated network described by the
// configuration.
func (c *Config) BuildNetwork(loggerFactory logging.LoggerFactory) (*sim.Network, error) {
	n := sim.NewNetwork(sim.Config{
		Latency:       c.Simulation.Latency,
		Jitter:        c.Simulation.Jitter,
		LoggerFactory: loggerFactory,
	})
	for _, l := range c.Simulation.Lights {
		lc, err := l.light()
		if err == nil {
			err = n.AddLight(l.peer(), lc)
		}
		for _, g := range l.Groups {
			if err != nil {
				break
			}
			err = n.AddToGroup(l.peer(), fabric.GroupID(g))
		}
		if err != nil {
			_ = n.Close()
			return nil, fmt.Errorf("config: simulation light %s: %w", l.peer(), err)
		}
	}
	return n, nil
}
