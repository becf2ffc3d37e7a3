// Package shell is the interactive command line of matter-hmi.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/hmi"
	"github.com/backkem/matter-hmi/pkg/sim"
	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Controller is the part of *controller.Controller the shell drives.
type Controller interface {
	RequestAction(req controller.Request) error
	Bind(ctx context.Context, e binding.Entry) (binding.PeerIndex, error)
	Unbind(ctx context.Context, p binding.PeerIndex) error
	FactoryReset(ctx context.Context) error
	Snapshot(ctx context.Context) ([]controller.PeerStatus, error)
}

// Config configures a Shell.
type Config struct {
	// Controller is required.
	Controller Controller

	// Devices is the device table shown by "devices". Required.
	Devices *hmi.DeviceTable

	// LocalEndpoint is the endpoint switch commands trigger from.
	LocalEndpoint datamodel.EndpointID

	// Store persists the table after bind, unbind and factory reset.
	// Optional.
	Store binding.Store

	// Network enables the "sim" commands. Optional.
	Network *sim.Network

	// Logs is toggled by the "logs" command. Optional.
	Logs *LogWriter

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Shell executes commands against the controller.
type Shell struct {
	ctrl    Controller
	devices *hmi.DeviceTable
	local   datamodel.EndpointID
	store   binding.Store
	network *sim.Network
	logs    *LogWriter
	newID   func() string
	log     logging.LeveledLogger
}

// New creates a shell.
func New(config Config) (*Shell, error) {
	if config.Controller == nil || config.Devices == nil {
		return nil, errors.New("shell: controller and device table are required")
	}
	s := &Shell{
		ctrl:    config.Controller,
		devices: config.Devices,
		local:   config.LocalEndpoint,
		store:   config.Store,
		network: config.Network,
		logs:    config.Logs,
		newID:   uuid.NewString,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("shell")
	}
	return s, nil
}

// Run reads commands until quit, EOF or ctx is done. Log output is routed
// through the readline writer so it does not clobber the prompt.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hmi> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return fmt.Errorf("shell: failed to create readline: %w", err)
	}
	defer rl.Close()

	if s.logs != nil {
		s.logs.SetOutput(rl.Stdout())
		defer s.logs.SetOutput(nil)
	}

	out := rl.Stdout()
	s.printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return nil
		}

		if quit := s.Execute(ctx, line, out); quit {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return nil
		}
	}
}

// Execute runs one command line, writing its output to w. It returns true
// for quit.
func (s *Shell) Execute(ctx context.Context, line string, w io.Writer) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp(w)
	case "switch", "sw":
		err = s.cmdSwitch(args, w)
	case "bind":
		err = s.cmdBind(ctx, args, w)
	case "unbind":
		err = s.cmdUnbind(ctx, args, w)
	case "bindings", "b":
		err = s.cmdBindings(ctx, w)
	case "devices", "d":
		err = s.cmdDevices(ctx, w)
	case "subs":
		err = s.cmdSubs(ctx, w)
	case "logs", "matterlogs":
		err = s.cmdLogs(args, w)
	case "factoryreset":
		err = s.cmdFactoryReset(ctx, w)
	case "sim":
		err = s.cmdSim(args, w)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		if s.log != nil {
			s.log.Debugf("%s: %v", cmd, err)
		}
	}
	return false
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("switch",
			readline.PcItem("on"), readline.PcItem("off"), readline.PcItem("toggle")),
		readline.PcItem("bind",
			readline.PcItem("unicast"), readline.PcItem("group")),
		readline.PcItem("unbind"),
		readline.PcItem("bindings"),
		readline.PcItem("devices"),
		readline.PcItem("subs"),
		readline.PcItem("logs", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("factoryreset"),
		readline.PcItem("sim",
			readline.PcItem("lights"), readline.PcItem("offline"),
			readline.PcItem("online"), readline.PcItem("set")),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

func (s *Shell) printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Matter HMI Commands:
  Switch:
    switch on|off|toggle [all|<n>] [group|unicast]
                                      - Send a command to all bindings or binding #n

  Bindings:
    bind unicast <fabric> <node> <endpoint> [cluster]
    bind group <fabric> <group> [cluster]
    unbind <n>                        - Remove binding #n (later bindings move up)
    bindings                          - List the binding table
    factoryreset                      - Clear all bindings and subscriptions

  Status:
    devices                           - Show the device table
    subs                              - Show subscription state per binding
    logs [on|off]                     - Toggle log output

  Simulation:
    sim lights                        - List simulated lights
    sim offline|online <peer>         - Take a light off the network or back
    sim set <peer> on|off             - Change a light locally

  General:
    help                              - Show this help
    quit                              - Exit

  Peers are <node> on fabric 1 or <fabric>:<node>; numbers may be hex (0x..).`)
}
