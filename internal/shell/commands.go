package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
)

// ErrUsage is returned for malformed commands.
var ErrUsage = errors.New("usage")

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, usage("invalid number %q", s)
	}
	return v, nil
}

// parsePeer accepts "<node>" on fabric 1 or "<fabric>:<node>".
func parsePeer(s string) (fabric.PeerID, error) {
	fi, node := uint64(1), s
	if f, n, ok := strings.Cut(s, ":"); ok {
		v, err := parseUint(f, 8)
		if err != nil {
			return fabric.PeerID{}, err
		}
		fi, node = v, n
	}
	n, err := parseUint(node, 64)
	if err != nil {
		return fabric.PeerID{}, err
	}
	return fabric.PeerID{FabricIndex: fabric.FabricIndex(fi), NodeID: fabric.NodeID(n)}, nil
}

func parseIndex(s string) (binding.PeerIndex, error) {
	v, err := parseUint(s, 8)
	if err != nil || v == 0 {
		return 0, usage("invalid binding number %q", s)
	}
	return binding.PeerIndex(v), nil
}

// switch on|off|toggle [all|<n>] [group|unicast]
func (s *Shell) cmdSwitch(args []string, w io.Writer) error {
	if len(args) < 1 || len(args) > 3 {
		return usage("switch on|off|toggle [all|<n>] [group|unicast]")
	}
	action, err := clusters.ParseAction(onoff.ClusterID, args[0])
	if err != nil {
		return err
	}

	req := controller.Request{
		ID:            s.newID(),
		LocalEndpoint: s.local,
		Cluster:       action.Cluster,
		Command:       action.Command,
		Target:        controller.All(),
	}
	for _, arg := range args[1:] {
		switch strings.ToLower(arg) {
		case "all":
			req.Target = controller.All()
		case "group":
			req.Intent = controller.IntentGroup
		case "unicast":
			req.Intent = controller.IntentUnicast
		default:
			p, err := parseIndex(arg)
			if err != nil {
				return err
			}
			req.Target = controller.Target(p)
		}
	}

	if err := s.ctrl.RequestAction(req); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s -> %s (%s) [%s]\n", action, req.Target, req.Intent, req.ID)
	return nil
}

// bind unicast <fabric> <node> <endpoint> [cluster]
// bind group <fabric> <group> [cluster]
func (s *Shell) cmdBind(ctx context.Context, args []string, w io.Writer) error {
	if len(args) < 1 {
		return usage("bind unicast|group ...")
	}
	kind, err := binding.ParseKind(strings.ToLower(args[0]))
	if err != nil {
		return err
	}

	var e binding.Entry
	switch kind {
	case binding.KindUnicast:
		if len(args) < 4 || len(args) > 5 {
			return usage("bind unicast <fabric> <node> <endpoint> [cluster]")
		}
		cluster, err := parseCluster(args[4:])
		if err != nil {
			return err
		}
		fi, err := parseUint(args[1], 8)
		if err != nil {
			return err
		}
		node, err := parseUint(args[2], 64)
		if err != nil {
			return err
		}
		ep, err := parseUint(args[3], 16)
		if err != nil {
			return err
		}
		e = binding.Unicast(fabric.FabricIndex(fi), fabric.NodeID(node), s.local, datamodel.EndpointID(ep), cluster)
	default:
		if len(args) < 3 || len(args) > 4 {
			return usage("bind group <fabric> <group> [cluster]")
		}
		cluster, err := parseCluster(args[3:])
		if err != nil {
			return err
		}
		fi, err := parseUint(args[1], 8)
		if err != nil {
			return err
		}
		g, err := parseUint(args[2], 16)
		if err != nil {
			return err
		}
		e = binding.Multicast(fabric.FabricIndex(fi), fabric.GroupID(g), s.local, cluster)
	}

	p, err := s.ctrl.Bind(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Bound #%d: %s\n", p, e)
	return s.persist(ctx)
}

func parseCluster(args []string) (datamodel.ClusterID, error) {
	if len(args) == 0 {
		return onoff.ClusterID, nil
	}
	return clusters.ParseCluster(args[0])
}

func (s *Shell) cmdUnbind(ctx context.Context, args []string, w io.Writer) error {
	if len(args) != 1 {
		return usage("unbind <n>")
	}
	p, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	if err := s.ctrl.Unbind(ctx, p); err != nil {
		return err
	}
	s.devices.Unbound(p)
	fmt.Fprintf(w, "Removed binding #%d\n", p)
	return s.persist(ctx)
}

func (s *Shell) cmdBindings(ctx context.Context, w io.Writer) error {
	snap, err := s.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap) == 0 {
		fmt.Fprintln(w, "No bindings.")
		return nil
	}
	for _, ps := range snap {
		fmt.Fprintf(w, "  #%-2d %s\n", ps.Index, ps.Entry)
	}
	return nil
}

func (s *Shell) cmdDevices(ctx context.Context, w io.Writer) error {
	snap, err := s.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap) == 0 {
		fmt.Fprintln(w, "No bindings. Bind a device and try again.")
		return nil
	}
	fmt.Fprintln(w, s.devices.Render(snap))
	if err := s.devices.LastError(); err != nil {
		fmt.Fprintf(w, "Last error: %v\n", err)
	}
	return nil
}

func (s *Shell) cmdSubs(ctx context.Context, w io.Writer) error {
	snap, err := s.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, ps := range snap {
		if ps.Entry.Kind == binding.KindMulticast {
			fmt.Fprintf(w, "  #%-2d group          -\n", ps.Index)
			continue
		}
		fmt.Fprintf(w, "  #%-2d %-14s %s\n", ps.Index, ps.State, ps.Attempt)
	}
	return nil
}

func (s *Shell) cmdLogs(args []string, w io.Writer) error {
	if s.logs == nil {
		return errors.New("log output is not switchable")
	}
	enabled := !s.logs.Enabled()
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return usage("logs [on|off]")
		}
	}
	s.logs.SetEnabled(enabled)
	if enabled {
		fmt.Fprintln(w, "Logs on")
	} else {
		fmt.Fprintln(w, "Logs off")
	}
	return nil
}

func (s *Shell) cmdFactoryReset(ctx context.Context, w io.Writer) error {
	if err := s.ctrl.FactoryReset(ctx); err != nil {
		return err
	}
	s.devices.Reset()
	fmt.Fprintln(w, "Factory reset done")
	return s.persist(ctx)
}

func (s *Shell) cmdSim(args []string, w io.Writer) error {
	if s.network == nil {
		return errors.New("no simulated network")
	}
	if len(args) == 0 {
		return usage("sim lights|offline|online|set")
	}

	switch strings.ToLower(args[0]) {
	case "lights":
		for _, l := range s.network.Lights() {
			fmt.Fprintf(w, "  %-12s %s %-8s reachable=%-5t on=%-5t subs=%d\n",
				l.Peer, l.Endpoint, l.Interface, l.Reachable, l.On, l.Subscriptions)
		}
		return nil
	case "offline", "online":
		if len(args) != 2 {
			return usage("sim %s <peer>", args[0])
		}
		peer, err := parsePeer(args[1])
		if err != nil {
			return err
		}
		return s.network.SetReachable(peer, strings.EqualFold(args[0], "online"))
	case "set":
		if len(args) != 3 {
			return usage("sim set <peer> on|off")
		}
		peer, err := parsePeer(args[1])
		if err != nil {
			return err
		}
		switch strings.ToLower(args[2]) {
		case "on":
			return s.network.SetOnOff(peer, true)
		case "off":
			return s.network.SetOnOff(peer, false)
		}
		return usage("sim set <peer> on|off")
	default:
		return usage("sim lights|offline|online|set")
	}
}

func (s *Shell) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, err := s.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	entries := make([]binding.Entry, len(snap))
	for i, ps := range snap {
		entries[i] = ps.Entry
	}
	if err := s.store.Save(entries); err != nil {
		return fmt.Errorf("bindings not saved: %w", err)
	}
	return nil
}
