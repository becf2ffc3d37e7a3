package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/matter-hmi/internal/config"
	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/fabric"
	"github.com/backkem/matter-hmi/pkg/hmi"
	"github.com/backkem/matter-hmi/pkg/subscription"
	"github.com/pion/transport/v3/test"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvPrefix+"_CONFIG", "")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.BindingsFile = filepath.Join(t.TempDir(), "bindings.yaml")
	cfg.Simulation.Latency = time.Millisecond
	cfg.Simulation.Jitter = 0
	return cfg
}

func start(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(Options{Config: cfg})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return a
}

func request(cmd onoff.Command, sel controller.Selector) controller.Request {
	return controller.Request{
		LocalEndpoint: 1,
		Cluster:       onoff.ClusterID,
		Command:       cmd.ID(),
		Target:        sel,
	}
}

func waitRow(t *testing.T, d *hmi.DeviceTable, p binding.PeerIndex, what string, cond func(hmi.Row) bool) hmi.Row {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		row, ok := d.Row(p)
		if ok && cond(row) {
			return row
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for #%d %s, last row %+v", p, what, row)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestApp_SwitchAll(t *testing.T) {
	defer test.CheckRoutines(t)()
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	a := start(t, testConfig(t))
	defer func() { _ = a.Stop() }()

	if a.Table.Size() != 3 {
		t.Fatalf("expected 3 seed bindings, got %d", a.Table.Size())
	}
	if err := a.Controller.RequestAction(request(onoff.On, controller.All())); err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}

	online := func(r hmi.Row) bool {
		return r.Connection == hmi.ConnectionOnline && r.HasNetwork && r.HasState && r.On
	}
	if row := waitRow(t, a.Devices, 1, "online and on", online); row.Network != generaldiagnostics.InterfaceWiFi {
		t.Errorf("expected #1 on Wi-Fi, got %s", row.Network)
	}
	if row := waitRow(t, a.Devices, 2, "online and on", online); row.Network != generaldiagnostics.InterfaceThread {
		t.Errorf("expected #2 on Thread, got %s", row.Network)
	}

	for _, node := range []fabric.NodeID{1, 2} {
		l, ok := a.Network.Light(fabric.PeerID{FabricIndex: 1, NodeID: node})
		if !ok || !l.On {
			t.Errorf("expected light %d on, got %+v", node, l)
		}
	}

	peers, err := a.Controller.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if peers[2].State != subscription.NotSubscribed {
		t.Error("expected group binding to stay unsubscribed")
	}
}

func TestApp_UnreachablePeer(t *testing.T) {
	defer test.CheckRoutines(t)()

	a := start(t, testConfig(t))
	defer func() { _ = a.Stop() }()

	ctx := context.Background()
	p, err := a.Controller.Bind(ctx, binding.Unicast(1, 3, 1, 1, onoff.ClusterID))
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if p != 4 {
		t.Fatalf("expected peer index 4, got %d", p)
	}

	if err := a.Controller.RequestAction(request(onoff.Toggle, controller.Target(p))); err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}
	row := waitRow(t, a.Devices, p, "offline", func(r hmi.Row) bool {
		return r.Connection == hmi.ConnectionOffline
	})
	if row.FailedOp != subscription.OpConnect || !errors.Is(row.LastFailure, controller.ErrPeerUnreachable) {
		t.Errorf("expected connect failure, got %s: %v", row.FailedOp, row.LastFailure)
	}

	if err := a.Network.SetReachable(fabric.PeerID{FabricIndex: 1, NodeID: 3}, true); err != nil {
		t.Fatalf("SetReachable failed: %v", err)
	}
	if err := a.Controller.RequestAction(request(onoff.Toggle, controller.Target(p))); err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}
	waitRow(t, a.Devices, p, "online and on", func(r hmi.Row) bool {
		return r.Connection == hmi.ConnectionOnline && r.HasState && r.On
	})
}

func TestApp_Persistence(t *testing.T) {
	cfg := testConfig(t)

	a := start(t, cfg)
	if _, err := a.Controller.Bind(context.Background(), binding.Unicast(1, 3, 1, 1, onoff.ClusterID)); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := a.Store.Save(a.Table.Entries()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	want := a.Table.Entries()
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Stored bindings win over seeds.
	cfg.Bindings = nil
	b := start(t, cfg)
	defer func() { _ = b.Stop() }()

	got := b.Table.Entries()
	if len(got) != len(want) {
		t.Fatalf("expected %d restored bindings, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("binding %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestApp_NoNetwork(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Enabled = false

	if _, err := New(Options{Config: cfg}); !errors.Is(err, ErrNoNetwork) {
		t.Errorf("expected ErrNoNetwork, got %v", err)
	}
}

func TestApp_StopReleasesPending(t *testing.T) {
	defer test.CheckRoutines(t)()

	cfg := testConfig(t)
	cfg.Simulation.Latency = time.Hour
	a := start(t, cfg)

	if err := a.Controller.RequestAction(request(onoff.Toggle, controller.Target(1))); err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.Controller.InFlight() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the connect to start")
		}
		time.Sleep(time.Millisecond)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if n := a.Controller.InFlight(); n != 0 {
		t.Errorf("expected no connects in flight after Stop, got %d", n)
	}
}
