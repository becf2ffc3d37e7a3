package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
	"github.com/backkem/matter-hmi/pkg/subscription"
	"github.com/backkem/matter-hmi/pkg/worker"
)

type fakeSession struct {
	peer fabric.PeerID
}

func (s fakeSession) Peer() fabric.PeerID { return s.peer }

// fakeConnector answers connects from a goroutine, or holds them for the
// test to answer when hold is set.
type fakeConnector struct {
	mu    sync.Mutex
	hold  bool
	fail  map[fabric.NodeID]error
	calls []fabric.PeerID
	held  []ConnectCallbacks
}

func (f *fakeConnector) Connect(peer fabric.PeerID, cb ConnectCallbacks) {
	f.mu.Lock()
	f.calls = append(f.calls, peer)
	if f.hold {
		f.held = append(f.held, cb)
		f.mu.Unlock()
		return
	}
	err := f.fail[peer.NodeID]
	f.mu.Unlock()

	go func() {
		if err != nil {
			cb.OnFailure(err)
			return
		}
		cb.OnConnected(fakeSession{peer: peer})
	}()
}

func (f *fakeConnector) numCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeConnector) heldAt(i int) ConnectCallbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[i]
}

type invokeCall struct {
	peer     fabric.PeerID
	endpoint datamodel.EndpointID
	action   clusters.Action
}

type subscribeCall struct {
	peer   fabric.PeerID
	path   datamodel.ConcreteAttributePath
	params SubscribeParams
}

type groupCall struct {
	fabric fabric.FabricIndex
	group  fabric.GroupID
	action clusters.Action
}

// fakeTransport records every request and answers from a goroutine.
type fakeTransport struct {
	mu         sync.Mutex
	invokes    []invokeCall
	reads      []datamodel.ConcreteAttributePath
	subscribes []subscribeCall
	subs       []SubscribeCallbacks
	groups     []groupCall

	invokeErr    error
	readErr      error
	subscribeErr error
	groupErr     error
	readValue    any

	wg sync.WaitGroup
}

func (f *fakeTransport) async(fn func()) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn()
	}()
}

func (f *fakeTransport) InvokeCommand(sess Session, ep datamodel.EndpointID, action clusters.Action, done func(error)) error {
	f.mu.Lock()
	f.invokes = append(f.invokes, invokeCall{peer: sess.Peer(), endpoint: ep, action: action})
	err := f.invokeErr
	f.mu.Unlock()

	f.async(func() { done(err) })
	return nil
}

func (f *fakeTransport) ReadAttribute(sess Session, path datamodel.ConcreteAttributePath, onData func(any), onError func(error)) error {
	f.mu.Lock()
	f.reads = append(f.reads, path)
	err, v := f.readErr, f.readValue
	f.mu.Unlock()

	if v == nil {
		v = []generaldiagnostics.NetworkInterface{
			{Name: "wlan0", Operational: true, Type: generaldiagnostics.InterfaceWiFi},
		}
	}
	f.async(func() {
		if err != nil {
			onError(err)
			return
		}
		onData(v)
	})
	return nil
}

func (f *fakeTransport) SubscribeAttribute(sess Session, path datamodel.ConcreteAttributePath, params SubscribeParams, cb SubscribeCallbacks) error {
	f.mu.Lock()
	f.subscribes = append(f.subscribes, subscribeCall{peer: sess.Peer(), path: path, params: params})
	f.subs = append(f.subs, cb)
	err := f.subscribeErr
	f.mu.Unlock()

	f.async(func() {
		if err != nil {
			cb.OnError(err)
			return
		}
		cb.OnEstablished()
		cb.OnReport(path, true)
	})
	return nil
}

func (f *fakeTransport) GroupSend(fi fabric.FabricIndex, group fabric.GroupID, action clusters.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, groupCall{fabric: fi, group: group, action: action})
	return f.groupErr
}

func (f *fakeTransport) counts() (invokes, reads, subscribes, groups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invokes), len(f.reads), len(f.subscribes), len(f.groups)
}

type statusEvent struct {
	index     binding.PeerIndex
	connected bool
}

type failureEvent struct {
	index binding.PeerIndex
	op    subscription.Op
	err   error
}

type recordingListener struct {
	mu       sync.Mutex
	status   []statusEvent
	metadata []generaldiagnostics.InterfaceType
	updates  []AttributeUpdate
	failures []failureEvent
}

func (l *recordingListener) OnAttributeUpdate(_ binding.PeerIndex, u AttributeUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *recordingListener) OnConnectionStatus(p binding.PeerIndex, connected bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = append(l.status, statusEvent{index: p, connected: connected})
}

func (l *recordingListener) OnDeviceMetadata(_ binding.PeerIndex, iface generaldiagnostics.InterfaceType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metadata = append(l.metadata, iface)
}

func (l *recordingListener) OnFailure(p binding.PeerIndex, op subscription.Op, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, failureEvent{index: p, op: op, err: err})
}

func (l *recordingListener) snapshot() ([]statusEvent, []failureEvent, []AttributeUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]statusEvent(nil), l.status...),
		append([]failureEvent(nil), l.failures...),
		append([]AttributeUpdate(nil), l.updates...)
}

type harness struct {
	t      *testing.T
	table  *binding.Table
	worker *worker.Worker
	conn   *fakeConnector
	tr     *fakeTransport
	ui     *recordingListener
	ctrl   *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		table:  binding.NewTable(binding.TableConfig{}),
		worker: worker.New(worker.Config{QueueSize: 64}),
		conn:   &fakeConnector{fail: map[fabric.NodeID]error{}},
		tr:     &fakeTransport{},
		ui:     &recordingListener{},
	}
	if err := h.worker.Start(); err != nil {
		t.Fatalf("worker start failed: %v", err)
	}

	ctrl, err := New(Config{
		Table:     h.table,
		Worker:    h.worker,
		Connector: h.conn,
		Transport: h.tr,
		Listener:  h.ui,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.ctrl = ctrl
	return h
}

// close stops everything and waits for fake transport goroutines.
func (h *harness) close() {
	h.worker.Stop()
	_ = h.ctrl.Close()
	h.tr.wg.Wait()
}

func (h *harness) bind(e binding.Entry) binding.PeerIndex {
	h.t.Helper()
	p, err := h.ctrl.Bind(context.Background(), e)
	if err != nil {
		h.t.Fatalf("Bind(%s) failed: %v", e, err)
	}
	return p
}

func (h *harness) dispatch(req Request) error {
	h.t.Helper()
	var err error
	if callErr := h.worker.Call(context.Background(), func() { err = h.ctrl.Dispatch(req) }); callErr != nil {
		h.t.Fatalf("Call failed: %v", callErr)
	}
	return err
}

// sync waits until every item queued so far has run.
func (h *harness) sync() {
	h.t.Helper()
	if err := h.worker.Call(context.Background(), func() {}); err != nil {
		h.t.Fatalf("Call failed: %v", err)
	}
}

func (h *harness) status(p binding.PeerIndex) PeerStatus {
	h.t.Helper()
	snap, err := h.ctrl.Snapshot(context.Background())
	if err != nil {
		h.t.Fatalf("Snapshot failed: %v", err)
	}
	if p.Position() >= len(snap) {
		h.t.Fatalf("no status for #%d", p)
	}
	return snap[p.Position()]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
