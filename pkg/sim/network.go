// Package sim is an in-memory Matter network of On/Off lights. It
// implements controller.Connector and controller.Transport so the switch can
// be run and tested without radios or commissioned devices.
//
// Every outcome is delivered from a single delivery goroutine, in the order
// it was produced, after the configured latency. Callbacks never run inside
// the call that caused them.
package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
	"github.com/pion/logging"
)

// Simulation errors.
var (
	ErrClosed               = errors.New("sim: network closed")
	ErrUnknownPeer          = errors.New("sim: no such peer")
	ErrUnreachable          = errors.New("sim: peer unreachable")
	ErrTimeout              = errors.New("sim: response timeout")
	ErrDuplicateLight       = errors.New("sim: light already exists")
	ErrInvalidSession       = errors.New("sim: session not from this network")
	ErrUnsupportedEndpoint  = errors.New("sim: unsupported endpoint")
	ErrUnsupportedCluster   = errors.New("sim: unsupported cluster")
	ErrUnsupportedAttribute = errors.New("sim: unsupported attribute")
	ErrNotGroupcast         = errors.New("sim: command cannot be sent to a group")
)

// Defaults.
const (
	DefaultLatency          = 5 * time.Millisecond
	DefaultProcessInterval  = time.Millisecond
	DefaultResubscribeDelay = time.Second
)

// Config configures a Network.
type Config struct {
	// Latency is added to every delivery. Default: DefaultLatency.
	// Use a negative value for no latency.
	Latency time.Duration

	// Jitter adds a uniformly distributed extra delay in [0, Jitter).
	// Deliveries are still made in order.
	Jitter time.Duration

	// ProcessInterval is how often the delivery goroutine checks for due
	// deliveries. Default: DefaultProcessInterval.
	ProcessInterval time.Duration

	// ResubscribeDelay is the retry delay announced when a subscribed
	// light drops off the network. Default: DefaultResubscribeDelay.
	ResubscribeDelay time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// LightConfig describes a simulated light.
type LightConfig struct {
	// Endpoint hosts the On/Off server. Default: 1.
	Endpoint datamodel.EndpointID

	// Interface is reported through General Diagnostics.
	Interface generaldiagnostics.InterfaceType

	// Unreachable lights refuse connections until SetReachable.
	Unreachable bool

	// On is the initial OnOff state.
	On bool
}

type light struct {
	peer      fabric.PeerID
	endpoint  datamodel.EndpointID
	iface     generaldiagnostics.InterfaceType
	reachable bool
	on        bool
	subs      []*subscription
}

type subscription struct {
	path      datamodel.ConcreteAttributePath
	cb        controller.SubscribeCallbacks
	suspended bool
}

// replaceSub installs s, dropping subscriptions on the same path. Caller
// holds mu.
func (l *light) replaceSub(s *subscription) {
	kept := l.subs[:0]
	for _, old := range l.subs {
		if old.path != s.path {
			kept = append(kept, old)
		}
	}
	l.subs = append(kept, s)
}

type groupKey struct {
	fabric fabric.FabricIndex
	group  fabric.GroupID
}

// LightStatus is a snapshot of a simulated light.
type LightStatus struct {
	Peer          fabric.PeerID
	Endpoint      datamodel.EndpointID
	Interface     generaldiagnostics.InterfaceType
	Reachable     bool
	On            bool
	Subscriptions int
}

type delivery struct {
	due    time.Time
	fn     func()
	onStop func()
}

// Network is a simulated fabric of lights.
//
// Thread Safety: all methods are safe for concurrent use.
type Network struct {
	mu     sync.Mutex
	lights map[fabric.PeerID]*light
	groups map[groupKey]map[fabric.PeerID]struct{}

	qmu     sync.Mutex
	queue   []delivery
	stopped bool
	rng     *rand.Rand

	latency          time.Duration
	jitter           time.Duration
	interval         time.Duration
	resubscribeDelay time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	log logging.LeveledLogger
}

var (
	_ controller.Connector = (*Network)(nil)
	_ controller.Transport = (*Network)(nil)
)

// NewNetwork creates an empty network and starts its delivery goroutine.
func NewNetwork(config Config) *Network {
	if config.Latency == 0 {
		config.Latency = DefaultLatency
	}
	if config.Latency < 0 {
		config.Latency = 0
	}
	if config.ProcessInterval <= 0 {
		config.ProcessInterval = DefaultProcessInterval
	}
	if config.ResubscribeDelay <= 0 {
		config.ResubscribeDelay = DefaultResubscribeDelay
	}

	n := &Network{
		lights:           make(map[fabric.PeerID]*light),
		groups:           make(map[groupKey]map[fabric.PeerID]struct{}),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		latency:          config.Latency,
		jitter:           config.Jitter,
		interval:         config.ProcessInterval,
		resubscribeDelay: config.ResubscribeDelay,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		n.log = config.LoggerFactory.NewLogger("sim")
	}
	go n.deliverLoop()
	return n
}

// enqueue schedules fn. If the network closes first, onStop runs instead.
// Returns false if the network is already closed.
func (n *Network) enqueue(fn, onStop func()) bool {
	n.qmu.Lock()
	defer n.qmu.Unlock()

	if n.stopped {
		return false
	}
	delay := n.latency
	if n.jitter > 0 {
		delay += time.Duration(n.rng.Int63n(int64(n.jitter)))
	}
	due := time.Now().Add(delay)
	// Keep due times non-decreasing so delivery order is enqueue order.
	if k := len(n.queue); k > 0 && due.Before(n.queue[k-1].due) {
		due = n.queue[k-1].due
	}
	n.queue = append(n.queue, delivery{due: due, fn: fn, onStop: onStop})
	return true
}

func (n *Network) deliverLoop() {
	defer close(n.doneCh)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.deliverDue()
		}
	}
}

func (n *Network) deliverDue() {
	for {
		n.qmu.Lock()
		if len(n.queue) == 0 || time.Now().Before(n.queue[0].due) {
			n.qmu.Unlock()
			return
		}
		d := n.queue[0]
		n.queue = n.queue[1:]
		n.qmu.Unlock()

		d.fn()
	}
}

// Close stops delivery. Connects still waiting for an outcome are released;
// every other pending delivery is discarded.
func (n *Network) Close() error {
	n.once.Do(func() {
		n.qmu.Lock()
		n.stopped = true
		pending := n.queue
		n.queue = nil
		n.qmu.Unlock()

		close(n.stopCh)
		<-n.doneCh

		released := 0
		for _, d := range pending {
			if d.onStop != nil {
				d.onStop()
				released++
			}
		}
		if n.log != nil {
			n.log.Infof("network closed, %d pending deliveries dropped, %d connects released", len(pending)-released, released)
		}
	})
	return nil
}

// Pending returns the number of queued deliveries.
func (n *Network) Pending() int {
	n.qmu.Lock()
	defer n.qmu.Unlock()
	return len(n.queue)
}

// AddLight adds a light to the network.
func (n *Network) AddLight(peer fabric.PeerID, config LightConfig) error {
	if !peer.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	if config.Endpoint == 0 {
		config.Endpoint = 1
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.lights[peer]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLight, peer)
	}
	n.lights[peer] = &light{
		peer:      peer,
		endpoint:  config.Endpoint,
		iface:     config.Interface,
		reachable: !config.Unreachable,
		on:        config.On,
	}
	if n.log != nil {
		n.log.Debugf("light %s added on %s (%s)", peer, config.Endpoint, config.Interface)
	}
	return nil
}

// AddToGroup makes the light at peer a member of group on its fabric.
func (n *Network) AddToGroup(peer fabric.PeerID, group fabric.GroupID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.lights[peer]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	key := groupKey{fabric: peer.FabricIndex, group: group}
	members, ok := n.groups[key]
	if !ok {
		members = make(map[fabric.PeerID]struct{})
		n.groups[key] = members
	}
	members[peer] = struct{}{}
	return nil
}

// SetReachable takes a light off the network or brings it back. Active
// subscriptions see a resubscribe on loss and a fresh report on recovery.
func (n *Network) SetReachable(peer fabric.PeerID, reachable bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.lights[peer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	if l.reachable == reachable {
		return nil
	}
	l.reachable = reachable

	for _, s := range l.subs {
		if !reachable {
			s.suspended = true
			delay := n.resubscribeDelay
			n.enqueue(func() { s.cb.OnResubscribe(ErrUnreachable, delay) }, nil)
			continue
		}
		if s.suspended {
			s.suspended = false
			on := l.on
			n.enqueue(func() {
				s.cb.OnEstablished()
				s.cb.OnReport(s.path, on)
			}, nil)
		}
	}
	if n.log != nil {
		n.log.Infof("light %s reachable=%t", peer, reachable)
	}
	return nil
}

// SetOnOff changes a light's state locally, as if its own button was used.
func (n *Network) SetOnOff(peer fabric.PeerID, on bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.lights[peer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	n.setLocked(l, on)
	return nil
}

// setLocked updates l and reports the change. Caller holds mu.
func (n *Network) setLocked(l *light, on bool) {
	if l.on == on {
		return
	}
	l.on = on
	if n.log != nil {
		n.log.Debugf("light %s is now %t", l.peer, on)
	}
	if !l.reachable {
		return
	}
	for _, s := range l.subs {
		if s.suspended {
			continue
		}
		n.enqueue(func() { s.cb.OnReport(s.path, on) }, nil)
	}
}

// Light returns a snapshot of the light at peer.
func (n *Network) Light(peer fabric.PeerID) (LightStatus, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.lights[peer]
	if !ok {
		return LightStatus{}, false
	}
	return l.status(), true
}

// Lights returns snapshots of all lights ordered by peer.
func (n *Network) Lights() []LightStatus {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]LightStatus, 0, len(n.lights))
	for _, l := range n.lights {
		out = append(out, l.status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peer.FabricIndex != out[j].Peer.FabricIndex {
			return out[i].Peer.FabricIndex < out[j].Peer.FabricIndex
		}
		return out[i].Peer.NodeID < out[j].Peer.NodeID
	})
	return out
}

func (l *light) status() LightStatus {
	return LightStatus{
		Peer:          l.peer,
		Endpoint:      l.endpoint,
		Interface:     l.iface,
		Reachable:     l.reachable,
		On:            l.on,
		Subscriptions: len(l.subs),
	}
}

// apply executes an On/Off action on l. Caller holds mu.
func (n *Network) apply(l *light, action clusters.Action) error {
	if action.Cluster != onoff.ClusterID {
		return fmt.Errorf("%w: %s", ErrUnsupportedCluster, action.Cluster)
	}
	n.setLocked(l, onoff.Command(action.Command).Apply(l.on))
	return nil
}

func interfaceName(t generaldiagnostics.InterfaceType) string {
	switch t {
	case generaldiagnostics.InterfaceWiFi:
		return "wlan0"
	case generaldiagnostics.InterfaceEthernet:
		return "eth0"
	case generaldiagnostics.InterfaceCellular:
		return "wwan0"
	case generaldiagnostics.InterfaceThread:
		return "thread0"
	default:
		return "if0"
	}
}
