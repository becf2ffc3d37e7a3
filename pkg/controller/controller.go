package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/subscription"
	"github.com/backkem/matter-hmi/pkg/worker"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Config configures a Controller.
type Config struct {
	// Table is the binding table. Required.
	Table *binding.Table

	// Worker runs all controller work. Required.
	// The caller owns its lifecycle (Start/Stop).
	Worker *worker.Worker

	// Connector establishes peer sessions. Required.
	Connector Connector

	// Transport issues commands, reads and subscriptions. Required.
	Transport Transport

	// Listener receives UI notifications. Optional.
	Listener Listener

	// Subscribe holds the subscription parameters.
	// A zero MaxInterval selects DefaultSubscribeParams().
	Subscribe SubscribeParams

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks that the required collaborators are set.
func (c *Config) Validate() error {
	switch {
	case c.Table == nil:
		return fmt.Errorf("%w: binding table is required", ErrInvalidConfig)
	case c.Worker == nil:
		return fmt.Errorf("%w: worker is required", ErrInvalidConfig)
	case c.Connector == nil:
		return fmt.Errorf("%w: connector is required", ErrInvalidConfig)
	case c.Transport == nil:
		return fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	if c.Subscribe.MaxInterval != 0 && c.Subscribe.MinInterval > c.Subscribe.MaxInterval {
		return fmt.Errorf("%w: subscription min interval exceeds max interval", ErrInvalidConfig)
	}
	return nil
}

// PeerStatus is a diagnostics snapshot of one binding.
type PeerStatus struct {
	Index   binding.PeerIndex
	Entry   binding.Entry
	State   subscription.State
	Attempt subscription.Attempt
}

// Controller is the binding-driven command dispatcher.
type Controller struct {
	table     *binding.Table
	worker    *worker.Worker
	connector Connector
	transport Transport
	listener  Listener
	params    SubscribeParams
	log       logging.LeveledLogger

	// Worker-owned.
	tracker *subscription.Tracker
	epochs  []uint64

	// ctx bounds Posts from collaborator goroutines; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[*connectContext]struct{}
	closed  bool

	newID func() string
}

// New creates a controller. It does not start the worker.
func New(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Listener == nil {
		config.Listener = NopListener{}
	}
	if config.Subscribe.MaxInterval == 0 {
		config.Subscribe = DefaultSubscribeParams()
	}

	ctx, cancel := context.WithCancel(context.Background())
	capacity := config.Table.Capacity()

	c := &Controller{
		table:     config.Table,
		worker:    config.Worker,
		connector: config.Connector,
		transport: config.Transport,
		listener:  config.Listener,
		params:    config.Subscribe,
		tracker:   subscription.NewTracker(capacity),
		epochs:    make([]uint64, capacity),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[*connectContext]struct{}),
		newID:     uuid.NewString,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("controller")
	}
	return c, nil
}

// RequestAction hands a request to the worker without blocking.
//
// Resolution and delivery outcomes are reported to the Listener, never
// returned here. The only errors are hand-off failures: worker.ErrQueueFull,
// worker.ErrStopped and ErrClosed.
func (c *Controller) RequestAction(req Request) error {
	if c.isClosed() {
		return ErrClosed
	}
	if req.ID == "" {
		req.ID = c.newID()
	}

	if err := c.worker.Submit(func() { _ = c.Dispatch(req) }); err != nil {
		if c.log != nil {
			c.log.Warnf("dispatch %s: failed to post request: %v", req.ID, err)
		}
		return err
	}
	return nil
}

// Dispatch resolves req against the binding table and starts delivery to
// every selected entry, in table order. It must run on the worker.
//
// The returned error is the resolution error, if any. It has already been
// logged and reported to the Listener. Per-entry delivery outcomes are
// independent of each other and only reach the Listener.
func (c *Controller) Dispatch(req Request) error {
	if req.ID == "" {
		req.ID = c.newID()
	}

	action, ok := clusters.Lookup(req.Cluster, req.Command)
	if !ok {
		err := fmt.Errorf("%w: cluster %s command 0x%02X", ErrUnsupportedAction, req.Cluster, uint32(req.Command))
		c.resolveFailed(req, err)
		return err
	}
	cluster, _ := clusters.LookupCluster(req.Cluster)

	targets, err := c.resolve(req)
	if err != nil {
		c.resolveFailed(req, err)
		return err
	}

	if c.log != nil {
		c.log.Debugf("dispatch %s: %s to %d binding(s)", req.ID, action, len(targets))
	}

	for _, t := range targets {
		switch t.entry.Kind {
		case binding.KindMulticast:
			c.groupSend(req, t, action)
		case binding.KindUnicast:
			c.connect(req, t, action, cluster)
		}
	}
	return nil
}

// target is a resolved binding entry and its peer index.
type target struct {
	index binding.PeerIndex
	entry binding.Entry
}

func (c *Controller) resolve(req Request) ([]target, error) {
	matches := func(e binding.Entry) bool {
		return e.LocalEndpoint == req.LocalEndpoint &&
			e.Cluster == req.Cluster &&
			req.Intent.accepts(e.Kind)
	}

	if !req.Target.IsAll() {
		p := req.Target.Index()
		size := c.table.Size()
		e, ok := c.table.GetAt(p.Position())
		if p < 1 || !ok {
			return nil, fmt.Errorf("%w: #%d (%d bound)", ErrTargetNotBound, p, size)
		}
		if !matches(e) {
			return nil, fmt.Errorf("%w: #%d is %s", ErrNoMatchingBinding, p, e)
		}
		return []target{{index: p, entry: e}}, nil
	}

	var out []target
	for i, e := range c.table.Entries() {
		if matches(e) {
			out = append(out, target{index: binding.IndexAt(i), entry: e})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: ep=%d cluster=%s intent=%s",
			ErrNoMatchingBinding, req.LocalEndpoint, req.Cluster, req.Intent)
	}
	return out, nil
}

func (c *Controller) resolveFailed(req Request, err error) {
	if c.log != nil {
		if errors.Is(err, ErrTargetNotBound) {
			c.log.Errorf("dispatch %s: device not bound, bind a device to this control and try again: %v", req.ID, err)
		} else {
			c.log.Errorf("dispatch %s: %v", req.ID, err)
		}
	}
	c.listener.OnFailure(req.Target.Index(), subscription.OpResolve, err)
}

// Bind adds a binding entry and returns its peer index.
func (c *Controller) Bind(ctx context.Context, e binding.Entry) (binding.PeerIndex, error) {
	var (
		p   binding.PeerIndex
		err error
	)
	if callErr := c.worker.Call(ctx, func() { p, err = c.bind(e) }); callErr != nil {
		return 0, callErr
	}
	return p, err
}

func (c *Controller) bind(e binding.Entry) (binding.PeerIndex, error) {
	i, err := c.table.Add(e)
	if err != nil {
		return 0, err
	}
	p := binding.IndexAt(i)
	// The slot is normally clear already; the table may have been edited
	// behind the controller's back.
	c.clearFrom(p, false)
	return p, nil
}

// Unbind removes the binding at peer index p. Later bindings move down one
// index, so their subscription slots are cleared as well and they are set
// up again on their next trigger.
func (c *Controller) Unbind(ctx context.Context, p binding.PeerIndex) error {
	var err error
	if callErr := c.worker.Call(ctx, func() {
		if err = c.table.Remove(p.Position()); err == nil {
			c.clearFrom(p, true)
		}
	}); callErr != nil {
		return callErr
	}
	return err
}

// FactoryReset clears the binding table and every subscription slot.
func (c *Controller) FactoryReset(ctx context.Context) error {
	return c.worker.Call(ctx, func() {
		c.table.Clear()
		c.clearFrom(1, true)
		if c.log != nil {
			c.log.Info("factory reset: bindings and subscriptions cleared")
		}
	})
}

// clearFrom resets tracker slots from p on (only p unless toEnd) and bumps
// their epochs so late callbacks for the old bindings are dropped.
func (c *Controller) clearFrom(p binding.PeerIndex, toEnd bool) {
	start := p.Position()
	if start < 0 || start >= len(c.epochs) {
		return
	}
	end := start + 1
	switch {
	case toEnd && start == 0:
		c.tracker.ClearAll()
		end = len(c.epochs)
	case toEnd:
		_ = c.tracker.ClearFrom(p)
		end = len(c.epochs)
	default:
		_ = c.tracker.Clear(p)
	}
	for i := start; i < end; i++ {
		c.epochs[i]++
	}
}

// current reports whether a callback captured at epoch still belongs to the
// binding at p.
func (c *Controller) current(p binding.PeerIndex, epoch uint64) bool {
	i := p.Position()
	return i >= 0 && i < len(c.epochs) && c.epochs[i] == epoch
}

// Snapshot returns the state of every bound peer.
func (c *Controller) Snapshot(ctx context.Context) ([]PeerStatus, error) {
	var out []PeerStatus
	err := c.worker.Call(ctx, func() {
		entries := c.table.Entries()
		slots := c.tracker.Snapshot(len(entries))
		out = make([]PeerStatus, len(entries))
		for i, e := range entries {
			out[i] = PeerStatus{Index: binding.IndexAt(i), Entry: e}
			if i < len(slots) {
				out[i].State = slots[i].State
				out[i].Attempt = slots[i].Attempt
			}
		}
	})
	return out, err
}

// InFlight returns the number of connect contexts not yet released.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops accepting requests and releases every connect context still
// held. Call it after stopping the worker.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	n := len(c.pending)
	c.pending = make(map[*connectContext]struct{})
	c.mu.Unlock()

	c.cancel()
	if n > 0 && c.log != nil {
		c.log.Infof("released %d pending connect context(s) on close", n)
	}
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// post hands a collaborator callback to the worker.
func (c *Controller) post(fn func()) {
	if err := c.worker.Post(c.ctx, fn); err != nil && c.log != nil {
		c.log.Debugf("dropping callback: %v", err)
	}
}
