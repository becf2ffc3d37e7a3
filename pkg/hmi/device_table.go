// Package hmi is the display side of the switch: a table with one row per
// bound peer, fed by the controller's Listener notifications.
package hmi

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/subscription"
	"github.com/pion/logging"
)

// Connection is the connection status shown for a peer.
type Connection uint8

const (
	ConnectionUnknown Connection = iota
	ConnectionOnline
	ConnectionOffline
)

func (c Connection) String() string {
	switch c {
	case ConnectionOnline:
		return "online"
	case ConnectionOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Row is the display state of one peer index.
type Row struct {
	Index      binding.PeerIndex
	Connection Connection

	// Network is valid when HasNetwork is set.
	Network    generaldiagnostics.InterfaceType
	HasNetwork bool

	// On is valid when HasState is set.
	On       bool
	HasState bool

	FailedOp    subscription.Op
	LastFailure error
	Updated     time.Time
}

// Config configures a DeviceTable.
type Config struct {
	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DeviceTable implements controller.Listener.
//
// Thread Safety: all methods are safe for concurrent use. Listener calls
// arrive on the controller worker; readers are usually the shell.
type DeviceTable struct {
	mu   sync.RWMutex
	rows map[binding.PeerIndex]*Row

	// lastError holds failures not tied to a peer, such as unsupported
	// actions.
	lastError error

	now func() time.Time
	log logging.LeveledLogger
}

var _ controller.Listener = (*DeviceTable)(nil)

// NewDeviceTable creates an empty device table.
func NewDeviceTable(config Config) *DeviceTable {
	d := &DeviceTable{
		rows: make(map[binding.PeerIndex]*Row),
		now:  time.Now,
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("hmi")
	}
	return d
}

// row returns the row for p, creating it. Caller holds mu.
func (d *DeviceTable) row(p binding.PeerIndex) *Row {
	r, ok := d.rows[p]
	if !ok {
		r = &Row{Index: p}
		d.rows[p] = r
	}
	r.Updated = d.now()
	return r
}

// OnAttributeUpdate records OnOff reports. Other attributes are ignored.
func (d *DeviceTable) OnAttributeUpdate(p binding.PeerIndex, u controller.AttributeUpdate) {
	if u.Path.Cluster != onoff.ClusterID || u.Path.Attribute != onoff.AttrOnOff {
		if d.log != nil {
			d.log.Debugf("#%d: ignoring report %s", p, u.Path)
		}
		return
	}
	on, ok := u.Value.(bool)
	if !ok {
		if d.log != nil {
			d.log.Warnf("#%d: OnOff report with %T value", p, u.Value)
		}
		return
	}

	d.mu.Lock()
	r := d.row(p)
	changed := !r.HasState || r.On != on
	r.On, r.HasState = on, true
	d.mu.Unlock()

	if changed && d.log != nil {
		d.log.Infof("light #%d is %s", p, onOffLabel(on))
	}
}

func (d *DeviceTable) OnConnectionStatus(p binding.PeerIndex, connected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.row(p)
	if connected {
		r.Connection = ConnectionOnline
		r.FailedOp, r.LastFailure = subscription.OpNone, nil
	} else {
		r.Connection = ConnectionOffline
	}
}

func (d *DeviceTable) OnDeviceMetadata(p binding.PeerIndex, iface generaldiagnostics.InterfaceType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.row(p)
	// The first operational interface wins; NetworkInterfaces lists the
	// primary interface first.
	if !r.HasNetwork {
		r.Network, r.HasNetwork = iface, true
	}
}

func (d *DeviceTable) OnFailure(p binding.PeerIndex, op subscription.Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p < 1 {
		d.lastError = fmt.Errorf("%s: %w", op, err)
		return
	}
	r := d.row(p)
	r.FailedOp, r.LastFailure = op, err
}

// Row returns a copy of the row for p.
func (d *DeviceTable) Row(p binding.PeerIndex) (Row, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rows[p]
	if !ok {
		return Row{Index: p}, false
	}
	return *r, true
}

// Rows returns copies of all rows ordered by peer index.
func (d *DeviceTable) Rows() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// LastError returns the most recent failure not tied to a peer.
func (d *DeviceTable) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastError
}

// Unbound drops the row of a removed binding and moves later rows down,
// matching the binding table.
func (d *DeviceTable) Unbound(p binding.PeerIndex) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.rows, p)
	var later []binding.PeerIndex
	for i := range d.rows {
		if i > p {
			later = append(later, i)
		}
	}
	sort.Slice(later, func(i, j int) bool { return later[i] < later[j] })
	for _, i := range later {
		r := d.rows[i]
		delete(d.rows, i)
		r.Index = i - 1
		d.rows[i-1] = r
	}
}

// Reset clears every row.
func (d *DeviceTable) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = make(map[binding.PeerIndex]*Row)
	d.lastError = nil
}

func onOffLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
