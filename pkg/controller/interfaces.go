package controller

import (
	"time"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
	"github.com/backkem/matter-hmi/pkg/subscription"
)

// Session is a connected-peer handle handed out by a Connector.
type Session interface {
	Peer() fabric.PeerID
}

// ConnectCallbacks receives the outcome of a Connect.
//
// A Connector calls exactly one of the three, exactly once. OnRelease is for
// requests the Connector drops without an outcome, for example on shutdown.
type ConnectCallbacks struct {
	OnConnected func(sess Session)
	OnFailure   func(err error)
	OnRelease   func()
}

// Connector establishes or reuses a secure session with a peer.
// Connect must not block and must not invoke a callback before returning.
type Connector interface {
	Connect(peer fabric.PeerID, cb ConnectCallbacks)
}

// SubscribeParams are passed through to SubscribeAttribute.
type SubscribeParams struct {
	MinInterval time.Duration
	MaxInterval time.Duration

	// KeepSubscriptions keeps the peer's other subscriptions from this node.
	KeepSubscriptions bool

	// FabricFiltered restricts reports to fabric-scoped data of our fabric.
	FabricFiltered bool
}

// DefaultSubscribeParams returns min 0, max 600 s, keep existing subscriptions.
func DefaultSubscribeParams() SubscribeParams {
	return SubscribeParams{
		MinInterval:       0,
		MaxInterval:       600 * time.Second,
		KeepSubscriptions: true,
	}
}

// SubscribeCallbacks receives the events of a long-lived subscription.
type SubscribeCallbacks struct {
	// OnReport delivers one attribute report.
	OnReport func(path datamodel.ConcreteAttributePath, value any)

	// OnError reports a failed report or a failed subscription setup.
	OnError func(err error)

	// OnEstablished fires once the subscription is active.
	OnEstablished func()

	// OnResubscribe fires when the transport renews the subscription after
	// a connectivity loss.
	OnResubscribe func(cause error, next time.Duration)
}

// Transport issues interaction model operations.
//
// An error return means the request was not sent. Otherwise the outcome
// arrives later through the callbacks, from any goroutine, never from
// inside the call itself.
type Transport interface {
	InvokeCommand(sess Session, endpoint datamodel.EndpointID, action clusters.Action, done func(err error)) error

	ReadAttribute(sess Session, path datamodel.ConcreteAttributePath, onData func(value any), onError func(err error)) error

	SubscribeAttribute(sess Session, path datamodel.ConcreteAttributePath, params SubscribeParams, cb SubscribeCallbacks) error

	// GroupSend transmits a command to a group. Success means the message
	// was accepted for transmission; no response is awaited.
	GroupSend(fi fabric.FabricIndex, group fabric.GroupID, action clusters.Action) error
}

// AttributeUpdate is a subscribed attribute report, forwarded verbatim.
type AttributeUpdate struct {
	Path  datamodel.ConcreteAttributePath
	Value any
}

// Listener is the UI side of the controller. Calls arrive on the worker and
// must not block.
type Listener interface {
	OnAttributeUpdate(p binding.PeerIndex, update AttributeUpdate)
	OnConnectionStatus(p binding.PeerIndex, connected bool)
	OnDeviceMetadata(p binding.PeerIndex, iface generaldiagnostics.InterfaceType)

	// OnFailure is the UI failure channel. p is 0 when the failure is not
	// tied to a binding (for example an unsupported action).
	OnFailure(p binding.PeerIndex, op subscription.Op, err error)
}

// NopListener ignores all notifications.
type NopListener struct{}

func (NopListener) OnAttributeUpdate(binding.PeerIndex, AttributeUpdate)                 {}
func (NopListener) OnConnectionStatus(binding.PeerIndex, bool)                           {}
func (NopListener) OnDeviceMetadata(binding.PeerIndex, generaldiagnostics.InterfaceType) {}
func (NopListener) OnFailure(binding.PeerIndex, subscription.Op, error)                  {}
