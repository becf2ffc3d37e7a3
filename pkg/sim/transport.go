package sim

import (
	"fmt"

	"github.com/backkem/matter-hmi/pkg/clusters"
	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
)

// session is a connected-peer handle issued by Connect.
type session struct {
	net  *Network
	peer fabric.PeerID
}

func (s *session) Peer() fabric.PeerID { return s.peer }

// Connect implements controller.Connector.
func (n *Network) Connect(peer fabric.PeerID, cb controller.ConnectCallbacks) {
	ok := n.enqueue(func() {
		n.mu.Lock()
		l, found := n.lights[peer]
		reachable := found && l.reachable
		n.mu.Unlock()

		switch {
		case !found:
			cb.OnFailure(fmt.Errorf("%w: %s", ErrUnknownPeer, peer))
		case !reachable:
			cb.OnFailure(fmt.Errorf("%w: %s", ErrUnreachable, peer))
		default:
			cb.OnConnected(&session{net: n, peer: peer})
		}
	}, cb.OnRelease)

	if !ok && cb.OnRelease != nil {
		go cb.OnRelease()
	}
}

// sessionLight resolves the light behind sess. Caller holds mu.
func (n *Network) sessionLight(sess controller.Session) (*light, error) {
	s, ok := sess.(*session)
	if !ok || s.net != n {
		return nil, ErrInvalidSession
	}
	l, ok := n.lights[s.peer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, s.peer)
	}
	return l, nil
}

// InvokeCommand implements controller.Transport.
func (n *Network) InvokeCommand(sess controller.Session, ep datamodel.EndpointID, action clusters.Action, done func(error)) error {
	if !n.enqueue(func() { done(n.invoke(sess, ep, action)) }, nil) {
		return ErrClosed
	}
	return nil
}

func (n *Network) invoke(sess controller.Session, ep datamodel.EndpointID, action clusters.Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, err := n.sessionLight(sess)
	if err != nil {
		return err
	}
	if !l.reachable {
		return fmt.Errorf("%w: %s to %s", ErrTimeout, action, l.peer)
	}
	if ep != l.endpoint {
		return fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, ep)
	}
	return n.apply(l, action)
}

// ReadAttribute implements controller.Transport. It serves General
// Diagnostics NetworkInterfaces and OnOff.
func (n *Network) ReadAttribute(sess controller.Session, path datamodel.ConcreteAttributePath, onData func(any), onError func(error)) error {
	if !n.enqueue(func() {
		v, err := n.read(sess, path)
		if err != nil {
			onError(err)
			return
		}
		onData(v)
	}, nil) {
		return ErrClosed
	}
	return nil
}

func (n *Network) read(sess controller.Session, path datamodel.ConcreteAttributePath) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, err := n.sessionLight(sess)
	if err != nil {
		return nil, err
	}
	if !l.reachable {
		return nil, fmt.Errorf("%w: read %s from %s", ErrTimeout, path, l.peer)
	}

	switch {
	case path == clusters.DeviceInfoPath:
		return []generaldiagnostics.NetworkInterface{{
			Name:        interfaceName(l.iface),
			Operational: true,
			Type:        l.iface,
		}}, nil
	case path.Cluster == onoff.ClusterID && path.Attribute == onoff.AttrOnOff:
		if path.Endpoint != l.endpoint {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, path.Endpoint)
		}
		return l.on, nil
	case path.Cluster != onoff.ClusterID && path.Cluster != generaldiagnostics.ClusterID:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCluster, path.Cluster)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAttribute, path)
	}
}

// SubscribeAttribute implements controller.Transport for the OnOff
// attribute. The subscription starts with a priming report of the current
// state. The network has a single client, so a new subscription to a path
// replaces any earlier one on that path.
func (n *Network) SubscribeAttribute(sess controller.Session, path datamodel.ConcreteAttributePath, _ controller.SubscribeParams, cb controller.SubscribeCallbacks) error {
	if !n.enqueue(func() { n.subscribe(sess, path, cb) }, nil) {
		return ErrClosed
	}
	return nil
}

func (n *Network) subscribe(sess controller.Session, path datamodel.ConcreteAttributePath, cb controller.SubscribeCallbacks) {
	n.mu.Lock()
	l, err := n.sessionLight(sess)
	switch {
	case err != nil:
	case !l.reachable:
		err = fmt.Errorf("%w: subscribe %s on %s", ErrTimeout, path, l.peer)
	case path.Cluster != onoff.ClusterID:
		err = fmt.Errorf("%w: %s", ErrUnsupportedCluster, path.Cluster)
	case path.Attribute != onoff.AttrOnOff:
		err = fmt.Errorf("%w: %s", ErrUnsupportedAttribute, path)
	case path.Endpoint != l.endpoint:
		err = fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, path.Endpoint)
	}
	if err != nil {
		n.mu.Unlock()
		cb.OnError(err)
		return
	}
	l.replaceSub(&subscription{path: path, cb: cb})
	on := l.on
	n.mu.Unlock()

	cb.OnEstablished()
	cb.OnReport(path, on)
}

// GroupSend implements controller.Transport. Members that are unreachable
// miss the command; nobody is told.
func (n *Network) GroupSend(fi fabric.FabricIndex, group fabric.GroupID, action clusters.Action) error {
	if !action.Groupcast {
		return fmt.Errorf("%w: %s", ErrNotGroupcast, action)
	}
	if action.Cluster != onoff.ClusterID {
		return fmt.Errorf("%w: %s", ErrUnsupportedCluster, action.Cluster)
	}
	if !n.enqueue(func() { n.groupDeliver(fi, group, action) }, nil) {
		return ErrClosed
	}
	return nil
}

func (n *Network) groupDeliver(fi fabric.FabricIndex, group fabric.GroupID, action clusters.Action) {
	n.mu.Lock()
	defer n.mu.Unlock()

	members := n.groups[groupKey{fabric: fi, group: group}]
	delivered := 0
	for peer := range members {
		l := n.lights[peer]
		if l == nil || !l.reachable {
			continue
		}
		_ = n.apply(l, action)
		delivered++
	}
	if n.log != nil {
		n.log.Debugf("%s to %s on fabric %d reached %d of %d member(s)", action, group, fi, delivered, len(members))
	}
}
