// Package binding holds the binding table: the ordered set of associations
// from a local endpoint and cluster to either a unicast peer or a group.
package binding

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-hmi/pkg/datamodel"
	"github.com/backkem/matter-hmi/pkg/fabric"
)

// Entry validation errors.
var (
	ErrInvalidKind        = errors.New("binding: invalid kind")
	ErrInvalidFabricIndex = errors.New("binding: invalid fabric index")
	ErrInvalidNodeID      = errors.New("binding: invalid node ID")
	ErrInvalidGroupID     = errors.New("binding: invalid group ID")
)

// Kind distinguishes unicast from multicast bindings.
type Kind uint8

const (
	KindUnicast   Kind = 1
	KindMulticast Kind = 2
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnicast:
		return "unicast"
	case KindMulticast:
		return "group"
	default:
		return "unknown"
	}
}

// Entry is one binding table entry.
//
// Unicast entries use NodeID and RemoteEndpoint; multicast entries use
// GroupID. Fields of the other kind are ignored and zeroed by Add.
type Entry struct {
	Kind          Kind
	FabricIndex   fabric.FabricIndex
	LocalEndpoint datamodel.EndpointID
	Cluster       datamodel.ClusterID

	NodeID         fabric.NodeID
	RemoteEndpoint datamodel.EndpointID

	GroupID fabric.GroupID
}

// Unicast builds a unicast entry.
func Unicast(fi fabric.FabricIndex, node fabric.NodeID, local, remote datamodel.EndpointID, cluster datamodel.ClusterID) Entry {
	return Entry{
		Kind:           KindUnicast,
		FabricIndex:    fi,
		LocalEndpoint:  local,
		Cluster:        cluster,
		NodeID:         node,
		RemoteEndpoint: remote,
	}
}

// Multicast builds a group entry.
func Multicast(fi fabric.FabricIndex, group fabric.GroupID, local datamodel.EndpointID, cluster datamodel.ClusterID) Entry {
	return Entry{
		Kind:          KindMulticast,
		FabricIndex:   fi,
		LocalEndpoint: local,
		Cluster:       cluster,
		GroupID:       group,
	}
}

// Peer returns the fabric-scoped node the entry targets.
// Only meaningful for unicast entries.
func (e Entry) Peer() fabric.PeerID {
	return fabric.PeerID{FabricIndex: e.FabricIndex, NodeID: e.NodeID}
}

// Validate checks that the fields required by the entry's kind are set.
func (e Entry) Validate() error {
	if !e.FabricIndex.IsValid() {
		return ErrInvalidFabricIndex
	}
	switch e.Kind {
	case KindUnicast:
		if !e.NodeID.IsOperational() {
			return ErrInvalidNodeID
		}
	case KindMulticast:
		if !e.GroupID.IsValid() {
			return ErrInvalidGroupID
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// normalized zeroes the fields that do not belong to the entry's kind.
func (e Entry) normalized() Entry {
	switch e.Kind {
	case KindUnicast:
		e.GroupID = fabric.GroupIDNull
	case KindMulticast:
		e.NodeID = fabric.NodeIDUnspecified
		e.RemoteEndpoint = 0
	}
	return e
}

func (e Entry) String() string {
	if e.Kind == KindMulticast {
		return fmt.Sprintf("group fabric=%d group=0x%04X local=%d cluster=%s",
			e.FabricIndex, uint16(e.GroupID), e.LocalEndpoint, e.Cluster)
	}
	return fmt.Sprintf("unicast fabric=%d node=0x%X local=%d remote=%d cluster=%s",
		e.FabricIndex, uint64(e.NodeID), e.LocalEndpoint, e.RemoteEndpoint, e.Cluster)
}
