// Package datamodel holds the interaction model identifiers shared by the
// dispatcher, the cluster tables and the transport collaborators.
package datamodel

import "fmt"

// EndpointID, ClusterID, AttributeID and CommandID are the numeric
// identifiers of the data model, sized as on the wire.
type (
	EndpointID  uint16
	ClusterID   uint32
	AttributeID uint32
	CommandID   uint32
)

const (
	// RootEndpointID hosts the node-wide utility clusters.
	RootEndpointID EndpointID = 0

	// EndpointWildcard matches every endpoint of a node. Bindings never
	// carry it.
	EndpointWildcard EndpointID = 0xFFFF
)

func (e EndpointID) String() string {
	if e == EndpointWildcard {
		return "ep:*"
	}
	return fmt.Sprintf("ep:%d", uint16(e))
}

func (c ClusterID) String() string {
	return fmt.Sprintf("0x%04X", uint32(c))
}

// ConcreteAttributePath names one attribute on one endpoint.
type ConcreteAttributePath struct {
	Endpoint  EndpointID
	Cluster   ClusterID
	Attribute AttributeID
}

func (p ConcreteAttributePath) String() string {
	return fmt.Sprintf("%s/%s/0x%04X", p.Endpoint, p.Cluster, uint32(p.Attribute))
}

// ConcreteCommandPath names one command on one endpoint.
type ConcreteCommandPath struct {
	Endpoint EndpointID
	Cluster  ClusterID
	Command  CommandID
}

func (p ConcreteCommandPath) String() string {
	return fmt.Sprintf("%s/%s/0x%02X", p.Endpoint, p.Cluster, uint32(p.Command))
}
