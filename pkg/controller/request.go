package controller

import (
	"fmt"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/datamodel"
)

// Selector picks the binding entries a request addresses: one peer index or
// every entry of the request's cluster.
type Selector struct {
	all   bool
	index binding.PeerIndex
}

// All selects every entry bound to the request's local endpoint and cluster.
func All() Selector {
	return Selector{all: true}
}

// Target selects the binding at peer index p.
func Target(p binding.PeerIndex) Selector {
	return Selector{index: p}
}

// IsAll reports whether the selector addresses every matching entry.
func (s Selector) IsAll() bool {
	return s.all
}

// Index returns the selected peer index, 0 for All.
func (s Selector) Index() binding.PeerIndex {
	if s.all {
		return 0
	}
	return s.index
}

func (s Selector) String() string {
	if s.all {
		return "all"
	}
	return fmt.Sprintf("#%d", s.index)
}

// Intent restricts which kind of binding a request uses.
type Intent uint8

const (
	// IntentAuto uses each entry according to its own kind.
	IntentAuto Intent = iota
	// IntentUnicast skips group entries.
	IntentUnicast
	// IntentGroup skips unicast entries.
	IntentGroup
)

func (i Intent) String() string {
	switch i {
	case IntentUnicast:
		return "unicast"
	case IntentGroup:
		return "group"
	default:
		return "auto"
	}
}

func (i Intent) accepts(k binding.Kind) bool {
	switch i {
	case IntentUnicast:
		return k == binding.KindUnicast
	case IntentGroup:
		return k == binding.KindMulticast
	default:
		return true
	}
}

// Request is one trigger: a command for the bindings of a local endpoint.
type Request struct {
	// ID correlates log lines. RequestAction assigns one when empty.
	ID string

	LocalEndpoint datamodel.EndpointID
	Cluster       datamodel.ClusterID
	Command       datamodel.CommandID
	Target        Selector
	Intent        Intent
}

func (r Request) String() string {
	return fmt.Sprintf("%s ep=%d cluster=%s cmd=0x%02X target=%s intent=%s",
		r.ID, r.LocalEndpoint, r.Cluster, uint32(r.Command), r.Target, r.Intent)
}
