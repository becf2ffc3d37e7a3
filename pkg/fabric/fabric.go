// Package fabric defines the identifiers that scope a peer on a Matter
// fabric: the local fabric index, operational node IDs and group IDs.
//
// A binding entry never addresses a node by node ID alone. Node IDs are only
// unique inside a fabric, so every peer reference in this module is a
// (FabricIndex, NodeID) pair, see PeerID.
package fabric

import "fmt"

// FabricIndex is the local, per-node handle of a fabric. 0 is unassigned.
type FabricIndex uint8

// IsValid reports whether f lies in 1..254.
func (f FabricIndex) IsValid() bool {
	return f != 0 && f != 0xFF
}

func (f FabricIndex) String() string {
	if !f.IsValid() {
		return fmt.Sprintf("fabric(%d, invalid)", uint8(f))
	}
	return fmt.Sprintf("fabric(%d)", uint8(f))
}

// NodeID is a 64-bit node identifier.
type NodeID uint64

// NodeIDUnspecified is the zero node ID carried by group bindings.
const NodeIDUnspecified NodeID = 0

// maxOperational is the last node ID below the group and temporary ranges.
const maxOperational NodeID = 0xFFFF_FFFE_FFFF_FFFD

// IsOperational reports whether n can address a single operational node.
func (n NodeID) IsOperational() bool {
	return n != NodeIDUnspecified && n <= maxOperational
}

func (n NodeID) String() string {
	return fmt.Sprintf("node(0x%X)", uint64(n))
}

// GroupID is a 16-bit group identifier.
type GroupID uint16

// GroupIDNull never addresses a group.
const GroupIDNull GroupID = 0

// IsValid reports whether g is not the null group.
func (g GroupID) IsValid() bool { return g != GroupIDNull }

func (g GroupID) String() string {
	return fmt.Sprintf("group(0x%04X)", uint16(g))
}

// PeerID is an operational node ID scoped to a local fabric.
type PeerID struct {
	FabricIndex FabricIndex
	NodeID      NodeID
}

// IsValid reports whether both halves are usable.
func (p PeerID) IsValid() bool {
	return p.FabricIndex.IsValid() && p.NodeID.IsOperational()
}

// String returns "<fabric>:0x<node>", the form used in log lines and
// accepted by the shell.
func (p PeerID) String() string {
	return fmt.Sprintf("%d:0x%X", uint8(p.FabricIndex), uint64(p.NodeID))
}
