// Package onoff describes the client side of the On/Off Cluster (0x0006):
// the identifiers a switch needs to drive a bound light and follow its state.
package onoff

import "github.com/backkem/matter-hmi/pkg/datamodel"

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0006
)

// Attribute IDs.
const (
	AttrOnOff              datamodel.AttributeID = 0x0000
	AttrGlobalSceneControl datamodel.AttributeID = 0x4000
	AttrOnTime             datamodel.AttributeID = 0x4001
	AttrOffWaitTime        datamodel.AttributeID = 0x4002
	AttrStartUpOnOff       datamodel.AttributeID = 0x4003
)

// Command IDs.
const (
	CmdOff    datamodel.CommandID = 0x00
	CmdOn     datamodel.CommandID = 0x01
	CmdToggle datamodel.CommandID = 0x02
)

// Command is one of the field-less commands a switch can send.
type Command datamodel.CommandID

// Commands supported by the switch, by group and unicast alike.
const (
	Off    = Command(CmdOff)
	On     = Command(CmdOn)
	Toggle = Command(CmdToggle)
)

// ID returns the command ID.
func (c Command) ID() datamodel.CommandID {
	return datamodel.CommandID(c)
}

// String returns the name of the command.
func (c Command) String() string {
	switch c {
	case Off:
		return "Off"
	case On:
		return "On"
	case Toggle:
		return "Toggle"
	default:
		return "Unknown"
	}
}

// Apply returns the on/off state a light ends up in after executing c.
// Unknown commands leave the state unchanged.
func (c Command) Apply(current bool) bool {
	switch c {
	case Off:
		return false
	case On:
		return true
	case Toggle:
		return !current
	default:
		return current
	}
}
