// Package generaldiagnostics describes the parts of the General Diagnostics
// Cluster (0x0033) a controller reads to learn how a peer is attached to the
// network.
package generaldiagnostics

import (
	"strings"

	"github.com/backkem/matter-hmi/pkg/datamodel"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0033
)

// Attribute IDs.
const (
	AttrNetworkInterfaces datamodel.AttributeID = 0x0000
	AttrRebootCount       datamodel.AttributeID = 0x0001
	AttrUpTime            datamodel.AttributeID = 0x0002
)

// InterfaceType is the InterfaceTypeEnum reported per network interface.
type InterfaceType uint8

const (
	InterfaceUnspecified InterfaceType = 0
	InterfaceWiFi        InterfaceType = 1
	InterfaceEthernet    InterfaceType = 2
	InterfaceCellular    InterfaceType = 3
	InterfaceThread      InterfaceType = 4
)

// String returns the label shown in the device table.
func (t InterfaceType) String() string {
	switch t {
	case InterfaceUnspecified:
		return "Unspecified"
	case InterfaceWiFi:
		return "Wi-Fi"
	case InterfaceEthernet:
		return "Ethernet"
	case InterfaceCellular:
		return "LTE"
	case InterfaceThread:
		return "Thread"
	default:
		return "Unknown"
	}
}

// ParseInterfaceType maps a config token ("wifi", "thread", ...) to its type.
func ParseInterfaceType(s string) (InterfaceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified":
		return InterfaceUnspecified, true
	case "wifi", "wi-fi":
		return InterfaceWiFi, true
	case "ethernet":
		return InterfaceEthernet, true
	case "cellular", "lte":
		return InterfaceCellular, true
	case "thread":
		return InterfaceThread, true
	}
	return 0, false
}

// NetworkInterface is one entry of the NetworkInterfaces list attribute,
// reduced to the fields the HMI displays.
type NetworkInterface struct {
	Name        string
	Operational bool
	Type        InterfaceType
}
