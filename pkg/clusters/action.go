package clusters

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/backkem/matter-hmi/pkg/clusters/generaldiagnostics"
	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/datamodel"
)

// Lookup errors.
var (
	ErrUnknownCluster = errors.New("clusters: unknown cluster")
	ErrUnknownCommand = errors.New("clusters: unknown command")
)

// Action is a supported (cluster, command) pair.
type Action struct {
	Cluster datamodel.ClusterID
	Command datamodel.CommandID

	// Name is the lower-case command name used by the shell.
	Name string

	// Groupcast is true if the command may be sent to a group address.
	Groupcast bool
}

// Path returns the command path of a on the given endpoint.
func (a Action) Path(ep datamodel.EndpointID) datamodel.ConcreteCommandPath {
	return datamodel.ConcreteCommandPath{Endpoint: ep, Cluster: a.Cluster, Command: a.Command}
}

func (a Action) String() string {
	return fmt.Sprintf("%s.%s", ClusterName(a.Cluster), a.Name)
}

// Cluster describes a cluster the switch can drive.
type Cluster struct {
	ID   datamodel.ClusterID
	Name string

	// Report is the primary reportable attribute, subscribed on the remote
	// endpoint the first time a unicast peer is reached.
	Report datamodel.AttributeID

	commands []Action
}

// ReportPath returns the subscription path on the given endpoint.
func (c Cluster) ReportPath(ep datamodel.EndpointID) datamodel.ConcreteAttributePath {
	return datamodel.ConcreteAttributePath{Endpoint: ep, Cluster: c.ID, Attribute: c.Report}
}

// Commands returns the actions of the cluster in command ID order.
func (c Cluster) Commands() []Action {
	out := make([]Action, len(c.commands))
	copy(out, c.commands)
	return out
}

// DeviceInfoPath is read once per peer, alongside the first subscription,
// to show how the peer is connected.
var DeviceInfoPath = datamodel.ConcreteAttributePath{
	Endpoint:  datamodel.RootEndpointID,
	Cluster:   generaldiagnostics.ClusterID,
	Attribute: generaldiagnostics.AttrNetworkInterfaces,
}

type actionKey struct {
	cluster datamodel.ClusterID
	command datamodel.CommandID
}

var (
	clusterTable = map[datamodel.ClusterID]Cluster{}
	actionTable  = map[actionKey]Action{}
)

func register(c Cluster) {
	sort.Slice(c.commands, func(i, j int) bool { return c.commands[i].Command < c.commands[j].Command })
	clusterTable[c.ID] = c
	for _, a := range c.commands {
		actionTable[actionKey{a.Cluster, a.Command}] = a
	}
}

func init() {
	register(Cluster{
		ID:     onoff.ClusterID,
		Name:   "onoff",
		Report: onoff.AttrOnOff,
		commands: []Action{
			{Cluster: onoff.ClusterID, Command: onoff.CmdOff, Name: "off", Groupcast: true},
			{Cluster: onoff.ClusterID, Command: onoff.CmdOn, Name: "on", Groupcast: true},
			{Cluster: onoff.ClusterID, Command: onoff.CmdToggle, Name: "toggle", Groupcast: true},
		},
	})
}

// Lookup resolves a (cluster, command) pair to its action.
func Lookup(cluster datamodel.ClusterID, command datamodel.CommandID) (Action, bool) {
	a, ok := actionTable[actionKey{cluster, command}]
	return a, ok
}

// LookupCluster returns the description of a supported cluster.
func LookupCluster(id datamodel.ClusterID) (Cluster, bool) {
	c, ok := clusterTable[id]
	return c, ok
}

// Supported returns all supported clusters in cluster ID order.
func Supported() []Cluster {
	out := make([]Cluster, 0, len(clusterTable))
	for _, c := range clusterTable {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClusterName returns the short name of a supported cluster, or the hex ID.
func ClusterName(id datamodel.ClusterID) string {
	if c, ok := clusterTable[id]; ok {
		return c.Name
	}
	return id.String()
}

// ParseCluster accepts a cluster name ("onoff") or a numeric ID ("6", "0x0006").
func ParseCluster(s string) (datamodel.ClusterID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range clusterTable {
		if c.Name == s {
			return c.ID, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCluster, s)
	}
	return datamodel.ClusterID(v), nil
}

// ParseAction resolves a command name within a supported cluster.
func ParseAction(cluster datamodel.ClusterID, name string) (Action, error) {
	c, ok := clusterTable[cluster]
	if !ok {
		return Action{}, fmt.Errorf("%w: %s", ErrUnknownCluster, cluster)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range c.commands {
		if a.Name == name {
			return a, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %s.%s", ErrUnknownCommand, c.Name, name)
}
