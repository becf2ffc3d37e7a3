// Package clusters is the closed table of (cluster, command) actions the
// switch can dispatch through its bindings.
//
// Each supported cluster declares the commands it accepts, whether they may
// go out as group commands, and the attribute a unicast peer is subscribed
// to on first contact. Dispatch resolves a request against this table once;
// nothing downstream switches on raw cluster or command IDs.
//
// # Subpackages
//
//   - clusters/onoff: On/Off Cluster (0x0006)
//   - clusters/generaldiagnostics: General Diagnostics Cluster (0x0033)
package clusters
