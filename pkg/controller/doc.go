// Package controller turns local triggers into remote actions against the
// peers and groups in a binding table.
//
// A trigger becomes a Request. The Controller resolves it against the
// binding table and the clusters action table, then for each selected entry
// either sends a group command (fire and forget) or asks the Connector for a
// session and continues from the connect callback. The first time a unicast
// peer is reached the continuation reads the peer's network interfaces and
// subscribes to the cluster's reportable attribute before invoking the
// command; later triggers only invoke.
//
// # Threading
//
// All controller state is owned by one worker.Worker. Dispatch, every
// connect/read/subscribe/invoke callback and every Listener notification run
// as work items on that worker. Collaborators may call back from any
// goroutine; the controller re-posts the outcome to the worker.
//
// # Subscription flag
//
// The per-peer Subscribed flag is set when the first connect callback runs,
// before the read and subscribe are issued, and is never reverted by a
// failed subscribe. Two triggers racing on the same peer therefore produce
// one subscription. Only Unbind and FactoryReset clear a flag.
package controller
