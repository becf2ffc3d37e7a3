package controller

import "errors"

// Controller errors.
var (
	// ErrUnsupportedAction is returned when the (cluster, command) pair is
	// not in the clusters action table.
	ErrUnsupportedAction = errors.New("controller: unsupported action")

	// ErrTargetNotBound is returned when the selector references a binding
	// index past the end of the binding table.
	ErrTargetNotBound = errors.New("controller: target not bound")

	// ErrNoMatchingBinding is returned when no selected entry matches the
	// request's local endpoint, cluster and intent.
	ErrNoMatchingBinding = errors.New("controller: no matching binding")

	// ErrPeerUnreachable wraps connect failures reported by the Connector.
	ErrPeerUnreachable = errors.New("controller: peer unreachable")

	// ErrUnexpectedValue is returned when a read delivers a value of the
	// wrong type.
	ErrUnexpectedValue = errors.New("controller: unexpected attribute value")

	// ErrBindingChanged is returned when the binding at a peer index changed
	// while a connect was in flight.
	ErrBindingChanged = errors.New("controller: binding changed during connect")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller: closed")

	// ErrInvalidConfig is returned when a required collaborator is missing.
	ErrInvalidConfig = errors.New("controller: invalid configuration")
)
