// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import "errors"

// SocketError is the error state latched by a [*Socket].
//
// The state is sticky: once a socket latches a value other than [NoError]
// every further operation on it is a no-op that returns a zero or false
// result without calling into the platform. Values are mutually exclusive
// and the first one latched wins.
//
// SocketError implements error, so callers can write:
//
//	if errors.Is(sock.Err(), socol.ConnectFailed) { ... }
type SocketError int

const (
	// NoError means that no error has been latched.
	NoError SocketError = iota

	// SubsystemFailure means the platform has no usable socket subsystem.
	SubsystemFailure

	// FailedToCreateSocket means the socket could not be created.
	FailedToCreateSocket

	// SendFailed means a send operation failed.
	SendFailed

	// ReceiveFailed means a receive operation failed.
	ReceiveFailed

	// ListenFailed means binding or listening on a port failed.
	ListenFailed

	// BindFailed means binding a datagram socket to a port failed.
	BindFailed

	// ConnectFailed means the connection attempt failed.
	ConnectFailed

	// AcceptFailed means accepting on a listening socket failed.
	AcceptFailed

	// FailedToSetBlocking means changing the blocking mode failed.
	FailedToSetBlocking

	// FailedToResolveDomain means resolving the peer's domain failed.
	FailedToResolveDomain

	// Closed means the socket was closed locally or by the peer. It is a
	// terminal state rather than an exceptional one.
	Closed
)

var socketErrorNames = [...]string{
	NoError:               "none",
	SubsystemFailure:      "subsystem_failure",
	FailedToCreateSocket:  "failed_to_create_socket",
	SendFailed:            "send_failed",
	ReceiveFailed:         "receive_failed",
	ListenFailed:          "listen_failed",
	BindFailed:            "bind_failed",
	ConnectFailed:         "connect_failed",
	AcceptFailed:          "accept_failed",
	FailedToSetBlocking:   "failed_to_set_blocking",
	FailedToResolveDomain: "failed_to_resolve_domain",
	Closed:                "closed",
}

// String returns a snake_case name suitable for logs and metric labels.
func (e SocketError) String() string {
	if e < 0 || int(e) >= len(socketErrorNames) {
		return "unknown"
	}
	return socketErrorNames[e]
}

// Error implements error.
func (e SocketError) Error() string {
	return "socol: " + e.String()
}

// ErrAllocationFailure indicates that the registry's [Allocator] did not
// return a buffer of the requested size.
var ErrAllocationFailure = errors.New("socol: allocation failure")

// ErrStaleNode indicates that a [Node] refers to a node that has been torn down.
var ErrStaleNode = errors.New("socol: stale node")

// ErrAlreadyAdopted indicates that a [*Socket] is already owned by a [*Registry].
var ErrAlreadyAdopted = errors.New("socol: socket already owned by a registry")

// errFamilyMismatch is the cause latched when an address of one family
// is used with a socket of the other family.
var errFamilyMismatch = errors.New("socol: address family mismatch")

// errPollException is the cause latched when polling reports an exception.
var errPollException = errors.New("socol: exceptional condition on socket")
