// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import "errors"

// Handle is a native socket handle.
type Handle int

// InvalidHandle is the value of a [Handle] that is not open.
const InvalidHandle Handle = -1

// Kind is the socket type.
type Kind int

const (
	// Stream is a TCP socket.
	Stream Kind = iota

	// Datagram is a UDP socket.
	Datagram
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case Stream:
		return "tcp"
	case Datagram:
		return "udp"
	default:
		return "unknown"
	}
}

// ShutdownHow selects which half of a connection [*Socket.Shutdown] closes.
type ShutdownHow int

const (
	// ShutdownReceive disallows further receives.
	ShutdownReceive ShutdownHow = iota

	// ShutdownSend disallows further sends.
	ShutdownSend

	// ShutdownBoth disallows further sends and receives.
	ShutdownBoth
)

// Transient conditions that [SocketOps] implementations must report using
// these sentinels (possibly wrapped) so that the socket layer can tell
// them apart from hard failures without knowing platform error codes.
var (
	// ErrWouldBlock means the operation cannot progress without blocking.
	ErrWouldBlock = errors.New("socol: operation would block")

	// ErrInProgress means a non-blocking connect is still outstanding.
	ErrInProgress = errors.New("socol: operation in progress")

	// ErrIsConnected means the socket is already connected.
	ErrIsConnected = errors.New("socol: socket is already connected")

	// ErrUnsupported means the platform does not support sockets.
	ErrUnsupported = errors.New("socol: sockets not supported on this platform")
)

// SocketOps is the set of platform socket operations.
//
// Exactly one implementation exists per target platform and [NewSocketOps]
// returns it. The rest of the package never branches on the platform. Tests
// and alternative runtimes may inject their own implementation through
// [Config.Ops].
//
// Implementations translate platform error codes for "would block",
// "in progress", and "already connected" into [ErrWouldBlock],
// [ErrInProgress], and [ErrIsConnected] and return any other failure as is.
type SocketOps interface {
	// Socket creates a socket of the given family and kind.
	Socket(family Family, kind Kind) (Handle, error)

	// SetNonblock toggles non-blocking mode.
	SetNonblock(h Handle, nonblocking bool) error

	// SetReuseAddr allows binding to an address in TIME_WAIT.
	SetReuseAddr(h Handle) error

	// Bind binds the socket to the given local address.
	Bind(h Handle, addr Address) error

	// Listen marks a bound stream socket as listening.
	Listen(h Handle) error

	// Accept accepts a pending connection and returns its peer address.
	Accept(h Handle) (Handle, Address, error)

	// Connect starts or continues connecting to addr.
	Connect(h Handle, addr Address) error

	// ConnectError returns the error, if any, of a completed non-blocking connect.
	ConnectError(h Handle) error

	// LocalAddr returns the address the socket is bound to.
	LocalAddr(h Handle) (Address, error)

	// Send sends data on a connected socket.
	Send(h Handle, data []byte) (int, error)

	// Recv receives data from a connected socket.
	Recv(h Handle, buf []byte) (int, error)

	// SendTo sends a datagram to addr.
	SendTo(h Handle, addr Address, data []byte) (int, error)

	// RecvFrom receives a datagram and returns the sender address.
	RecvFrom(h Handle, buf []byte) (int, Address, error)

	// Shutdown closes one or both halves of a connection.
	Shutdown(h Handle, how ShutdownHow) error

	// Close releases the handle.
	Close(h Handle) error

	// Poll writes the readiness of each handle, masked by interest, into
	// states, which has the same length as handles. When block is false
	// Poll returns immediately, otherwise it waits with no timeout until
	// at least one handle satisfies interest.
	Poll(handles []Handle, interest State, states []State, block bool) error
}
