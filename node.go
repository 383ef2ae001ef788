// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import "log/slog"

// Partition is one of the buckets of a [*Registry]. Each node lives in
// exactly one partition, which encodes its role and address family.
type Partition int

const (
	// ListeningIPv4 holds IPv4 listeners.
	ListeningIPv4 Partition = iota

	// ListeningIPv6 holds IPv6 listeners.
	ListeningIPv6

	// ConnectingIPv4 holds outbound IPv4 stream sockets not yet connected.
	ConnectingIPv4

	// ConnectingIPv6 holds outbound IPv6 stream sockets not yet connected.
	ConnectingIPv6

	// StreamIPv4 holds established IPv4 stream sockets.
	StreamIPv4

	// StreamIPv6 holds established IPv6 stream sockets.
	StreamIPv6

	// DatagramIPv4 holds bound IPv4 datagram sockets.
	DatagramIPv4

	// DatagramIPv6 holds bound IPv6 datagram sockets.
	DatagramIPv6

	numPartitions
)

// String implements [fmt.Stringer].
func (p Partition) String() string {
	switch p {
	case ListeningIPv4:
		return "listening_ipv4"
	case ListeningIPv6:
		return "listening_ipv6"
	case ConnectingIPv4:
		return "connecting_ipv4"
	case ConnectingIPv6:
		return "connecting_ipv6"
	case StreamIPv4:
		return "stream_ipv4"
	case StreamIPv6:
		return "stream_ipv6"
	case DatagramIPv4:
		return "datagram_ipv4"
	case DatagramIPv6:
		return "datagram_ipv6"
	default:
		return "unknown"
	}
}

// Family returns the address family of the sockets in the partition.
func (p Partition) Family() Family {
	if p%2 == 1 {
		return IPv6
	}
	return IPv4
}

// partitionOf returns the partition with the given IPv4 base for family.
func partitionOf(base Partition, family Family) Partition {
	if family == IPv6 {
		return base + 1
	}
	return base
}

// nodeID identifies a node in the arena. A slot is reused after teardown
// with a bumped generation so that stale identifiers never match.
type nodeID struct {
	slot uint32
	gen  uint32
}

// node is an arena entry.
type node struct {
	buffer    []byte
	gen       uint32
	inUse     bool
	partition Partition
	payload   []byte
	port      uint16
	queued    bool
	sender    Address
	socket    *Socket
	spanID    string
	value     any

	destroyPayload func(payload []byte)
	onConnected    func(n Node)
	onConnection   func(listener Node, sock *Socket, peer Address)
	onData         func(n Node, data []byte)
	onError        func(n Node)
	onReadable     func(n Node)
	onWritable     func(n Node)
}

// Node is a handle to a node registered with a [*Registry].
//
// A node pairs one socket with its partition, callbacks, and optional
// payload. Node is a small value type: copy it freely and compare it
// with ==. Once the node is torn down, the handle becomes stale and every
// method is a no-op returning zero values, even if the registry reuses
// the underlying slot for a new node.
type Node struct {
	r  *Registry
	id nodeID
}

// get returns the arena entry or nil when the handle is stale.
func (n Node) get() *node {
	if n.r == nil {
		return nil
	}
	return n.r.lookup(n.id)
}

// Valid returns whether the node is still registered.
func (n Node) Valid() bool {
	return n.get() != nil
}

// Registry returns the owning registry, or nil for the zero Node.
func (n Node) Registry() *Registry {
	return n.r
}

// Socket returns the node socket, or nil when the handle is stale.
func (n Node) Socket() *Socket {
	if e := n.get(); e != nil {
		return e.socket
	}
	return nil
}

// Partition returns the partition currently holding the node.
func (n Node) Partition() Partition {
	if e := n.get(); e != nil {
		return e.partition
	}
	return numPartitions
}

// Port returns the port a listener or datagram node was added on.
func (n Node) Port() uint16 {
	if e := n.get(); e != nil {
		return e.port
	}
	return 0
}

// SpanID returns the identifier used to correlate the node log events.
func (n Node) SpanID() string {
	if e := n.get(); e != nil {
		return e.spanID
	}
	return ""
}

// Sender returns the sender of the datagram being delivered.
//
// It is non-nil only for the duration of an on-data callback invoked for
// a datagram node.
func (n Node) Sender() Address {
	if e := n.get(); e != nil {
		return e.sender
	}
	return nil
}

// Close marks the node for removal by latching [Closed] on its socket.
//
// The node is torn down by the next [*Registry.Update] pass, after its
// on-error callback has been invoked.
func (n Node) Close() {
	if e := n.get(); e != nil {
		e.socket.latch(Closed, nil)
	}
}

// OnConnection sets the callback invoked by a listener node for each
// accepted connection. Call [*Registry.Adopt] with sock from inside the
// callback to keep the connection, otherwise the registry closes it when
// the callback returns.
func (n Node) OnConnection(fx func(listener Node, sock *Socket, peer Address)) {
	if e := n.get(); e != nil {
		e.onConnection = fx
	}
}

// OnError sets the callback invoked once before the node is torn down.
func (n Node) OnError(fx func(n Node)) {
	if e := n.get(); e != nil {
		e.onError = fx
	}
}

// OnConnected sets the callback invoked when an outbound node connects.
func (n Node) OnConnected(fx func(n Node)) {
	if e := n.get(); e != nil {
		e.onConnected = fx
	}
}

// OnReadable sets the callback invoked when the socket is readable. The
// callback performs its own I/O and suppresses on-data.
func (n Node) OnReadable(fx func(n Node)) {
	if e := n.get(); e != nil {
		e.onReadable = fx
	}
}

// OnWritable sets the callback invoked when the socket is writable.
func (n Node) OnWritable(fx func(n Node)) {
	if e := n.get(); e != nil {
		e.onWritable = fx
	}
}

// OnData sets the callback receiving the bytes the registry reads on
// behalf of the node. The data slice is only valid during the callback.
func (n Node) OnData(fx func(n Node, data []byte)) {
	if e := n.get(); e != nil {
		e.onData = fx
	}
}

// logArgs returns the attributes shared by registry log events.
func (e *node) logArgs() []any {
	return []any{
		slog.Int("handle", int(e.socket.handle)),
		slog.String("partition", e.partition.String()),
		slog.String("protocol", e.socket.kind.String()),
		slog.String("spanID", e.spanID),
	}
}
