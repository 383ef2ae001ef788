// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"context"
	"log/slog"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/eapache/queue"
)

// NewRegistry returns a new empty [*Registry].
//
// The cfg argument contains the common configuration. The registry copies
// the fields it needs, so later changes to cfg have no effect.
//
// The logger argument is the [SLogger] to use for structured logging. The
// registry also passes it to the sockets it creates.
func NewRegistry(cfg *Config, logger SLogger) *Registry {
	size := cfg.ReadBufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	return &Registry{
		allocator: cfg.Allocator,
		config: Config{
			ErrClassifier: cfg.ErrClassifier,
			Ops:           cfg.Ops,
			Resolver:      cfg.Resolver,
			TimeNow:       cfg.TimeNow,
		},
		logger:         logger,
		metrics:        cfg.Metrics,
		readBufferSize: size,
		reap:           queue.New(),
		timeNow:        cfg.TimeNow,
	}
}

// Registry is a callback-driven collection of non-blocking sockets.
//
// Each registered socket is wrapped by a [Node] living in one of the
// partitions listed by [Partition]. Calling [*Registry.Update] polls every
// partition and invokes the node callbacks, all synchronously on the
// calling goroutine.
//
// A Registry is not safe for concurrent use. Nodes may be added and
// closed from callbacks invoked by Update.
type Registry struct {
	allocator      Allocator
	config         Config
	free           []uint32
	logger         SLogger
	metrics        *Metrics
	nodes          []*node
	partitions     [numPartitions][]nodeID
	readBufferSize int
	reap           *queue.Queue
	timeNow        func() time.Time
	updating       bool
}

// AddListener adds a non-blocking stream socket listening on port.
//
// Use port zero to let the system choose, in which case [Node.Port]
// returns the chosen port. On failure the socket is closed, no node is
// created, and the returned error is the latched [SocketError] or
// [ErrAllocationFailure].
func (r *Registry) AddListener(port uint16, family Family) (Node, error) {
	sock := r.newSocket(family, Stream)
	sock.Listen(port)
	if err := sock.Err(); err != nil {
		sock.Close()
		return Node{}, err
	}
	return r.insert(sock, partitionOf(ListeningIPv4, family), boundPort(sock, port))
}

// AddOutbound adds a non-blocking stream socket connecting to addr.
//
// The node enters the connecting partition regardless of the immediate
// outcome of the connect attempt, which the next [*Registry.Update] pass
// resolves by invoking on-connected or on-error. An error is returned only
// when the socket cannot be created or the allocator fails.
func (r *Registry) AddOutbound(addr Address) (Node, error) {
	family := IPv4
	if addr != nil {
		family = addr.Family()
	}
	sock := r.newSocket(family, Stream)
	if err := sock.Err(); err != nil {
		sock.Close()
		return Node{}, err
	}
	sock.Connect(addr)
	return r.insert(sock, partitionOf(ConnectingIPv4, family), 0)
}

// AddOutboundDomain is like [*Registry.AddOutbound] but first resolves
// domain and port using [Config.Resolver], blocking until resolution
// completes. A resolution failure latches [FailedToResolveDomain] on the
// node socket, which the next [*Registry.Update] pass reports.
func (r *Registry) AddOutboundDomain(ctx context.Context, family Family, domain, port string) (Node, error) {
	sock := r.newSocket(family, Stream)
	if err := sock.Err(); err != nil {
		sock.Close()
		return Node{}, err
	}
	sock.ConnectDomain(ctx, domain, port)
	return r.insert(sock, partitionOf(ConnectingIPv4, family), 0)
}

// AddDatagram adds a non-blocking datagram socket bound to port.
//
// On bind failure the socket is closed and no node is created.
func (r *Registry) AddDatagram(port uint16, family Family) (Node, error) {
	return r.addDatagram(family, port, 0)
}

// AddDatagramFlow is like [*Registry.AddDatagram] for IPv6 with a flow label.
func (r *Registry) AddDatagramFlow(port uint16, flowLabel uint32) (Node, error) {
	return r.addDatagram(IPv6, port, flowLabel)
}

func (r *Registry) addDatagram(family Family, port uint16, flowLabel uint32) (Node, error) {
	sock := r.newSocket(family, Datagram)
	sock.OpenFlow(port, flowLabel)
	if err := sock.Err(); err != nil {
		sock.Close()
		return Node{}, err
	}
	return r.insert(sock, partitionOf(DatagramIPv4, family), boundPort(sock, port))
}

// Adopt transfers ownership of an already-connected stream socket, or of
// an already-bound datagram socket, to the registry.
//
// The socket is put in non-blocking mode and inserted into the established
// partition matching its kind and family. Typically an on-connection
// callback adopts the socket it receives. On failure the socket is closed.
// Adopting a socket another registry already owns returns
// [ErrAlreadyAdopted] and leaves the socket untouched.
func (r *Registry) Adopt(sock *Socket) (Node, error) {
	runtimex.Assert(sock != nil)
	if sock.owner != nil {
		return Node{}, ErrAlreadyAdopted
	}
	sock.SetBlocking(false)
	if err := sock.Err(); err != nil {
		sock.Close()
		return Node{}, err
	}
	if sock.kind == Datagram {
		return r.insert(sock, partitionOf(DatagramIPv4, sock.family), boundPort(sock, 0))
	}
	return r.insert(sock, partitionOf(StreamIPv4, sock.family), 0)
}

// StopListening marks the listener on port for removal and returns whether
// it found one. The next [*Registry.Update] pass tears the listener down
// after invoking its on-error callback.
func (r *Registry) StopListening(port uint16, family Family) bool {
	for _, id := range r.partitions[partitionOf(ListeningIPv4, family)] {
		if e := r.lookup(id); e != nil && e.port == port && e.socket.err == NoError {
			e.socket.latch(Closed, nil)
			return true
		}
	}
	return false
}

// Partition returns the nodes currently in partition p in insertion order.
func (r *Registry) Partition(p Partition) []Node {
	if p < 0 || p >= numPartitions {
		return nil
	}
	nodes := make([]Node, 0, len(r.partitions[p]))
	for _, id := range r.partitions[p] {
		nodes = append(nodes, Node{r: r, id: id})
	}
	return nodes
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	var count int
	for _, ids := range r.partitions {
		count += len(ids)
	}
	return count
}

// Close tears down every node without invoking any callback.
//
// Payload destructors and [Destroyer] values still run, and every buffer
// goes back to the allocator. The registry is empty and reusable afterwards.
// Calling Close from a callback invoked by [*Registry.Update] panics.
func (r *Registry) Close() {
	runtimex.Assert(!r.updating)
	for p := range r.partitions {
		for len(r.partitions[p]) > 0 {
			r.teardown(r.partitions[p][0])
		}
	}
	for r.reap.Length() > 0 {
		r.reap.Remove()
	}
}

// newSocket creates a non-blocking socket owned by the registry.
func (r *Registry) newSocket(family Family, kind Kind) *Socket {
	sock := NewSocket(&r.config, family, kind, r.logger)
	sock.SetBlocking(false)
	return sock
}

// insert links sock into partition p and returns its handle.
func (r *Registry) insert(sock *Socket, p Partition, port uint16) (Node, error) {
	buffer := r.allocator.Allocate(r.readBufferSize)
	if buffer == nil {
		sock.Close()
		return Node{}, ErrAllocationFailure
	}

	var slot uint32
	if count := len(r.free); count > 0 {
		slot = r.free[count-1]
		r.free = r.free[:count-1]
	} else {
		slot = uint32(len(r.nodes))
		r.nodes = append(r.nodes, &node{})
	}
	e := r.nodes[slot]
	*e = node{
		buffer:    buffer,
		gen:       e.gen,
		inUse:     true,
		partition: p,
		port:      port,
		socket:    sock,
		spanID:    NewSpanID(),
	}
	sock.owner = r

	id := nodeID{slot: slot, gen: e.gen}
	r.partitions[p] = append(r.partitions[p], id)
	r.metrics.nodeAdded(p)
	r.logger.Info("nodeAdd", append(e.logArgs(), slog.Int("port", int(port)), slog.Time("t", r.timeNow()))...)
	return Node{r: r, id: id}, nil
}

// lookup returns the arena entry for id or nil if id is stale.
func (r *Registry) lookup(id nodeID) *node {
	if int(id.slot) >= len(r.nodes) {
		return nil
	}
	e := r.nodes[id.slot]
	if !e.inUse || e.gen != id.gen {
		return nil
	}
	return e
}

// relink moves a node to another partition.
func (r *Registry) relink(id nodeID, to Partition) {
	e := r.lookup(id)
	if e == nil {
		return
	}
	from := e.partition
	r.unlink(id, from)
	e.partition = to
	r.partitions[to] = append(r.partitions[to], id)
	r.metrics.nodeRelinked(from, to)
	r.logger.Info("nodeRelink", append(e.logArgs(), slog.String("from", from.String()), slog.Time("t", r.timeNow()))...)
}

func (r *Registry) unlink(id nodeID, p Partition) {
	ids := r.partitions[p]
	for idx, candidate := range ids {
		if candidate == id {
			r.partitions[p] = append(ids[:idx], ids[idx+1:]...)
			return
		}
	}
}

// teardown releases every resource of the node and frees its slot.
func (r *Registry) teardown(id nodeID) {
	e := r.lookup(id)
	if e == nil {
		return
	}
	r.unlink(id, e.partition)

	args := e.logArgs()
	e.socket.Close()
	status := e.socket.err
	e.socket.owner = nil
	r.releasePayload(e)
	destroyValue(e.value)
	r.allocator.Deallocate(e.buffer)

	p := e.partition
	*e = node{gen: e.gen + 1}
	r.free = append(r.free, id.slot)

	r.metrics.nodeTornDown(p, status)
	r.logger.Info("nodeTeardown", append(args, slog.String("status", status.String()), slog.Time("t", r.timeNow()))...)
}

// boundPort returns the local port of sock, or fallback if unknown.
func boundPort(sock *Socket, fallback uint16) uint16 {
	if fallback != 0 {
		return fallback
	}
	if addr := sock.LocalAddress(); addr != nil {
		return addr.AddrPort().Port()
	}
	return fallback
}
