// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"log/slog"
	"slices"

	"github.com/bassosimone/runtimex"
)

// Update performs one dispatch pass over every partition.
//
// The pass visits listeners, then connecting nodes, then established
// stream nodes, then datagram nodes, IPv4 before IPv6. Each partition is
// polled once without blocking. Nodes added or relinked by a callback are
// visited by the partitions that come later in the same pass.
//
// Finally, every node whose socket has a latched error, including errors
// latched by callbacks, gets its on-error callback invoked exactly once
// and is then torn down. Nodes added by on-error callbacks are handled by
// the next Update. Update never blocks except inside callbacks.
//
// Calling Update from a callback panics.
func (r *Registry) Update() {
	runtimex.Assert(!r.updating)
	r.updating = true
	defer func() {
		r.updating = false
	}()

	t0 := r.timeNow()
	r.logger.Debug("updateStart", slog.Int("nodes", r.Len()), slog.Time("t", t0))

	r.updateListening(ListeningIPv4)
	r.updateListening(ListeningIPv6)
	r.updateConnecting(ConnectingIPv4)
	r.updateConnecting(ConnectingIPv6)
	r.updateEstablished(StreamIPv4)
	r.updateEstablished(StreamIPv6)
	r.updateEstablished(DatagramIPv4)
	r.updateEstablished(DatagramIPv6)
	r.reapErrored()

	t := r.timeNow()
	r.metrics.updateDone(t.Sub(t0))
	r.logger.Debug("updateDone", slog.Int("nodes", r.Len()), slog.Time("t0", t0), slog.Time("t", t))
}

// poll snapshots the partition and queries all its sockets at once.
func (r *Registry) poll(p Partition) ([]nodeID, []State) {
	ids := slices.Clone(r.partitions[p])
	if len(ids) <= 0 {
		return nil, nil
	}
	sockets := make([]*Socket, len(ids))
	for idx, id := range ids {
		if e := r.lookup(id); e != nil {
			sockets[idx] = e.socket
		}
	}
	return ids, pollSockets(r.config.Ops, sockets, StateAll, false)
}

func (r *Registry) updateListening(p Partition) {
	ids, states := r.poll(p)
	for idx, id := range ids {
		e := r.lookup(id)
		if e == nil {
			continue
		}
		switch st := states[idx]; {
		case st.Has(StateException):
			e.socket.latch(AcceptFailed, errPollException)
		case st.Has(StateNewConnectionAccepted):
			r.acceptAll(id)
		}
		r.schedule(id)
	}
}

// acceptAll accepts every pending connection of a listener.
func (r *Registry) acceptAll(id nodeID) {
	for {
		e := r.lookup(id)
		if e == nil {
			return
		}
		client, peer, ok := e.socket.Accept()
		if !ok {
			return
		}
		r.metrics.connectionAccepted(e.socket.family)
		if e.onConnection != nil {
			e.onConnection(Node{r: r, id: id}, client, peer)
		}
		if client.owner == nil {
			client.Close()
		}
	}
}

func (r *Registry) updateConnecting(p Partition) {
	ids, states := r.poll(p)
	for idx, id := range ids {
		e := r.lookup(id)
		if e == nil {
			continue
		}
		switch st := states[idx]; {
		case st.Has(StateException):
			e.socket.connectResult()
			e.socket.latch(ConnectFailed, errPollException)
		case st.Has(StateConnectSucceeded):
			if !e.socket.connectResult() {
				break
			}
			if e.onConnected != nil {
				e.onConnected(Node{r: r, id: id})
			}
			if e.socket.err == NoError {
				r.relink(id, partitionOf(StreamIPv4, p.Family()))
			}
		}
		r.schedule(id)
	}
}

func (r *Registry) updateEstablished(p Partition) {
	ids, states := r.poll(p)
	for idx, id := range ids {
		e := r.lookup(id)
		if e == nil {
			continue
		}
		st := states[idx]
		if st.Has(StateException) {
			e.socket.latch(Closed, errPollException)
			r.schedule(id)
			continue
		}
		if st.Has(StateReadable) {
			r.deliver(id)
		}
		if st.Has(StateWritable) && e.socket.err == NoError && e.onWritable != nil {
			e.onWritable(Node{r: r, id: id})
		}
		r.schedule(id)
	}
}

// deliver handles a readable established node.
func (r *Registry) deliver(id nodeID) {
	e := r.lookup(id)
	if e == nil {
		return
	}
	if e.onReadable != nil {
		e.onReadable(Node{r: r, id: id})
		return
	}

	var (
		count  int
		sender Address
	)
	if e.socket.kind == Datagram {
		count, sender = e.socket.ReceiveFrom(e.buffer)
		if sender == nil {
			return
		}
	} else {
		count = e.socket.Receive(e.buffer)
		// On peer close Receive latches Closed and only on-error reports it
		if count <= 0 {
			return
		}
	}
	r.metrics.received(e.partition, count)

	if e.onData == nil {
		return
	}
	e.sender = sender
	e.onData(Node{r: r, id: id}, e.buffer[:count])
	e.sender = nil
}

// schedule queues the node for teardown if its socket has a latched error.
func (r *Registry) schedule(id nodeID) {
	e := r.lookup(id)
	if e == nil || e.queued || e.socket.err == NoError {
		return
	}
	e.queued = true
	r.reap.Add(id)
}

// reapErrored invokes on-error and tears down every errored node that
// existed when reaping began, including nodes whose errors are latched by
// other on-error callbacks. Nodes added by on-error callbacks are left for
// the next pass, so retrying from on-error cannot keep Update running.
func (r *Registry) reapErrored() {
	var existing []nodeID
	for p := range r.partitions {
		existing = append(existing, r.partitions[p]...)
	}
	for {
		for _, id := range existing {
			r.schedule(id)
		}
		if r.reap.Length() <= 0 {
			return
		}
		for r.reap.Length() > 0 {
			id := r.reap.Remove().(nodeID)
			e := r.lookup(id)
			if e == nil {
				continue
			}
			if e.onError != nil {
				e.onError(Node{r: r, id: id})
			}
			r.teardown(id)
		}
	}
}
