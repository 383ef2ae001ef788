// SPDX-License-Identifier: GPL-3.0-or-later

package socol

// NewPoller returns a new [*Poller].
//
// The cfg argument contains the common configuration.
func NewPoller(cfg *Config) *Poller {
	return &Poller{Ops: cfg.Ops}
}

// Poller queries or waits for the readiness of many sockets at once.
//
// When several sockets are ready no ordering is implied: the caller must
// inspect every returned [State]. Sockets with a latched error are not
// polled and always report [StateNone].
type Poller struct {
	// Ops contains the platform socket operations.
	//
	// Set by [NewPoller] from [Config.Ops].
	Ops SocketOps
}

// Query returns the readiness of each socket without blocking.
//
// The i-th returned [State] belongs to the i-th socket. A platform failure
// sets every state to [StateNone].
func (p *Poller) Query(sockets ...*Socket) []State {
	return pollSockets(p.Ops, sockets, StateAll, false)
}

// Wait blocks until at least one socket is in one of the states in interest.
//
// There is no timeout: callers that need one should call [*Poller.Query]
// in a loop. Wait returns immediately when no socket can be polled. The
// returned states are masked by interest.
func (p *Poller) Wait(interest State, sockets ...*Socket) []State {
	return pollSockets(p.Ops, sockets, interest, true)
}

// State returns the readiness of the socket without blocking.
func (s *Socket) State() State {
	return pollSockets(s.ops, []*Socket{s}, StateAll, false)[0]
}

// Wait blocks until the socket is in one of the states in interest.
//
// Wait returns [StateNone] immediately if an error has been latched.
func (s *Socket) Wait(interest State) State {
	return pollSockets(s.ops, []*Socket{s}, interest, true)[0]
}

// pollSockets is the common implementation of every poll operation.
func pollSockets(ops SocketOps, sockets []*Socket, interest State, block bool) []State {
	states := make([]State, len(sockets))
	handles := make([]Handle, 0, len(sockets))
	index := make([]int, 0, len(sockets))
	for idx, s := range sockets {
		if s == nil || s.err != NoError || s.handle == InvalidHandle {
			continue
		}
		handles = append(handles, s.handle)
		index = append(index, idx)
	}
	if len(handles) <= 0 {
		return states
	}
	ready := make([]State, len(handles))
	if err := ops.Poll(handles, interest, ready, block); err != nil {
		return states
	}
	for idx, st := range ready {
		states[index[idx]] = st
	}
	return states
}
