// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import "strings"

// State is a readiness bitmask computed by polling a socket.
//
// A State is computed fresh on every poll and never cached.
type State uint8

const (
	// StateNone means that no other state applies.
	StateNone State = 0

	// StateWritable means that send buffer space is available. Large
	// sends may still block.
	StateWritable State = 1

	// StateReadable means that data is available, so the next receive
	// does not block.
	StateReadable State = 2

	// StateException means an exceptional condition, e.g., a failed
	// connection attempt.
	StateException State = 4

	// StateNewConnectionAccepted is how a listening socket signals a
	// pending connection.
	StateNewConnectionAccepted = StateReadable

	// StateConnectSucceeded is how a connecting socket signals that the
	// connection attempt has completed.
	StateConnectSucceeded = StateWritable

	// StateAll is the union of every readiness bit.
	StateAll = StateReadable | StateWritable | StateException
)

// Has returns whether all the bits in want are set.
func (s State) Has(want State) bool {
	return s&want == want
}

// String returns a "|"-separated list of the set bits (e.g., "readable|writable").
func (s State) String() string {
	if s == StateNone {
		return "none"
	}
	var parts []string
	if s&StateReadable != 0 {
		parts = append(parts, "readable")
	}
	if s&StateWritable != 0 {
		parts = append(parts, "writable")
	}
	if s&StateException != 0 {
		parts = append(parts, "exception")
	}
	return strings.Join(parts, "|")
}
