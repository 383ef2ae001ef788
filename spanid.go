package socol

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying a registry node.
//
// Every node gets a span ID when it enters the registry and keeps it until
// teardown, including across the connecting -> established relink, so that
// all the log entries concerning the same socket can be correlated.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
