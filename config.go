// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"net"
	"time"
)

// DefaultReadBufferSize is the default size of the per-node buffer that
// [*Registry.Update] uses to read data before invoking on-data callbacks.
const DefaultReadBufferSize = 1024

// Config holds common configuration for sockets and registries.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Allocator allocates node buffers and payloads in a [*Registry].
	//
	// Set by [NewConfig] to [DefaultAllocator].
	Allocator Allocator

	// Dialer is used by [*DNSResolver] to reach the DNS server.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Metrics optionally collects registry metrics.
	//
	// Set by [NewConfig] to nil, which disables metrics.
	Metrics *Metrics

	// Ops contains the platform socket operations.
	//
	// Set by [NewConfig] to [NewSocketOps].
	Ops SocketOps

	// ReadBufferSize is the size of the per-node read buffer.
	//
	// Set by [NewConfig] to [DefaultReadBufferSize].
	ReadBufferSize int

	// Resolver resolves domain names for [*Socket.ConnectDomain] and
	// [*Registry.AddOutboundDomain].
	//
	// Set by [NewConfig] to [NewNetResolver].
	Resolver Resolver

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Allocator:      DefaultAllocator(),
		Dialer:         &net.Dialer{},
		ErrClassifier:  DefaultErrClassifier,
		Metrics:        nil,
		Ops:            NewSocketOps(),
		ReadBufferSize: DefaultReadBufferSize,
		Resolver:       NewNetResolver(),
		TimeNow:        time.Now,
	}
}
