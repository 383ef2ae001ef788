// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"errors"
	"log/slog"
	"time"
)

// NewTCPSocket creates an IPv4 stream [*Socket].
func NewTCPSocket(cfg *Config, logger SLogger) *Socket {
	return NewSocket(cfg, IPv4, Stream, logger)
}

// NewTCPSocket6 creates an IPv6 stream [*Socket].
func NewTCPSocket6(cfg *Config, logger SLogger) *Socket {
	return NewSocket(cfg, IPv6, Stream, logger)
}

// NewUDPSocket creates an IPv4 datagram [*Socket].
func NewUDPSocket(cfg *Config, logger SLogger) *Socket {
	return NewSocket(cfg, IPv4, Datagram, logger)
}

// NewUDPSocket6 creates an IPv6 datagram [*Socket].
func NewUDPSocket6(cfg *Config, logger SLogger) *Socket {
	return NewSocket(cfg, IPv6, Datagram, logger)
}

// NewSocket creates a [*Socket] of the given family and kind.
//
// The cfg argument contains the common configuration.
//
// The logger argument is the [SLogger] to use for structured logging.
//
// The returned socket is never nil. On failure it has latched
// [FailedToCreateSocket], or [SubsystemFailure] when the platform does
// not support sockets. A new socket is in blocking mode.
func NewSocket(cfg *Config, family Family, kind Kind, logger SLogger) *Socket {
	s := newSocket(cfg, family, kind, logger, InvalidHandle)
	t0 := s.timeNow()
	handle, err := s.ops.Socket(family, kind)
	switch {
	case errors.Is(err, ErrUnsupported):
		s.latch(SubsystemFailure, err)
	case err != nil:
		s.latch(FailedToCreateSocket, err)
	default:
		s.handle = handle
	}
	s.logLifecycle("socketCreate", t0, err)
	return s
}

// newSocket constructs a [*Socket] wrapping an existing handle.
func newSocket(cfg *Config, family Family, kind Kind, logger SLogger, handle Handle) *Socket {
	return &Socket{
		blocking:      true,
		errClassifier: cfg.ErrClassifier,
		family:        family,
		handle:        handle,
		kind:          kind,
		logger:        logger,
		ops:           cfg.Ops,
		resolver:      cfg.Resolver,
		timeNow:       cfg.TimeNow,
	}
}

// Socket is a TCP or UDP socket with a latched error state.
//
// Operations never return errors directly. A failure latches a [SocketError]
// that [*Socket.Err] reports, and from then on every operation is a no-op
// returning a zero or false result without calling into the platform.
// "Would block" is not an error: it yields a successful zero-progress result.
//
// A Socket is not safe for concurrent use.
type Socket struct {
	blocking      bool
	cause         error
	err           SocketError
	errClassifier ErrClassifier
	family        Family
	handle        Handle
	kind          Kind
	logger        SLogger
	ops           SocketOps
	owner         *Registry
	resolver      Resolver
	timeNow       func() time.Time
}

// Err returns the latched [SocketError], or nil if none has been latched.
func (s *Socket) Err() error {
	if s.err == NoError {
		return nil
	}
	return s.err
}

// Status returns the latched [SocketError], which is [NoError] while the
// socket is usable.
func (s *Socket) Status() SocketError {
	return s.err
}

// Cause returns the platform error that caused the latched [SocketError],
// if any. It is meant for logging and diagnostics.
func (s *Socket) Cause() error {
	return s.cause
}

// Valid returns whether no error has been latched.
func (s *Socket) Valid() bool {
	return s.err == NoError
}

// Handle returns the native handle, or [InvalidHandle] after [*Socket.Close].
func (s *Socket) Handle() Handle {
	return s.handle
}

// Family returns the socket address family.
func (s *Socket) Family() Family {
	return s.family
}

// Kind returns the socket type.
func (s *Socket) Kind() Kind {
	return s.kind
}

// Blocking returns whether the socket is in blocking mode.
func (s *Socket) Blocking() bool {
	return s.blocking
}

// SetBlocking puts the socket in blocking or non-blocking mode.
//
// A failure latches [FailedToSetBlocking].
func (s *Socket) SetBlocking(blocking bool) {
	if s.err != NoError {
		return
	}
	if err := s.ops.SetNonblock(s.handle, !blocking); err != nil {
		s.latch(FailedToSetBlocking, err)
		return
	}
	s.blocking = blocking
}

// LocalAddress returns the address the socket is bound to, or nil.
//
// This is useful to learn the port chosen by the system after
// listening or opening on port zero.
func (s *Socket) LocalAddress() Address {
	if s.err != NoError {
		return nil
	}
	addr, err := s.ops.LocalAddr(s.handle)
	if err != nil {
		return nil
	}
	return addr
}

// Close releases the native handle.
//
// Close latches [Closed] unless another error was latched before. The
// handle is released exactly once and subsequent calls are no-ops.
func (s *Socket) Close() {
	s.latch(Closed, nil)
	if s.handle == InvalidHandle {
		return
	}
	t0 := s.timeNow()
	err := s.ops.Close(s.handle)
	s.logLifecycle("closeDone", t0, err)
	s.handle = InvalidHandle
}

// latch records code and cause unless an error is already latched.
func (s *Socket) latch(code SocketError, cause error) {
	if s.err != NoError {
		return
	}
	s.err = code
	s.cause = cause
}

// logLifecycle emits an Info event about the socket.
func (s *Socket) logLifecycle(msg string, t0 time.Time, err error, attrs ...any) {
	s.logger.Info(msg, s.logArgs(t0, err, attrs)...)
}

// logIO emits a Debug event about an I/O operation.
func (s *Socket) logIO(msg string, t0 time.Time, err error, attrs ...any) {
	s.logger.Debug(msg, s.logArgs(t0, err, attrs)...)
}

func (s *Socket) logArgs(t0 time.Time, err error, attrs []any) []any {
	args := []any{
		slog.Any("err", err),
		slog.String("errClass", s.errClassifier.Classify(err)),
		slog.String("family", s.family.String()),
		slog.Int("handle", int(s.handle)),
		slog.String("protocol", s.kind.String()),
		slog.String("status", s.err.String()),
		slog.Time("t0", t0),
		slog.Time("t", s.timeNow()),
	}
	return append(args, attrs...)
}
