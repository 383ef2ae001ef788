// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"context"
	"errors"
	"log/slog"
)

// Connect connects the socket to addr.
//
// A blocking socket keeps trying until the connection is established or
// fails. A non-blocking socket returns false immediately while the attempt
// is outstanding and true once connected: call Connect again, or poll for
// [StateConnectSucceeded], to learn the outcome. Any other failure, or an
// address whose family differs from the socket's, latches [ConnectFailed].
func (s *Socket) Connect(addr Address) bool {
	if s.err != NoError {
		return false
	}
	if addr == nil || addr.Family() != s.family {
		s.latch(ConnectFailed, errFamilyMismatch)
		return false
	}
	t0 := s.timeNow()
	for {
		err := s.ops.Connect(s.handle, addr)
		switch {
		case err == nil || errors.Is(err, ErrIsConnected):
			s.logLifecycle("connectDone", t0, nil, slog.String("remoteAddr", addr.String()))
			return true

		case errors.Is(err, ErrInProgress) || errors.Is(err, ErrWouldBlock):
			if !s.blocking {
				return false
			}
			s.Wait(StateWritable | StateException)

		default:
			s.latch(ConnectFailed, err)
			s.logLifecycle("connectDone", t0, err, slog.String("remoteAddr", addr.String()))
			return false
		}
	}
}

// ConnectDomain resolves domain and port using [Config.Resolver] and then
// behaves like [*Socket.Connect].
//
// The domain may be an IP address, "localhost", or a domain name. The port
// may be a number or a service name. A resolution failure latches
// [FailedToResolveDomain].
func (s *Socket) ConnectDomain(ctx context.Context, domain, port string) bool {
	if s.err != NoError {
		return false
	}
	addr, err := s.resolver.Resolve(ctx, s.family, domain, port)
	if err != nil {
		s.latch(FailedToResolveDomain, err)
		return false
	}
	return s.Connect(addr)
}

// connectResult checks the outcome of a non-blocking connect that polling
// reported as completed and latches [ConnectFailed] if it failed.
func (s *Socket) connectResult() bool {
	if s.err != NoError {
		return false
	}
	if err := s.ops.ConnectError(s.handle); err != nil {
		s.latch(ConnectFailed, err)
		return false
	}
	return true
}

// Listen binds the socket to port on the wildcard address and marks it as
// listening. A failure of either step latches [ListenFailed].
func (s *Socket) Listen(port uint16) bool {
	if s.err != NoError {
		return false
	}
	t0 := s.timeNow()
	err := s.ops.SetReuseAddr(s.handle)
	if err == nil {
		err = s.ops.Bind(s.handle, wildcardAddress(s.family, port, 0))
	}
	if err == nil {
		err = s.ops.Listen(s.handle)
	}
	if err != nil {
		s.latch(ListenFailed, err)
	}
	s.logLifecycle("listenDone", t0, err, slog.Int("port", int(port)))
	return err == nil
}

// Accept accepts a pending connection.
//
// On success it returns the connected socket, in blocking mode, and the
// peer address. When no connection is pending it returns false without
// latching anything. A genuine failure latches [AcceptFailed].
func (s *Socket) Accept() (*Socket, Address, bool) {
	if s.err != NoError {
		return nil, nil, false
	}
	t0 := s.timeNow()
	handle, peer, err := s.ops.Accept(s.handle)
	if errors.Is(err, ErrWouldBlock) {
		return nil, nil, false
	}
	if err != nil {
		s.latch(AcceptFailed, err)
		s.logLifecycle("acceptDone", t0, err)
		return nil, nil, false
	}
	client := &Socket{
		blocking:      true,
		errClassifier: s.errClassifier,
		family:        s.family,
		handle:        handle,
		kind:          Stream,
		logger:        s.logger,
		ops:           s.ops,
		resolver:      s.resolver,
		timeNow:       s.timeNow,
	}
	if err := s.ops.SetNonblock(handle, false); err != nil {
		client.latch(FailedToSetBlocking, err)
	}
	var remote string
	if peer != nil {
		remote = peer.String()
	}
	s.logLifecycle("acceptDone", t0, nil,
		slog.Int("clientHandle", int(handle)), slog.String("remoteAddr", remote))
	return client, peer, true
}

// Send sends data and returns the number of bytes actually sent, which may
// be less than len(data) and is zero when sending would block. A failure
// latches [SendFailed].
func (s *Socket) Send(data []byte) int {
	if s.err != NoError {
		return 0
	}
	t0 := s.timeNow()
	count, err := s.ops.Send(s.handle, data)
	if errors.Is(err, ErrWouldBlock) {
		return 0
	}
	if err != nil {
		s.latch(SendFailed, err)
		count = 0
	}
	s.logIO("sendDone", t0, err, slog.Int("ioBufferSize", len(data)), slog.Int("ioBytesCount", count))
	return count
}

// Receive reads into buf and returns the number of bytes received, which
// is zero when receiving would block. Receiving zero bytes into a non-empty
// buffer means the peer closed the connection and latches [Closed]. A
// failure latches [ReceiveFailed].
func (s *Socket) Receive(buf []byte) int {
	if s.err != NoError {
		return 0
	}
	t0 := s.timeNow()
	count, err := s.ops.Recv(s.handle, buf)
	if errors.Is(err, ErrWouldBlock) {
		return 0
	}
	switch {
	case err != nil:
		s.latch(ReceiveFailed, err)
		count = 0
	case count == 0 && len(buf) > 0:
		s.latch(Closed, nil)
	}
	s.logIO("receiveDone", t0, err, slog.Int("ioBufferSize", len(buf)), slog.Int("ioBytesCount", count))
	return count
}

// SendExact sends all of data, returning false if an error is latched first.
//
// SendExact waits for writability between partial sends and therefore
// blocks the caller even when the socket is in non-blocking mode. Within
// an on-writable callback this stalls the whole [*Registry.Update] pass
// until the peer drains its receive buffer.
func (s *Socket) SendExact(data []byte) bool {
	for s.err == NoError {
		if len(data) <= 0 {
			return true
		}
		s.Wait(StateWritable)
		data = data[s.Send(data):]
	}
	return false
}

// ReceiveExact fills buf completely, returning false if an error (including
// [Closed]) is latched first.
//
// Like [*Socket.SendExact], ReceiveExact blocks the caller even when the
// socket is in non-blocking mode.
func (s *Socket) ReceiveExact(buf []byte) bool {
	for s.err == NoError {
		if len(buf) <= 0 {
			return true
		}
		s.Wait(StateReadable)
		buf = buf[s.Receive(buf):]
	}
	return false
}

// Shutdown closes the receive half, the send half, or both halves of the
// connection without releasing the handle.
func (s *Socket) Shutdown(how ShutdownHow) {
	if s.err != NoError {
		return
	}
	t0 := s.timeNow()
	err := s.ops.Shutdown(s.handle, how)
	s.logLifecycle("shutdownDone", t0, err, slog.Int("how", int(how)))
}
