// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"errors"
	"log/slog"
)

// Open binds a datagram socket to port on the wildcard address.
//
// Use port zero to let the system choose and [*Socket.LocalAddress] to
// learn the chosen port. A failure latches [BindFailed].
func (s *Socket) Open(port uint16) bool {
	return s.OpenFlow(port, 0)
}

// OpenFlow is like [*Socket.Open] but also carries an IPv6 flow label in
// the bind address. The flow label is ignored for IPv4 sockets.
func (s *Socket) OpenFlow(port uint16, flowLabel uint32) bool {
	if s.err != NoError {
		return false
	}
	t0 := s.timeNow()
	err := s.ops.Bind(s.handle, wildcardAddress(s.family, port, flowLabel))
	if err != nil {
		s.latch(BindFailed, err)
	}
	s.logLifecycle("openDone", t0, err, slog.Int("port", int(port)))
	return err == nil
}

// SendTo sends data as a single datagram to addr and returns the number of
// bytes sent, which is zero when sending would block. A failure, including
// an address of the wrong family, latches [SendFailed].
func (s *Socket) SendTo(addr Address, data []byte) int {
	if s.err != NoError {
		return 0
	}
	if addr == nil || addr.Family() != s.family {
		s.latch(SendFailed, errFamilyMismatch)
		return 0
	}
	t0 := s.timeNow()
	count, err := s.ops.SendTo(s.handle, addr, data)
	if errors.Is(err, ErrWouldBlock) {
		return 0
	}
	if err != nil {
		s.latch(SendFailed, err)
		count = 0
	}
	s.logIO("sendToDone", t0, err, slog.String("remoteAddr", addr.String()),
		slog.Int("ioBufferSize", len(data)), slog.Int("ioBytesCount", count))
	return count
}

// ReceiveFrom receives a single datagram into buf and returns its size and
// sender. Excess bytes of a datagram larger than buf are discarded.
//
// When receiving would block it returns zero and a nil sender. An empty
// datagram yields zero and a non-nil sender, and does not latch [Closed]
// since datagram sockets have no connection to close. A failure latches
// [ReceiveFailed].
func (s *Socket) ReceiveFrom(buf []byte) (int, Address) {
	if s.err != NoError {
		return 0, nil
	}
	t0 := s.timeNow()
	count, sender, err := s.ops.RecvFrom(s.handle, buf)
	if errors.Is(err, ErrWouldBlock) {
		return 0, nil
	}
	if err != nil {
		s.latch(ReceiveFailed, err)
		s.logIO("receiveFromDone", t0, err, slog.Int("ioBufferSize", len(buf)))
		return 0, nil
	}
	var remote string
	if sender != nil {
		remote = sender.String()
	}
	s.logIO("receiveFromDone", t0, nil, slog.String("remoteAddr", remote),
		slog.Int("ioBufferSize", len(buf)), slog.Int("ioBytesCount", count))
	return count, sender
}
