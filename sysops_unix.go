//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package socol

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// NewSocketOps returns the [SocketOps] for the current platform.
func NewSocketOps() SocketOps {
	return unixSocketOps{}
}

// unixSocketOps implements [SocketOps] using BSD sockets and poll(2).
type unixSocketOps struct{}

var _ SocketOps = unixSocketOps{}

// Socket implements [SocketOps].
func (unixSocketOps) Socket(family Family, kind Kind) (Handle, error) {
	domain := unix.AF_INET
	if family == IPv6 {
		domain = unix.AF_INET6
	}
	typ, proto := unix.SOCK_STREAM, unix.IPPROTO_TCP
	if kind == Datagram {
		typ, proto = unix.SOCK_DGRAM, unix.IPPROTO_UDP
	}
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return InvalidHandle, err
	}
	unix.CloseOnExec(fd)
	// IPv6 sockets never accept IPv4-mapped traffic, so the IPv4 and the
	// IPv6 partitions can bind the same port.
	if domain == unix.AF_INET6 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			unix.Close(fd)
			return InvalidHandle, err
		}
	}
	return Handle(fd), nil
}

// SetNonblock implements [SocketOps].
func (unixSocketOps) SetNonblock(h Handle, nonblocking bool) error {
	return unix.SetNonblock(int(h), nonblocking)
}

// SetReuseAddr implements [SocketOps].
func (unixSocketOps) SetReuseAddr(h Handle) error {
	return unix.SetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// Bind implements [SocketOps].
func (unixSocketOps) Bind(h Handle, addr Address) error {
	return unix.Bind(int(h), toSockaddr(addr))
}

// Listen implements [SocketOps].
func (unixSocketOps) Listen(h Handle) error {
	return unix.Listen(int(h), unix.SOMAXCONN)
}

// Accept implements [SocketOps].
func (unixSocketOps) Accept(h Handle) (Handle, Address, error) {
	fd, sa, err := unix.Accept(int(h))
	if err != nil {
		return InvalidHandle, nil, mapErrno(err)
	}
	unix.CloseOnExec(fd)
	return Handle(fd), fromSockaddr(sa), nil
}

// Connect implements [SocketOps].
func (unixSocketOps) Connect(h Handle, addr Address) error {
	err := unix.Connect(int(h), toSockaddr(addr))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EALREADY), errors.Is(err, unix.EINTR):
		return fmt.Errorf("%w: %w", ErrInProgress, err)
	case errors.Is(err, unix.EISCONN):
		return fmt.Errorf("%w: %w", ErrIsConnected, err)
	default:
		return mapErrno(err)
	}
}

// ConnectError implements [SocketOps].
func (unixSocketOps) ConnectError(h Handle) error {
	code, err := unix.GetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if code != 0 {
		return unix.Errno(code)
	}
	return nil
}

// LocalAddr implements [SocketOps].
func (unixSocketOps) LocalAddr(h Handle) (Address, error) {
	sa, err := unix.Getsockname(int(h))
	if err != nil {
		return nil, err
	}
	return fromSockaddr(sa), nil
}

// Send implements [SocketOps].
func (unixSocketOps) Send(h Handle, data []byte) (int, error) {
	count, err := unix.Write(int(h), data)
	if err != nil {
		return 0, mapErrno(err)
	}
	return count, nil
}

// Recv implements [SocketOps].
func (unixSocketOps) Recv(h Handle, buf []byte) (int, error) {
	count, err := unix.Read(int(h), buf)
	if err != nil {
		return 0, mapErrno(err)
	}
	return count, nil
}

// SendTo implements [SocketOps].
//
// A datagram is sent whole or not at all, so success means len(data) bytes.
func (unixSocketOps) SendTo(h Handle, addr Address, data []byte) (int, error) {
	if err := unix.Sendto(int(h), data, 0, toSockaddr(addr)); err != nil {
		return 0, mapErrno(err)
	}
	return len(data), nil
}

// RecvFrom implements [SocketOps].
func (unixSocketOps) RecvFrom(h Handle, buf []byte) (int, Address, error) {
	count, sa, err := unix.Recvfrom(int(h), buf, 0)
	if err != nil {
		return 0, nil, mapErrno(err)
	}
	return count, fromSockaddr(sa), nil
}

// Shutdown implements [SocketOps].
func (unixSocketOps) Shutdown(h Handle, how ShutdownHow) error {
	var flag int
	switch how {
	case ShutdownReceive:
		flag = unix.SHUT_RD
	case ShutdownSend:
		flag = unix.SHUT_WR
	default:
		flag = unix.SHUT_RDWR
	}
	return unix.Shutdown(int(h), flag)
}

// Close implements [SocketOps].
func (unixSocketOps) Close(h Handle) error {
	return unix.Close(int(h))
}

// Poll implements [SocketOps].
//
// POLLHUP is reported as readable so that a subsequent receive drains any
// pending data and then observes the orderly shutdown. POLLERR and POLLNVAL
// are reported as exceptions.
func (unixSocketOps) Poll(handles []Handle, interest State, states []State, block bool) error {
	var events int16
	if interest&StateReadable != 0 {
		events |= unix.POLLIN
	}
	if interest&StateWritable != 0 {
		events |= unix.POLLOUT
	}
	fds := make([]unix.PollFd, len(handles))
	for idx, h := range handles {
		fds[idx] = unix.PollFd{Fd: int32(h), Events: events}
	}
	timeout := 0
	if block {
		timeout = -1
	}
	for {
		_, err := unix.Poll(fds, timeout)
		if block && errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	for idx := range fds {
		revents := fds[idx].Revents
		var st State
		if revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			st |= StateReadable
		}
		if revents&unix.POLLOUT != 0 {
			st |= StateWritable
		}
		if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			st |= StateException
		}
		states[idx] = st & interest
	}
	return nil
}

// mapErrno wraps the transient errno values with [ErrWouldBlock].
func mapErrno(err error) error {
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
		return fmt.Errorf("%w: %w", ErrWouldBlock, err)
	}
	return err
}

// toSockaddr converts an [Address] to a [unix.Sockaddr].
//
// The IPv6 flow label cannot be expressed through [unix.SockaddrInet6]
// and is not sent.
func toSockaddr(addr Address) unix.Sockaddr {
	switch v := addr.(type) {
	case IPAddress:
		return &unix.SockaddrInet4{Port: int(v.Port), Addr: v.Octets()}
	case IPAddress6:
		return &unix.SockaddrInet6{Port: int(v.Port), Addr: v.IP}
	default:
		ap := addr.AddrPort()
		if ap.Addr().Is4() {
			return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().As4()}
		}
		return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}
	}
}

// fromSockaddr converts a [unix.Sockaddr] to an [Address], returning nil
// for families other than IPv4 and IPv6.
func fromSockaddr(sa unix.Sockaddr) Address {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return IPAddress{
			IP:   uint32(v.Addr[0])<<24 | uint32(v.Addr[1])<<16 | uint32(v.Addr[2])<<8 | uint32(v.Addr[3]),
			Port: uint16(v.Port),
		}
	case *unix.SockaddrInet6:
		return IPAddress6{IP: v.Addr, Port: uint16(v.Port)}
	default:
		return nil
	}
}
