// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Family is the address family of a socket or an address.
type Family int

const (
	// IPv4 is the IPv4 address family.
	IPv4 Family = iota

	// IPv6 is the IPv6 address family.
	IPv6
)

// String implements [fmt.Stringer].
func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Address is an IPv4 ([IPAddress]) or IPv6 ([IPAddress6]) socket address.
//
// Addresses are immutable values with no ownership implications.
type Address interface {
	// Family returns the address family.
	Family() Family

	// AddrPort converts the address to a [netip.AddrPort].
	AddrPort() netip.AddrPort

	// String returns the address in "ip:port" or "[ip]:port" format.
	String() string
}

// IPAddress is an IPv4 address including a port.
type IPAddress struct {
	// IP is the address in host byte order, so 127.0.0.1 is 0x7f000001.
	IP uint32

	// Port is the port number.
	Port uint16
}

var _ Address = IPAddress{}

// NewIPAddress builds an [IPAddress] from its four octets and a port.
//
// For example, NewIPAddress(127, 0, 0, 1, 80) is port 80 on the loopback.
func NewIPAddress(a, b, c, d uint8, port uint16) IPAddress {
	return IPAddress{
		IP:   uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d),
		Port: port,
	}
}

// Family implements [Address].
func (a IPAddress) Family() Family {
	return IPv4
}

// Octets returns the address octets in network order.
func (a IPAddress) Octets() [4]byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], a.IP)
	return out
}

// AddrPort implements [Address].
func (a IPAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(a.Octets()), a.Port)
}

// String implements [Address].
func (a IPAddress) String() string {
	return a.AddrPort().String()
}

// IPAddress6 is an IPv6 address including a port and its flow label.
type IPAddress6 struct {
	// IP is the 16-byte address in network order.
	IP [16]byte

	// Port is the port number.
	Port uint16

	// FlowLabel is the IPv6 flow label.
	FlowLabel uint32
}

var _ Address = IPAddress6{}

// NewIPAddress6 builds an [IPAddress6].
func NewIPAddress6(ip [16]byte, port uint16, flowLabel uint32) IPAddress6 {
	return IPAddress6{IP: ip, Port: port, FlowLabel: flowLabel}
}

// Family implements [Address].
func (a IPAddress6) Family() Family {
	return IPv6
}

// AddrPort implements [Address].
//
// The flow label is not representable and is dropped.
func (a IPAddress6) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom16(a.IP), a.Port)
}

// String implements [Address].
func (a IPAddress6) String() string {
	return a.AddrPort().String()
}

// AddressFromAddrPort converts a [netip.AddrPort] to an [Address].
//
// IPv4-mapped IPv6 addresses become [IPAddress]. The zero [netip.AddrPort]
// yields nil.
func AddressFromAddrPort(ap netip.AddrPort) Address {
	addr := ap.Addr()
	switch {
	case !addr.IsValid():
		return nil
	case addr.Unmap().Is4():
		return IPAddress{
			IP:   binary.BigEndian.Uint32(addr.Unmap().AsSlice()),
			Port: ap.Port(),
		}
	default:
		return IPAddress6{IP: addr.As16(), Port: ap.Port()}
	}
}

// ParseAddress parses "ip:port" or "[ip]:port" into an [Address].
func ParseAddress(s string) (Address, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return nil, fmt.Errorf("socol: invalid address %q: %w", s, err)
	}
	return AddressFromAddrPort(ap), nil
}

// wildcardAddress returns the unspecified address of the given family.
func wildcardAddress(family Family, port uint16, flowLabel uint32) Address {
	if family == IPv6 {
		return IPAddress6{Port: port, FlowLabel: flowLabel}
	}
	return IPAddress{Port: port}
}
