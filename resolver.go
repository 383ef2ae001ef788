// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making [*DNSResolver] depend on an abstract implementation we
// allow for unit testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver maps a domain and a port to an [Address] of the given family.
//
// The domain may be an IP address, "localhost", or a domain name and the
// empty string means "localhost". The port is a number, or a service name
// like "http" for implementations that support it, and the empty string
// means port zero.
type Resolver interface {
	Resolve(ctx context.Context, family Family, domain, port string) (Address, error)
}

// errInvalidPort indicates a port that is not a number in the 0-65535 range.
var errInvalidPort = errors.New("socol: invalid port")

// errNoAddress indicates that the domain has no address of the requested family.
var errNoAddress = errors.New("socol: no address for the requested family")

// NewNetResolver returns a [*NetResolver] using [net.DefaultResolver].
func NewNetResolver() *NetResolver {
	return &NetResolver{Resolver: net.DefaultResolver}
}

// NetResolver is the [Resolver] backed by the Go standard library.
type NetResolver struct {
	// Resolver is the [*net.Resolver] to use.
	//
	// Set by [NewNetResolver] to [net.DefaultResolver].
	Resolver *net.Resolver
}

var _ Resolver = &NetResolver{}

// Resolve implements [Resolver].
//
// When the domain resolves to several addresses Resolve returns the first
// one of the requested family.
func (r *NetResolver) Resolve(ctx context.Context, family Family, domain, port string) (Address, error) {
	portnum, err := lookupPort(ctx, r.Resolver, port)
	if err != nil {
		return nil, err
	}
	if domain == "" {
		domain = "localhost"
	}
	if ip, err := netip.ParseAddr(domain); err == nil {
		return addressForFamily(family, ip, portnum)
	}
	network := "ip4"
	if family == IPv6 {
		network = "ip6"
	}
	addrs, err := r.Resolver.LookupNetIP(ctx, network, domain)
	if err != nil {
		return nil, err
	}
	for _, ip := range addrs {
		if addr, err := addressForFamily(family, ip, portnum); err == nil {
			return addr, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errNoAddress, domain)
}

// lookupPort parses a numeric port or resolves a service name.
func lookupPort(ctx context.Context, resolver *net.Resolver, port string) (uint16, error) {
	if value, err := parsePort(port); err == nil {
		return value, nil
	}
	value, err := resolver.LookupPort(ctx, "tcp", port)
	if err != nil {
		return 0, err
	}
	return uint16(value), nil
}

// parsePort parses a numeric port. The empty string means port zero.
func parsePort(port string) (uint16, error) {
	if port == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidPort, port)
	}
	return uint16(value), nil
}

// addressForFamily converts ip and port to an [Address] of family.
func addressForFamily(family Family, ip netip.Addr, port uint16) (Address, error) {
	switch {
	case family == IPv4 && ip.Unmap().Is4():
		return AddressFromAddrPort(netip.AddrPortFrom(ip.Unmap(), port)), nil
	case family == IPv6 && ip.Is6() && !ip.Is4In6():
		return AddressFromAddrPort(netip.AddrPortFrom(ip, port)), nil
	default:
		return nil, fmt.Errorf("%w: %s", errNoAddress, ip)
	}
}
