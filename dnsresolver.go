// SPDX-License-Identifier: GPL-3.0-or-later

package socol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/miekg/dns"
)

// errDNSFailure indicates a DNS response with a non-success rcode.
var errDNSFailure = errors.New("socol: DNS query failed")

// NewDNSResolver returns a new [*DNSResolver].
//
// The cfg argument contains the common configuration.
//
// The server argument is the address of the DNS-over-UDP server to query.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewDNSResolver(cfg *Config, server netip.AddrPort, logger SLogger) *DNSResolver {
	return &DNSResolver{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Server:        server,
		TimeNow:       cfg.TimeNow,
	}
}

// DNSResolver is a [Resolver] that sends a single A or AAAA query to a
// DNS-over-UDP server, bypassing the system resolver.
//
// Each call to Resolve dials a new connection and closes it before
// returning, or as soon as the context is done.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Resolve].
type DNSResolver struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewDNSResolver] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewDNSResolver] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewDNSResolver] to the user-provided logger.
	Logger SLogger

	// Server is the DNS server address.
	//
	// Set by [NewDNSResolver] to the user-provided value.
	Server netip.AddrPort

	// TimeNow is the function to get the current time.
	//
	// Set by [NewDNSResolver] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Resolver = &DNSResolver{}

// Resolve implements [Resolver].
//
// IP addresses and "localhost" resolve without sending any query. The port
// must be numeric: service names would need the system resolver, which
// this type never uses.
func (r *DNSResolver) Resolve(ctx context.Context, family Family, domain, port string) (Address, error) {
	portnum, err := parsePort(port)
	if err != nil {
		return nil, err
	}
	switch domain {
	case "", "localhost":
		if family == IPv6 {
			return addressForFamily(family, netip.IPv6Loopback(), portnum)
		}
		return addressForFamily(family, netip.AddrFrom4([4]byte{127, 0, 0, 1}), portnum)
	}
	if ip, err := netip.ParseAddr(domain); err == nil {
		return addressForFamily(family, ip, portnum)
	}
	ip, err := r.lookup(ctx, family, domain)
	if err != nil {
		return nil, err
	}
	return addressForFamily(family, ip, portnum)
}

// lookup performs the DNS exchange and returns the first address.
func (r *DNSResolver) lookup(ctx context.Context, family Family, domain string) (netip.Addr, error) {
	qtype := dns.TypeA
	if family == IPv6 {
		qtype = dns.TypeAAAA
	}
	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(domain), qtype)
	rawQuery, err := query.Pack()
	if err != nil {
		return netip.Addr{}, err
	}

	t0 := r.TimeNow()
	deadline, _ := ctx.Deadline()
	conn, err := r.Dialer.DialContext(ctx, "udp", r.Server.String())
	if err != nil {
		return netip.Addr{}, err
	}
	conn = observeConn(conn, r.ErrClassifier, r.Logger, r.TimeNow)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	if !deadline.IsZero() {
		conn.SetDeadline(deadline)
	}

	lc := &dnsExchangeLogContext{
		Domain:        domain,
		ErrClassifier: r.ErrClassifier,
		LocalAddr:     safeconn.LocalAddr(conn),
		Logger:        r.Logger,
		Protocol:      safeconn.Network(conn),
		QueryType:     dns.TypeToString[qtype],
		RemoteAddr:    safeconn.RemoteAddr(conn),
		TimeNow:       r.TimeNow,
	}
	lc.logStart(t0, deadline)
	ip, err := r.exchange(ctx, conn, lc, t0, query, rawQuery, family)
	lc.logDone(t0, deadline, err)
	return ip, err
}

// exchange sends the query and reads until a matching response arrives.
//
// Datagrams that do not parse or whose ID does not match are discarded.
func (r *DNSResolver) exchange(ctx context.Context, conn net.Conn, lc *dnsExchangeLogContext,
	t0 time.Time, query *dns.Msg, rawQuery []byte, family Family) (netip.Addr, error) {
	lc.logQuery(t0, rawQuery)
	if _, err := conn.Write(rawQuery); err != nil {
		return netip.Addr{}, contextErrOr(ctx, err)
	}
	buf := make([]byte, dns.MaxMsgSize)
	for {
		count, err := conn.Read(buf)
		if err != nil {
			return netip.Addr{}, contextErrOr(ctx, err)
		}
		rawResp := buf[:count]
		resp := new(dns.Msg)
		if err := resp.Unpack(rawResp); err != nil || !resp.Response || resp.Id != query.Id {
			continue
		}
		lc.logResponse(t0, rawQuery, rawResp)
		return firstAddress(resp, family)
	}
}

// firstAddress returns the first A or AAAA record matching family.
func firstAddress(resp *dns.Msg, family Family) (netip.Addr, error) {
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("%w: %s", errDNSFailure, dns.RcodeToString[resp.Rcode])
	}
	for _, rr := range resp.Answer {
		var raw net.IP
		switch rr := rr.(type) {
		case *dns.A:
			if family == IPv4 {
				raw = rr.A.To4()
			}
		case *dns.AAAA:
			if family == IPv6 {
				raw = rr.AAAA.To16()
			}
		}
		if ip, ok := netip.AddrFromSlice(raw); ok {
			return ip, nil
		}
	}
	return netip.Addr{}, errNoAddress
}

// contextErrOr prefers the context error when the context is done.
func contextErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// dnsExchangeLogContext holds the logging state of a DNS exchange.
type dnsExchangeLogContext struct {
	Domain        string
	ErrClassifier ErrClassifier
	LocalAddr     string
	Logger        SLogger
	Protocol      string
	QueryType     string
	RemoteAddr    string
	TimeNow       func() time.Time
}

func (lc *dnsExchangeLogContext) logStart(t0 time.Time, deadline time.Time) {
	lc.Logger.Info(
		"dnsExchangeStart",
		slog.Time("deadline", deadline),
		slog.String("dnsDomain", lc.Domain),
		slog.String("dnsQueryType", lc.QueryType),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.Time("t", t0),
	)
}

func (lc *dnsExchangeLogContext) logDone(t0 time.Time, deadline time.Time, err error) {
	lc.Logger.Info(
		"dnsExchangeDone",
		slog.Time("deadline", deadline),
		slog.String("dnsDomain", lc.Domain),
		slog.String("dnsQueryType", lc.QueryType),
		slog.Any("err", err),
		slog.String("errClass", lc.ErrClassifier.Classify(err)),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.Time("t0", t0),
		slog.Time("t", lc.TimeNow()),
	)
}

func (lc *dnsExchangeLogContext) logQuery(t0 time.Time, rawQuery []byte) {
	lc.Logger.Info(
		"dnsQuery",
		slog.Any("dnsRawQuery", rawQuery),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.Time("t", t0),
	)
}

func (lc *dnsExchangeLogContext) logResponse(t0 time.Time, rawQuery, rawResp []byte) {
	lc.Logger.Info(
		"dnsResponse",
		slog.Any("dnsRawQuery", rawQuery),
		slog.Any("dnsRawResponse", rawResp),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.Time("t0", t0),
		slog.Time("t", lc.TimeNow()),
	)
}
