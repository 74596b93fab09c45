package transport

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
)

// Endpoint is one resolved address/port the connector may attempt.
type Endpoint struct {
	// IP is the resolved address.
	IP net.IP

	// Port is the resolved TCP port.
	Port uint16
}

// Addr returns the endpoint in host:port form suitable for dialing.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(int(e.Port)))
}

// String returns the dialable address.
func (e Endpoint) String() string {
	return e.Addr()
}

// Resolver turns a host/service pair into an ordered list of endpoint
// candidates. Implementations must not retry internally; exhaustion is
// the connection's business.
type Resolver interface {
	// Resolve returns the candidates for host and service in the order
	// the connection should attempt them.
	Resolve(ctx context.Context, host, service string) ([]Endpoint, error)
}

// NetResolver resolves via the operating system's resolver. The zero
// value is ready to use. Service may be a numeric port ("15000") or a
// named TCP service ("https").
type NetResolver struct {
	// Resolver overrides the lookup implementation. Nil means
	// net.DefaultResolver.
	Resolver *net.Resolver
}

// Resolve looks up host and service and returns candidates in a
// deterministic order: IPv4 before IPv6, then lexicographic by address.
func (r *NetResolver) Resolve(ctx context.Context, host, service string) ([]Endpoint, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}

	port, err := resolvePort(ctx, res, service)
	if err != nil {
		return nil, newError(KindResolution, fmt.Sprintf("cannot resolve service %q", service), err)
	}

	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, newError(KindResolution, fmt.Sprintf("cannot resolve host %q", host), err)
	}
	if len(addrs) == 0 {
		return nil, newError(KindResolution, fmt.Sprintf("no addresses for host %q", host), nil)
	}

	endpoints := make([]Endpoint, 0, len(addrs))
	for _, a := range addrs {
		endpoints = append(endpoints, Endpoint{IP: a.IP, Port: port})
	}
	sortEndpoints(endpoints)

	return endpoints, nil
}

// resolvePort parses a numeric port or looks up a named TCP service.
func resolvePort(ctx context.Context, res *net.Resolver, service string) (uint16, error) {
	if n, err := strconv.ParseUint(service, 10, 16); err == nil {
		return uint16(n), nil
	}
	port, err := res.LookupPort(ctx, "tcp", service)
	if err != nil {
		return 0, err
	}
	return uint16(port), nil
}

// sortEndpoints orders candidates deterministically so retries across
// processes attempt the same sequence: IPv4 first, then lexicographic.
func sortEndpoints(endpoints []Endpoint) {
	sort.SliceStable(endpoints, func(i, j int) bool {
		v4i := endpoints[i].IP.To4() != nil
		v4j := endpoints[j].IP.To4() != nil
		if v4i != v4j {
			return v4i
		}
		return endpoints[i].IP.String() < endpoints[j].IP.String()
	})
}

// StaticResolver returns a fixed candidate list regardless of input.
// Useful for tests and for callers that already know their endpoints
// (for example from mDNS discovery).
type StaticResolver struct {
	Endpoints []Endpoint
}

// Resolve returns the configured candidates.
func (r *StaticResolver) Resolve(context.Context, string, string) ([]Endpoint, error) {
	if len(r.Endpoints) == 0 {
		return nil, newError(KindResolution, "no endpoints configured", nil)
	}
	out := make([]Endpoint, len(r.Endpoints))
	copy(out, r.Endpoints)
	return out, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Resolver = (*NetResolver)(nil)
	_ Resolver = (*StaticResolver)(nil)
)
