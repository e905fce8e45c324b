package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/proxy"
)

// Resolver is the DNS capability; *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DirectChecker opens a plain TCP connection and closes it straight away.
type DirectChecker struct {
	Resolver Resolver
	Dialer   proxy.ContextDialer
}

func NewDirectChecker() *DirectChecker {
	return &DirectChecker{
		Resolver: &net.Resolver{}, // OS resolver
		Dialer:   proxy.Direct,
	}
}

func (c *DirectChecker) Check(ctx context.Context, dest Destination, timeout time.Duration) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := Outcome{Target: dest}
	conn, kind, reason := c.dial(ctx, dest.Host, dest.Port)
	out.Latency = time.Since(start)
	if conn == nil {
		out.Kind, out.Reason = kind, reason
		return out
	}
	_ = conn.Close()
	out.Kind = Success
	return out
}

// dial resolves host and connects to the first address that answers. On
// failure conn is nil and kind/reason describe why.
func (c *DirectChecker) dial(ctx context.Context, host string, port int) (net.Conn, Kind, string) {
	addrs, kind, reason := c.lookup(ctx, host)
	if addrs == nil {
		return nil, kind, reason
	}

	var lastErr error
	for _, ip := range addrs {
		conn, err := c.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err == nil {
			return conn, Success, ""
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	kind, reason = classifyDialError(ctx, lastErr)
	return nil, kind, reason
}

func (c *DirectChecker) lookup(ctx context.Context, host string) ([]string, Kind, string) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, Success, ""
	}
	ips, err := c.Resolver.LookupIPAddr(ctx, host)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, Timeout, "deadline exceeded during dns lookup"
		}
		return nil, DNSFailure, dnsClass(err) + ": " + err.Error()
	}
	if len(ips) == 0 {
		return nil, DNSFailure, "NO_ADDRESS: no A or AAAA records for " + host
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out, Success, ""
}

func dnsClass(err error) string {
	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsNotFound {
			return "NXDOMAIN"
		}
		if de.IsTemporary || de.Timeout() {
			return "SERVFAIL_or_TIMEOUT"
		}
	}
	return "RESOLVER_ERROR"
}

func classifyDialError(ctx context.Context, err error) (Kind, string) {
	if err == nil {
		return Timeout, "no address attempted before deadline"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectionRefused, err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return Timeout, err.Error()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout, err.Error()
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return DNSFailure, dnsClass(err) + ": " + err.Error()
	}
	return NetworkUnreachable, err.Error()
}
