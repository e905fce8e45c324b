// Package probe checks TCP reachability of a host:port, directly or through
// an HTTP CONNECT proxy.
package probe

import (
	"context"
	"errors"
	"time"
)

const DefaultTimeout = 3 * time.Second

// Request describes one reachability check. Destination is either a bare
// host (Port required) or an http/https/ws/wss URL.
type Request struct {
	Destination string
	Port        int
	Timeout     time.Duration
	Proxy       string
	Mode        ProxyMode
	Logger      Logger
}

// NewRequest returns a request with no explicit port and default timeout.
func NewRequest(destination string) Request {
	return Request{Destination: destination, Port: NoPort, Timeout: DefaultTimeout, Mode: ModeManual}
}

// Runner produces an Outcome for a request; Prober and Retrier implement it.
type Runner interface {
	Run(ctx context.Context, req Request) Outcome
}

// Prober wires target resolution, proxy selection and the two checkers.
// It holds no per-call state and is safe for concurrent use.
type Prober struct {
	Proxies *ProxyResolver
	Direct  *DirectChecker
	Tunnel  *TunnelChecker
}

func NewProber(env Environment, internal []string) *Prober {
	direct := NewDirectChecker()
	return &Prober{
		Proxies: NewProxyResolver(env, internal),
		Direct:  direct,
		Tunnel:  NewTunnelChecker(direct),
	}
}

// Run resolves the request and performs at most one direct connect or one
// proxy connect plus CONNECT exchange. Invalid input never touches the
// network.
func (p *Prober) Run(ctx context.Context, req Request) Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dest, err := ResolveTarget(req.Destination, req.Port)
	if err != nil {
		return Outcome{Kind: InvalidDestination, Reason: reasonOf(err)}
	}

	// An unknown mode is reported like a bad proxy URL: both are unusable
	// proxy settings.
	px, err := p.Proxies.Resolve(req.Mode, req.Proxy, dest)
	if err != nil {
		return Outcome{Kind: InvalidProxyURL, Target: dest, Reason: reasonOf(err)}
	}

	if !px.Enabled() {
		return p.Direct.Check(ctx, dest, timeout)
	}
	return p.Tunnel.Check(ctx, dest, px, timeout)
}

// reasonOf drops the error's own kind prefix; Describe adds it back.
func reasonOf(err error) string {
	var d interface{ detail() string }
	if errors.As(err, &d) {
		return d.detail()
	}
	return err.Error()
}

// Check runs the request and reports it through req.Logger.
func (p *Prober) Check(ctx context.Context, req Request) bool {
	return Report(p.Run(ctx, req), req.Logger)
}
