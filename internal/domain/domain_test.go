package domain

import (
	"testing"
	"time"

	"github.com/hamed0406/ncprobe/internal/probe"
)

func TestTarget_Request(t *testing.T) {
	port := 5432
	tgt := Target{Destination: "db.internal", Port: &port, ProxyMode: "env_auto"}
	req := tgt.Request(2*time.Second, ProxyDefaults{Mode: "explicit", URL: "http://corp-proxy:3128"})
	if req.Destination != "db.internal" || req.Port != 5432 || req.Timeout != 2*time.Second || req.Mode != probe.ModeEnvAuto {
		t.Fatalf("unexpected request %+v", req)
	}

	url := Target{Destination: "https://example.com"}
	req = url.Request(time.Second, ProxyDefaults{})
	if req.Port != probe.NoPort || req.Mode != probe.ModeManual {
		t.Fatalf("url target should carry no port and manual mode, got %+v", req)
	}

	bad := Target{Destination: "https://example.com", ProxyMode: "pac"}
	if req := bad.Request(time.Second, ProxyDefaults{}); req.Mode != probe.ProxyMode("pac") {
		t.Fatalf("unknown mode should be passed through, got %q", req.Mode)
	}
}

func TestTarget_RequestFallsBackToProxyDefaults(t *testing.T) {
	def := ProxyDefaults{Mode: "explicit", URL: "http://corp-proxy:3128"}

	plain := Target{Destination: "https://example.com"}
	req := plain.Request(time.Second, def)
	if req.Mode != probe.ModeExplicit || req.Proxy != "http://corp-proxy:3128" {
		t.Fatalf("target without routing should use the defaults, got mode=%q proxy=%q", req.Mode, req.Proxy)
	}

	// a target's own mode wins, even without a proxy URL
	direct := Target{Destination: "https://example.com", ProxyMode: "none"}
	if req := direct.Request(time.Second, def); req.Mode != probe.ModeNone || req.Proxy != "" {
		t.Fatalf("own mode ignored: mode=%q proxy=%q", req.Mode, req.Proxy)
	}

	own := Target{Destination: "https://example.com", Proxy: "http://edge:8080"}
	if req := own.Request(time.Second, def); req.Mode != probe.ModeManual || req.Proxy != "http://edge:8080" {
		t.Fatalf("own proxy ignored: mode=%q proxy=%q", req.Mode, req.Proxy)
	}
}

func TestNewCheckResult(t *testing.T) {
	at := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	out := probe.Outcome{
		Kind:     probe.ProxyConnectFailure,
		Target:   probe.Destination{Host: "example.com", Port: 443},
		Proxy:    &probe.ProxyConfig{Mode: probe.ModeExplicit, Host: "proxy", Port: 3128},
		ViaProxy: true,
		Status:   407,
		Latency:  1500 * time.Microsecond,
	}
	cr := NewCheckResult("T1", out, at)
	if cr.Up || cr.Outcome != "proxy_connect_failure" || cr.HTTPStatus != 407 || !cr.ViaProxy {
		t.Fatalf("unexpected result %+v", cr)
	}
	if cr.LatencyMS != 1.5 || !cr.CheckedAt.Equal(at) || cr.Reason == "" {
		t.Fatalf("unexpected result %+v", cr)
	}
}
