package probe

import (
	"errors"
	"testing"
)

func TestResolveTarget_URLs(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"http://example.com", "example.com", 80},
		{"https://example.com", "example.com", 443},
		{"ws://example.com/socket", "example.com", 80},
		{"wss://example.com", "example.com", 443},
		{"HTTPS://Example.com", "Example.com", 443},
		{"http://127.0.0.1:19000", "127.0.0.1", 19000},
		{"https://api.service.com:8443/v1?x=1", "api.service.com", 8443},
		{"http://[::1]:8080", "::1", 8080},
		{"http://user:pw@example.com", "example.com", 80},
	}
	for _, c := range cases {
		d, err := ResolveTarget(c.in, NoPort)
		if err != nil {
			t.Fatalf("ResolveTarget(%q): %v", c.in, err)
		}
		if d.Host != c.wantHost || d.Port != c.wantPort || d.Source != SourceURL {
			t.Fatalf("ResolveTarget(%q)=%+v want %s:%d", c.in, d, c.wantHost, c.wantPort)
		}
	}
}

func TestResolveTarget_URLIgnoresExplicitPort(t *testing.T) {
	d, err := ResolveTarget("https://example.com", 9999)
	if err != nil {
		t.Fatal(err)
	}
	if d.Port != 443 {
		t.Fatalf("url port should win, got %d", d.Port)
	}
}

func TestResolveTarget_URLAndPairAgree(t *testing.T) {
	pairs := []struct {
		url  string
		host string
		port int
	}{
		{"https://example.com", "example.com", 443},
		{"http://example.com", "example.com", 80},
		{"http://10.1.2.3:5432", "10.1.2.3", 5432},
	}
	for _, p := range pairs {
		a, err := ResolveTarget(p.url, NoPort)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ResolveTarget(p.host, p.port)
		if err != nil {
			t.Fatal(err)
		}
		if a.Host != b.Host || a.Port != b.Port || a.Addr() != b.Addr() {
			t.Fatalf("%q resolved to %s, pair to %s", p.url, a.Addr(), b.Addr())
		}
	}
}

func TestResolveTarget_RawPair(t *testing.T) {
	d, err := ResolveTarget(" db.internal ", 5432)
	if err != nil {
		t.Fatal(err)
	}
	if d.Host != "db.internal" || d.Port != 5432 || d.Source != SourceRawPair {
		t.Fatalf("unexpected destination %+v", d)
	}

	d, err = ResolveTarget("[2001:db8::1]", 22)
	if err != nil {
		t.Fatal(err)
	}
	if d.Host != "2001:db8::1" || d.Addr() != "[2001:db8::1]:22" {
		t.Fatalf("unexpected ipv6 destination %+v", d)
	}

	d, err = ResolveTarget("127.0.0.1", 0)
	if err != nil || d.Port != 0 {
		t.Fatalf("port 0 should pass through, got %+v err=%v", d, err)
	}
}

func TestResolveTarget_Invalid(t *testing.T) {
	cases := []struct {
		in     string
		port   int
		reason string
	}{
		{"", 80, "empty destination"},
		{"example.com", NoPort, "port required without scheme"},
		{"127.0.0.1", NoPort, "port required without scheme"},
		{"::1", NoPort, "port required without scheme"},
		{"example.com:8080", NoPort, "port required without scheme"},
		{"example.com:8080", 8080, "host:port form requires a scheme"},
		{"10.0.0.1:3128", 3128, "host:port form requires a scheme"},
		{"example.com", 70000, "port out of range"},
		{"example.com", -5, "port out of range"},
		{"ftp://example.com", NoPort, "unsupported scheme"},
		{"ftp://example.com:21", 21, "unsupported scheme"},
		{"https://", NoPort, "missing host"},
		{"http://example.com:99999", NoPort, "port out of range"},
	}
	for _, c := range cases {
		_, err := ResolveTarget(c.in, c.port)
		var de *DestinationError
		if !errors.As(err, &de) {
			t.Fatalf("ResolveTarget(%q,%d): want DestinationError, got %v", c.in, c.port, err)
		}
		if de.Reason != c.reason {
			t.Fatalf("ResolveTarget(%q,%d): reason %q want %q", c.in, c.port, de.Reason, c.reason)
		}
	}
}
