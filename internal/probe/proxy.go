package probe

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

// ProxyMode selects how a check decides whether to tunnel through a proxy.
type ProxyMode string

const (
	// ModeManual is the call-surface default: explicit when a proxy URL is
	// supplied, none otherwise.
	ModeManual      ProxyMode = "manual"
	ModeNone        ProxyMode = "none"
	ModeExplicit    ProxyMode = "explicit"
	ModeEnvExternal ProxyMode = "env_external"
	ModeEnvAuto     ProxyMode = "env_auto"
)

// ParseProxyMode accepts the names used by the CLI, the API and PROXY_MODE.
func ParseProxyMode(s string) (ProxyMode, error) {
	switch m := ProxyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeManual, nil
	case ModeManual, ModeNone, ModeExplicit, ModeEnvExternal, ModeEnvAuto:
		return m, nil
	}
	return "", &ProxyModeError{Mode: s}
}

type ProxyModeError struct{ Mode string }

func (e *ProxyModeError) Error() string {
	return "unknown proxy mode " + strconv.Quote(e.Mode) + " (want manual, none, explicit, env_external or env_auto)"
}

// ProxyConfig is the routing decision for one check. When Mode is not
// ModeNone, Host is non-empty and Port is a valid port.
type ProxyConfig struct {
	Mode     ProxyMode `json:"mode"`
	Scheme   string    `json:"scheme,omitempty"`
	Host     string    `json:"host,omitempty"`
	Port     int       `json:"port,omitempty"`
	Username string    `json:"-"`
	Password string    `json:"-"`
	// Source names where the proxy came from: "argument" or the env variable.
	Source string `json:"source,omitempty"`
}

func (p ProxyConfig) Enabled() bool { return p.Mode != ModeNone }

func (p ProxyConfig) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ProxyURLError reports a proxy URL that cannot be used.
type ProxyURLError struct {
	URL    string
	Reason string
}

func (e *ProxyURLError) Error() string {
	return "invalid proxy url " + e.detail()
}

func (e *ProxyURLError) detail() string {
	return strconv.Quote(redact(e.URL)) + ": " + e.Reason
}

// ParseProxyURL parses scheme://[user:pass@]host[:port]. The scheme is
// mandatory; "10.0.0.1:3128" is rejected rather than guessed.
func ParseProxyURL(raw string) (ProxyConfig, error) {
	in := strings.TrimSpace(raw)
	if in == "" {
		return ProxyConfig{}, &ProxyURLError{URL: raw, Reason: "empty"}
	}
	if !strings.Contains(in, "://") {
		return ProxyConfig{}, &ProxyURLError{URL: raw, Reason: "missing scheme"}
	}
	u, err := url.Parse(in)
	if err != nil {
		return ProxyConfig{}, &ProxyURLError{URL: raw, Reason: "malformed"}
	}
	def, ok := SchemePorts[u.Scheme]
	if !ok {
		return ProxyConfig{}, &ProxyURLError{URL: raw, Reason: "unsupported scheme " + strconv.Quote(u.Scheme)}
	}
	host := u.Hostname()
	if host == "" {
		return ProxyConfig{}, &ProxyURLError{URL: raw, Reason: "missing host"}
	}
	port, err := parsePort(u.Port(), def)
	if err != nil || port == 0 {
		return ProxyConfig{}, &ProxyURLError{URL: raw, Reason: "invalid port"}
	}
	cfg := ProxyConfig{Mode: ModeExplicit, Scheme: u.Scheme, Host: host, Port: port}
	if u.User != nil {
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}

// Environment is the read-only view of process environment the proxy
// resolver needs.
type Environment interface {
	LookupEnv(key string) (string, bool)
}

// OSEnvironment reads the real process environment.
type OSEnvironment struct{}

func (OSEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnvironment is a fixed environment, mostly for tests.
type MapEnvironment map[string]string

func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ProxyResolver decides the route for a destination. Internal holds
// NO_PROXY-style patterns (".corp.example", "10.0.0.0/8") that env_auto never
// proxies.
type ProxyResolver struct {
	Env      Environment
	Internal []string
}

func NewProxyResolver(env Environment, internal []string) *ProxyResolver {
	if env == nil {
		env = OSEnvironment{}
	}
	return &ProxyResolver{Env: env, Internal: internal}
}

func (r *ProxyResolver) Resolve(mode ProxyMode, explicit string, dest Destination) (ProxyConfig, error) {
	switch mode {
	case ModeNone:
		return ProxyConfig{Mode: ModeNone}, nil
	case ModeManual, "":
		if strings.TrimSpace(explicit) == "" {
			return ProxyConfig{Mode: ModeNone}, nil
		}
		fallthrough
	case ModeExplicit:
		cfg, err := ParseProxyURL(explicit)
		if err != nil {
			return ProxyConfig{}, err
		}
		cfg.Source = "argument"
		return cfg, nil
	case ModeEnvExternal, ModeEnvAuto:
		raw, name := r.fromEnv()
		if raw == "" {
			return ProxyConfig{Mode: ModeNone}, nil
		}
		if mode == ModeEnvAuto && r.bypass(dest) {
			return ProxyConfig{Mode: ModeNone, Source: "internal"}, nil
		}
		cfg, err := ParseProxyURL(raw)
		if err != nil {
			return ProxyConfig{}, err
		}
		cfg.Mode = mode
		cfg.Source = name
		return cfg, nil
	}
	return ProxyConfig{}, &ProxyModeError{Mode: string(mode)}
}

// fromEnv returns the first non-empty of HTTPS_PROXY and HTTP_PROXY.
func (r *ProxyResolver) fromEnv() (string, string) {
	for _, key := range []string{"HTTPS_PROXY", "HTTP_PROXY"} {
		if v, name := r.lookup(key); v != "" {
			return v, name
		}
	}
	return "", ""
}

func (r *ProxyResolver) lookup(key string) (string, string) {
	for _, k := range []string{key, strings.ToLower(key)} {
		if v, ok := r.Env.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), k
		}
	}
	return "", ""
}

// bypassProbeProxy only feeds httpproxy's matcher; it is never dialed.
const bypassProbeProxy = "http://proxy.invalid:3128"

func (r *ProxyResolver) bypass(dest Destination) bool {
	patterns := append([]string(nil), r.Internal...)
	if v, _ := r.lookup("NO_PROXY"); v != "" {
		patterns = append(patterns, v)
	}
	cfg := &httpproxy.Config{
		HTTPProxy:  bypassProbeProxy,
		HTTPSProxy: bypassProbeProxy,
		NoProxy:    strings.Join(patterns, ","),
	}
	u, err := cfg.ProxyFunc()(&url.URL{Scheme: "https", Host: dest.Addr()})
	return err == nil && u == nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
