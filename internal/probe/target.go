package probe

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// NoPort marks an absent explicit port. Port 0 is a real (if unusable) port.
const NoPort = -1

// SchemePorts maps the URL schemes a destination or proxy may use to their
// default port.
var SchemePorts = map[string]int{
	"http":  80,
	"https": 443,
	"ws":    80,
	"wss":   443,
}

type Source int

const (
	SourceRawPair Source = iota
	SourceURL
)

func (s Source) String() string {
	if s == SourceURL {
		return "url"
	}
	return "raw_pair"
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Destination is a resolved host and port. It is built once per check and
// never mutated.
type Destination struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Source Source `json:"source"`
}

func (d Destination) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// DestinationError reports why a destination could not be resolved.
type DestinationError struct {
	Input  string
	Reason string
}

func (e *DestinationError) Error() string {
	return "invalid destination " + e.detail()
}

func (e *DestinationError) detail() string {
	return strconv.Quote(e.Input) + ": " + e.Reason
}

// ResolveTarget turns a raw host or a URL into a Destination. For URLs the
// port comes from the authority or the scheme; for raw hosts port must be
// given explicitly (NoPort means absent).
//
// A schemeless "host:port" string is never split: only IPv6 literals may
// contain colons without a scheme.
func ResolveTarget(raw string, port int) (Destination, error) {
	in := strings.TrimSpace(raw)
	if in == "" {
		return Destination{}, &DestinationError{Input: raw, Reason: "empty destination"}
	}

	if strings.Contains(in, "://") {
		return resolveURL(in)
	}

	if port == NoPort {
		return Destination{}, &DestinationError{Input: raw, Reason: "port required without scheme"}
	}
	if port < 0 || port > 65535 {
		return Destination{}, &DestinationError{Input: raw, Reason: "port out of range"}
	}

	host := in
	if strings.Contains(host, ":") {
		literal := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		if net.ParseIP(literal) == nil {
			return Destination{}, &DestinationError{Input: raw, Reason: "host:port form requires a scheme"}
		}
		host = literal
	}
	return Destination{Host: host, Port: port, Source: SourceRawPair}, nil
}

func resolveURL(in string) (Destination, error) {
	u, err := url.Parse(in)
	if err != nil {
		return Destination{}, &DestinationError{Input: in, Reason: "malformed url"}
	}
	def, ok := SchemePorts[u.Scheme]
	if !ok {
		return Destination{}, &DestinationError{Input: in, Reason: "unsupported scheme"}
	}
	host := u.Hostname()
	if host == "" {
		return Destination{}, &DestinationError{Input: in, Reason: "missing host"}
	}
	port, err := parsePort(u.Port(), def)
	if err != nil {
		return Destination{}, &DestinationError{Input: in, Reason: "port out of range"}
	}
	return Destination{Host: host, Port: port, Source: SourceURL}, nil
}

func parsePort(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 65535 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
