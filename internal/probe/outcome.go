package probe

import (
	"fmt"
	"time"
)

// Kind classifies the result of a single reachability check.
type Kind int

const (
	Success Kind = iota
	Timeout
	ConnectionRefused
	DNSFailure
	ProxyConnectFailure
	InvalidProxyURL
	InvalidDestination
	NetworkUnreachable
)

var kindNames = map[Kind]string{
	Success:             "success",
	Timeout:             "timeout",
	ConnectionRefused:   "connection_refused",
	DNSFailure:          "dns_failure",
	ProxyConnectFailure: "proxy_connect_failure",
	InvalidProxyURL:     "invalid_proxy_url",
	InvalidDestination:  "invalid_destination",
	NetworkUnreachable:  "network_unreachable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", string(b))
}

// Transient reports whether a retry could plausibly change the result.
func (k Kind) Transient() bool {
	switch k {
	case Timeout, ConnectionRefused, NetworkUnreachable:
		return true
	}
	return false
}

// Outcome is the tagged result of one check. Status is only meaningful for
// ProxyConnectFailure (and 200 on a successful tunnel).
type Outcome struct {
	Kind     Kind          `json:"kind"`
	Target   Destination   `json:"target"`
	Proxy    *ProxyConfig  `json:"proxy,omitempty"`
	ViaProxy bool          `json:"via_proxy"`
	Status   int           `json:"status,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Latency  time.Duration `json:"latency"`
}

func (o Outcome) OK() bool { return o.Kind == Success }

// LatencyMS mirrors the millisecond latency the stores and API expose.
func (o Outcome) LatencyMS() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}
