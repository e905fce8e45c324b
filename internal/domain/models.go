package domain

import (
	"time"

	"github.com/hamed0406/ncprobe/internal/probe"
)

type TargetID string

// Target is a destination the scheduler probes periodically. Port is nil
// when Destination is a URL that carries its own.
type Target struct {
	ID          TargetID  `json:"id"`
	Destination string    `json:"destination"`
	Port        *int      `json:"port,omitempty"`
	Proxy       string    `json:"proxy,omitempty"`
	ProxyMode   string    `json:"proxy_mode,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProxyDefaults is the deployment-wide routing (PROXY_MODE / PROXY_URL) for
// targets that set neither a proxy nor a mode.
type ProxyDefaults struct {
	Mode string
	URL  string
}

// Request builds the probe request for one check of t.
func (t Target) Request(timeout time.Duration, def ProxyDefaults) probe.Request {
	req := probe.NewRequest(t.Destination)
	if t.Port != nil {
		req.Port = *t.Port
	}
	req.Timeout = timeout
	proxy, mode := t.Proxy, t.ProxyMode
	if proxy == "" && mode == "" {
		proxy, mode = def.URL, def.Mode
	}
	req.Proxy = proxy
	if m, err := probe.ParseProxyMode(mode); err == nil {
		req.Mode = m
	} else {
		// keep the bad value so the check reports it
		req.Mode = probe.ProxyMode(mode)
	}
	return req
}

type CheckResult struct {
	TargetID   TargetID  `json:"target_id"`
	Up         bool      `json:"up"`
	Outcome    string    `json:"outcome"`
	HTTPStatus int       `json:"http_status,omitempty"`
	LatencyMS  float64   `json:"latency_ms"`
	Reason     string    `json:"reason,omitempty"`
	ViaProxy   bool      `json:"via_proxy"`
	CheckedAt  time.Time `json:"checked_at"`
}

// NewCheckResult records a probe outcome for target id.
func NewCheckResult(id TargetID, out probe.Outcome, at time.Time) *CheckResult {
	return &CheckResult{
		TargetID:   id,
		Up:         out.OK(),
		Outcome:    out.Kind.String(),
		HTTPStatus: out.Status,
		LatencyMS:  out.LatencyMS(),
		Reason:     probe.Describe(out),
		ViaProxy:   out.ViaProxy,
		CheckedAt:  at,
	}
}
