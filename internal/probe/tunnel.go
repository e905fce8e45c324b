package probe

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"
)

// TunnelChecker asks an HTTP proxy to CONNECT to the destination and reads
// back only the status line. Nothing is sent through the tunnel.
type TunnelChecker struct {
	Direct *DirectChecker
}

func NewTunnelChecker(direct *DirectChecker) *TunnelChecker {
	if direct == nil {
		direct = NewDirectChecker()
	}
	return &TunnelChecker{Direct: direct}
}

func (c *TunnelChecker) Check(ctx context.Context, dest Destination, px ProxyConfig, timeout time.Duration) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pcopy := px
	out := Outcome{Target: dest, Proxy: &pcopy, ViaProxy: true}
	finish := func(kind Kind, status int, reason string) Outcome {
		out.Kind, out.Status, out.Reason = kind, status, reason
		out.Latency = time.Since(start)
		return out
	}

	conn, kind, reason := c.Direct.dial(ctx, px.Host, px.Port)
	if conn == nil {
		return finish(kind, 0, "proxy "+px.Addr()+": "+reason)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := io.WriteString(conn, connectRequest(dest, px)); err != nil {
		kind, reason := classifyIOError(ctx, err)
		return finish(kind, 0, "write CONNECT: "+reason)
	}

	lr := &io.LimitedReader{R: conn, N: maxStatusLine}
	line, err := textproto.NewReader(bufio.NewReader(lr)).ReadLine()
	if err != nil && line == "" {
		if lr.N == 0 {
			return finish(ProxyConnectFailure, 0, "proxy status line longer than "+strconv.Itoa(maxStatusLine)+" bytes")
		}
		if errors.Is(err, io.EOF) {
			return finish(ProxyConnectFailure, 0, "empty proxy response")
		}
		kind, reason := classifyIOError(ctx, err)
		return finish(kind, 0, "read CONNECT response: "+reason)
	}

	code, err := parseStatusLine(line)
	if err != nil {
		return finish(ProxyConnectFailure, 0, err.Error())
	}
	if code != 200 {
		return finish(ProxyConnectFailure, code, strings.TrimSpace(line))
	}
	return finish(Success, code, "")
}

// maxStatusLine bounds how much of the proxy reply is read looking for the
// status line.
const maxStatusLine = 4096

func connectRequest(dest Destination, px ProxyConfig) string {
	addr := dest.Addr()
	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n", addr, addr)
	if px.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(px.Username + ":" + px.Password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", cred)
	}
	b.WriteString("\r\n")
	return b.String()
}

// parseStatusLine extracts the code from "HTTP/1.1 200 Connection established".
func parseStatusLine(line string) (int, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return 0, fmt.Errorf("not an HTTP status line: %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return 0, fmt.Errorf("bad status code in %q", line)
	}
	return code, nil
}

func classifyIOError(ctx context.Context, err error) (Kind, string) {
	if errors.Is(err, os.ErrDeadlineExceeded) || ctx.Err() != nil {
		return Timeout, err.Error()
	}
	return classifyDialError(ctx, err)
}
