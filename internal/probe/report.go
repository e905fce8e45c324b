package probe

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/ncprobe/internal/logging"
)

// Logger is what Report writes to. Any leveled logger can be adapted.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

type zapLogger struct{ l *zap.Logger }

// NewZapLogger adapts a zap logger. A nil logger yields a no-op.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return zapLogger{l: l.WithOptions(zap.AddCallerSkip(2))}
}

func (z zapLogger) Debug(msg string)   { z.l.Debug(msg) }
func (z zapLogger) Info(msg string)    { z.l.Info(msg) }
func (z zapLogger) Warning(msg string) { z.l.Warn(msg) }
func (z zapLogger) Error(msg string)   { z.l.Error(msg) }

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// DefaultLogger is the fallback used when a caller passes no logger: a
// console logger on stderr at info level.
func DefaultLogger() Logger {
	defaultOnce.Do(func() {
		defaultLogger = NewZapLogger(logging.NewConsole(os.Stderr, zapcore.InfoLevel))
	})
	return defaultLogger
}

// Report logs the outcome at a level matching its kind and reduces it to
// reachable or not.
func Report(o Outcome, log Logger) bool {
	if log == nil {
		log = DefaultLogger()
	}
	msg := Describe(o)
	switch o.Kind {
	case Success:
		log.Info(msg)
		return true
	case Timeout, ConnectionRefused:
		log.Warning(msg)
	default:
		log.Error(msg)
	}
	return false
}

// Describe renders the human-readable line Report logs.
func Describe(o Outcome) string {
	target := o.Target.Addr()
	if o.Target.Host == "" {
		target = "-"
	}
	prefix := "ncvz(" + target + ")"
	hop := ""
	if o.ViaProxy && o.Proxy != nil {
		hop = " via proxy " + o.Proxy.Addr()
	}
	ms := o.LatencyMS()

	switch o.Kind {
	case Success:
		if o.ViaProxy {
			return fmt.Sprintf("%s - connection%s succeeded in %.1fms (HTTP %d)", prefix, hop, ms, o.Status)
		}
		return fmt.Sprintf("%s - connection succeeded in %.1fms", prefix, ms)
	case Timeout:
		return fmt.Sprintf("%s - connection%s timed out after %.1fms: %s", prefix, hop, ms, o.Reason)
	case ConnectionRefused:
		return fmt.Sprintf("%s - connection%s refused after %.1fms", prefix, hop, ms)
	case DNSFailure:
		return fmt.Sprintf("%s - dns resolution%s failed: %s", prefix, hop, o.Reason)
	case NetworkUnreachable:
		return fmt.Sprintf("%s - network unreachable%s after %.1fms: %s", prefix, hop, ms, o.Reason)
	case ProxyConnectFailure:
		if o.Status == 0 {
			return fmt.Sprintf("%s - proxy CONNECT%s failed: malformed proxy response (%s)", prefix, hop, o.Reason)
		}
		return fmt.Sprintf("%s - proxy CONNECT%s failed with HTTP %d: %s", prefix, hop, o.Status, o.Reason)
	case InvalidProxyURL:
		return fmt.Sprintf("%s - invalid proxy url: %s", prefix, o.Reason)
	case InvalidDestination:
		return fmt.Sprintf("%s - invalid destination: %s", prefix, o.Reason)
	}
	return fmt.Sprintf("%s - %s: %s", prefix, o.Kind, o.Reason)
}
