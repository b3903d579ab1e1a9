// Package logger provides structured logging setup for clickbridge.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/clickbridge/internal/config"
)

const (
	asyncBuffer  = 4096
	asyncWorkers = 2
)

// redactedKeys are attribute keys whose values must never reach log output.
// Matching is case-insensitive.
var redactedKeys = map[string]struct{}{
	"accesstoken":   {},
	"access_token":  {},
	"clientsecret":  {},
	"client_secret": {},
	"webhooksecret": {},
	"secret":        {},
	"authorization": {},
	"code":          {},
	"state":         {},
	"token":         {},
}

// Redacted replaces the value of every sensitive attribute.
const Redacted = "[REDACTED]"

// New creates a *slog.Logger from the given Logging config writing JSON to stdout.
// The returned Closer flushes the async handler when Async is enabled.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncBuffer, asyncWorkers)
		handler = ah
		closer = ah
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
