package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a minimal structured logger with secret redaction.
func New() *slog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel builds a stderr logger at the named level. Unknown levels fall back to info.
// Stdout is left to the console sink.
func NewWithLevel(level string) *slog.Logger {
	return slog.New(newHandler(os.Stderr, parseLevel(level)))
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if isSecretKey(a.Key) {
				a.Value = slog.StringValue("[redacted]")
			}
			return a
		},
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "key") || strings.Contains(k, "pass")
}

// MaskURL hides the trailing path segment of an RPC URL, where providers put API keys.
func MaskURL(url string) string {
	pos := strings.LastIndex(url, "/")
	if pos < 0 || pos+1 >= len(url) {
		return url
	}
	base, key := url[:pos+1], url[pos+1:]
	if len(key) <= 8 {
		return url
	}
	return base + key[:4] + "..." + key[len(key)-4:]
}
