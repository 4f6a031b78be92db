// Package logger provides namespaced, opt-in debug logging in the style of
// the Node.js "debug" module: each call site owns a small named logger, and
// output is silent unless the DEBUG environment variable selects its
// namespace via a glob (DEBUG=mcp:*, DEBUG=cli:git, DEBUG=*).
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"
)

// Logger writes namespaced debug output to stderr when its namespace is
// selected by the DEBUG environment variable.
type Logger struct {
	namespace string
}

var (
	patternsMu sync.RWMutex
	patterns   []string
	loadedEnv  string
)

// New creates a logger for the given namespace, e.g. "mcp:server" or
// "cli:git". Namespaces are conventionally "area:subarea".
func New(namespace string) *Logger {
	return &Logger{namespace: namespace}
}

// Print writes v to stderr, prefixed with the namespace and a timestamp,
// if the namespace is currently enabled.
func (l *Logger) Print(v ...any) {
	if !l.enabled() {
		return
	}
	l.write(fmt.Sprint(v...))
}

// Printf writes a formatted message to stderr, prefixed with the namespace
// and a timestamp, if the namespace is currently enabled.
func (l *Logger) Printf(format string, v ...any) {
	if !l.enabled() {
		return
	}
	l.write(fmt.Sprintf(format, v...))
}

func (l *Logger) write(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s %s\n", time.Now().Format(time.RFC3339Nano), l.namespace, msg)
}

func (l *Logger) enabled() bool {
	for _, pattern := range currentPatterns() {
		if pattern == "*" {
			return true
		}
		if ok, _ := path.Match(pattern, l.namespace); ok {
			return true
		}
		// Support trailing-glob namespaces like "mcp:*" matching "mcp:server:http"
		if strings.HasSuffix(pattern, "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if strings.HasPrefix(l.namespace, prefix) {
				return true
			}
		}
	}
	return false
}

func currentPatterns() []string {
	env := os.Getenv("DEBUG")

	patternsMu.RLock()
	if env == loadedEnv {
		defer patternsMu.RUnlock()
		return patterns
	}
	patternsMu.RUnlock()

	patternsMu.Lock()
	defer patternsMu.Unlock()
	loadedEnv = env
	patterns = nil
	if env == "" {
		return patterns
	}
	for _, p := range strings.Split(env, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// slogWriter adapts a *Logger to io.Writer so it can back a slog.Handler.
type slogWriter struct{ l *Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.l.write(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewSlogLoggerWithHandler wraps a *Logger as a *slog.Logger so it can be
// passed to components (such as the MCP SDK's ServerOptions.Logger) that
// expect the standard structured-logging interface instead of this
// package's own Print/Printf methods. Records are gated by the same
// DEBUG-namespace check as Print/Printf: when the namespace is disabled,
// the handler discards every record without formatting it.
func NewSlogLoggerWithHandler(l *Logger) *slog.Logger {
	handler := slog.NewTextHandler(slogWriter{l: l}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(&gatedHandler{inner: handler, l: l})
}

// gatedHandler defers to inner only when l's namespace is enabled, so a
// disabled logger pays no formatting cost for slog records either.
type gatedHandler struct {
	inner slog.Handler
	l     *Logger
}

func (g *gatedHandler) Enabled(_ context.Context, _ slog.Level) bool { return g.l.enabled() }

func (g *gatedHandler) Handle(ctx context.Context, r slog.Record) error {
	if !g.l.enabled() {
		return nil
	}
	return g.inner.Handle(ctx, r)
}

func (g *gatedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &gatedHandler{inner: g.inner.WithAttrs(attrs), l: g.l}
}

func (g *gatedHandler) WithGroup(name string) slog.Handler {
	return &gatedHandler{inner: g.inner.WithGroup(name), l: g.l}
}
