// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError

	levelMaxVerbosity = LevelTrace
)

// Logger writes key/value pairs to a Handler.
type Logger interface {
	// With returns a new Logger that has this logger's attributes plus the given attributes.
	With(ctx ...any) Logger

	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)

	// Handler returns the underlying handler of the inner logger.
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

// NewLogger returns a logger with the specified handler set.
func NewLogger(h slog.Handler) Logger {
	return &logger{slog.New(h)}
}

func (l *logger) Handler() slog.Handler {
	return l.inner.Handler()
}

func (l *logger) With(ctx ...any) Logger {
	return &logger{l.inner.With(ctx...)}
}

func (l *logger) log(level slog.Level, msg string, attrs ...any) {
	l.inner.Log(context.Background(), level, msg, attrs...)
}

func (l *logger) Trace(msg string, ctx ...any) { l.log(LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.log(LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.log(LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.log(LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.log(LevelError, msg, ctx...) }

// rootHandler delegates to a swappable handler so loggers captured at package
// init keep following SetDefaultHandler.
type rootHandler struct {
	h     *atomic.Pointer[slog.Handler]
	attrs []slog.Attr
}

func (r *rootHandler) Handle(ctx context.Context, rec slog.Record) error {
	if len(r.attrs) > 0 {
		rec = rec.Clone()
		rec.AddAttrs(r.attrs...)
	}
	return (*r.h.Load()).Handle(ctx, rec)
}

func (r *rootHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*r.h.Load()).Enabled(ctx, level)
}

func (r *rootHandler) WithGroup(_ string) slog.Handler {
	panic("not implemented")
}

func (r *rootHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &rootHandler{h: r.h, attrs: append(append([]slog.Attr{}, r.attrs...), attrs...)}
}

var (
	defaultHandler atomic.Pointer[slog.Handler]
	root           Logger
)

func init() {
	h := DiscardHandler()
	defaultHandler.Store(&h)
	root = &logger{slog.New(&rootHandler{h: &defaultHandler})}
}

// SetDefaultHandler swaps the handler behind the root logger and every logger
// derived from it via WithContext.
func SetDefaultHandler(h slog.Handler) {
	defaultHandler.Store(&h)
}

// Root returns the root logger.
func Root() Logger {
	return root
}

// WithContext returns the root logger with the given attributes attached.
// Packages conventionally call it once: log.WithContext("pkg", "ledger").
func WithContext(ctx ...any) Logger {
	return Root().With(ctx...)
}

// VerbosityToLevel maps legacy integer verbosity (0=error .. 5+=trace) to a
// slog level.
func VerbosityToLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 1:
		return LevelError
	case verbosity == 2:
		return LevelWarn
	case verbosity == 3:
		return LevelInfo
	case verbosity == 4:
		return LevelDebug
	default:
		return LevelTrace
	}
}

// LevelString returns a 5-character string containing the name of a Lvl.
func LevelString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}
