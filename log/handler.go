// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

const timeFormat = "2006-01-02T15:04:05-0700"
const termTimeFormat = "Jan 02 15:04:05"

const (
	termCtxMaxPadding = 40
	escapeGreen       = "\x1b[32m"
	escapeYellow      = "\x1b[33m"
	escapeRed         = "\x1b[31m"
	escapeMagenta     = "\x1b[35m"
	escapeCyan        = "\x1b[36m"
	escapeReset       = "\x1b[0m"
)

type discardHandler struct{}

// DiscardHandler returns a no-op handler.
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (h *discardHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (h *discardHandler) WithGroup(_ string) slog.Handler {
	panic("not implemented")
}

func (h *discardHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return &discardHandler{}
}

// TerminalHandler formats records for human readability on a terminal:
//
//	[LEVEL] [TIME] MESSAGE key=value key=value ...
type TerminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	lvl      *slog.LevelVar
	useColor bool
	attrs    []slog.Attr
	// fieldPadding is a map with maximum field value lengths seen until now
	// to allow padding log contexts in a bit smarter way.
	fieldPadding map[string]int

	buf []byte
}

// NewTerminalHandler returns a handler which formats log records at all levels,
// intended for interactive use.
func NewTerminalHandler(wr io.Writer, useColor bool) *TerminalHandler {
	var level slog.LevelVar
	level.Set(levelMaxVerbosity)
	return NewTerminalHandlerWithLevel(wr, &level, useColor)
}

// NewTerminalHandlerWithLevel returns the same handler as NewTerminalHandler but only
// outputs records at or above the specified verbosity level.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl *slog.LevelVar, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		wr:           wr,
		lvl:          lvl,
		useColor:     useColor,
		fieldPadding: make(map[string]int),
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.format(h.buf, r)
	h.wr.Write(buf)
	h.buf = buf[:0]
	return nil
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level.Level() >= h.lvl.Level()
}

func (h *TerminalHandler) WithGroup(_ string) slog.Handler {
	panic("not implemented")
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TerminalHandler{
		wr:           h.wr,
		lvl:          h.lvl,
		useColor:     h.useColor,
		attrs:        append(append([]slog.Attr{}, h.attrs...), attrs...),
		fieldPadding: make(map[string]int),
	}
}

func (h *TerminalHandler) format(buf []byte, r slog.Record) []byte {
	level := LevelString(r.Level)
	if h.useColor {
		switch r.Level {
		case LevelTrace:
			level = escapeMagenta + level + escapeReset
		case LevelDebug:
			level = escapeCyan + level + escapeReset
		case LevelInfo:
			level = escapeGreen + level + escapeReset
		case LevelWarn:
			level = escapeYellow + level + escapeReset
		case LevelError:
			level = escapeRed + level + escapeReset
		}
	}
	buf = append(buf, fmt.Sprintf("%-5s [%s] %-40s", level, r.Time.Format(termTimeFormat), r.Message)...)

	writeAttr := func(attr slog.Attr) {
		buf = append(buf, ' ')
		key := attr.Key
		val := formatValue(attr.Value)
		padding := h.fieldPadding[key]
		if len(val) > padding && len(val) <= termCtxMaxPadding {
			padding = len(val)
			h.fieldPadding[key] = padding
		}
		buf = append(buf, key...)
		buf = append(buf, '=')
		buf = append(buf, val...)
		if len(val) < padding {
			buf = append(buf, []byte("                                        ")[:padding-len(val)]...)
		}
	}
	for _, attr := range h.attrs {
		writeAttr(attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(attr)
		return true
	})
	return append(buf, '\n')
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(timeFormat)
	case slog.KindString:
		return v.String()
	}
	switch a := v.Any().(type) {
	case *big.Int:
		if a == nil {
			return "<nil>"
		}
		return a.String()
	case *uint256.Int:
		if a == nil {
			return "<nil>"
		}
		return a.Dec()
	case error:
		return a.Error()
	case fmt.Stringer:
		return a.String()
	case float64:
		return strconv.FormatFloat(a, 'f', 3, 64)
	case time.Duration:
		return a.String()
	default:
		return fmt.Sprintf("%v", v.Any())
	}
}

type leveler struct{ minLevel *slog.LevelVar }

func (l *leveler) Level() slog.Level {
	return l.minLevel.Level()
}

// JSONHandlerWithLevel returns a handler which prints records in JSON format at or
// above the specified verbosity level.
func JSONHandlerWithLevel(wr io.Writer, level *slog.LevelVar) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		Level: &leveler{level},
	})
}
