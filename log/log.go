// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log is the logging facade of the protocol engine.
// Records are routed to the go-ethereum root logger, so a single handler
// configured at startup controls every package.
package log

import (
	"context"
	"io"
	"log/slog"

	gethlog "github.com/ethereum/go-ethereum/log"
)

const (
	LevelTrace = gethlog.LevelTrace
	LevelDebug = gethlog.LevelDebug
	LevelInfo  = gethlog.LevelInfo
	LevelWarn  = gethlog.LevelWarn
	LevelError = gethlog.LevelError
	LevelCrit  = gethlog.LevelCrit
)

// Legacy verbosity values accepted by Setup.
const (
	LegacyLevelCrit = iota
	LegacyLevelError
	LegacyLevelWarn
	LegacyLevelInfo
	LegacyLevelDebug
	LegacyLevelTrace
)

// level gates every handler installed by Setup and SetupJSON.
var level = new(slog.LevelVar)

// Level returns the minimum level of the installed handler. Setting it takes
// effect on the next record.
func Level() *slog.LevelVar { return level }

type levelHandler struct {
	slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{h.Handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{h.Handler.WithGroup(name)}
}

func install(h slog.Handler) {
	gethlog.SetDefault(gethlog.NewLogger(&levelHandler{h}))
}

// Logger writes leveled key/value records.
type Logger interface {
	With(ctx ...any) Logger
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
}

// ctxLogger resolves the root logger lazily, so package level loggers
// created before Setup pick up the configured handler.
type ctxLogger struct {
	ctx []any
}

// WithContext returns a logger carrying the given key/value context.
func WithContext(ctx ...any) Logger {
	return &ctxLogger{ctx: ctx}
}

func (l *ctxLogger) root() gethlog.Logger { return gethlog.Root().With(l.ctx...) }

func (l *ctxLogger) With(ctx ...any) Logger {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	return &ctxLogger{ctx: append(merged, ctx...)}
}

func (l *ctxLogger) Trace(msg string, ctx ...any) { l.root().Trace(msg, ctx...) }
func (l *ctxLogger) Debug(msg string, ctx ...any) { l.root().Debug(msg, ctx...) }
func (l *ctxLogger) Info(msg string, ctx ...any)  { l.root().Info(msg, ctx...) }
func (l *ctxLogger) Warn(msg string, ctx ...any)  { l.root().Warn(msg, ctx...) }
func (l *ctxLogger) Error(msg string, ctx ...any) { l.root().Error(msg, ctx...) }

// Setup installs a terminal handler on the root logger.
// verbosity follows the legacy scale: 0 crit .. 5 trace.
func Setup(w io.Writer, verbosity int, useColor bool) {
	level.Set(gethlog.FromLegacyLevel(verbosity))
	install(gethlog.NewTerminalHandlerWithLevel(w, LevelTrace, useColor))
}

// SetupJSON installs a JSON handler on the root logger.
func SetupJSON(w io.Writer, verbosity int) {
	level.Set(gethlog.FromLegacyLevel(verbosity))
	install(gethlog.JSONHandlerWithLevel(w, LevelTrace))
}

// Discard silences all output.
func Discard() {
	gethlog.SetDefault(gethlog.NewLogger(gethlog.DiscardHandler()))
}

func Trace(msg string, ctx ...any) { gethlog.Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { gethlog.Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { gethlog.Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { gethlog.Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { gethlog.Root().Error(msg, ctx...) }
