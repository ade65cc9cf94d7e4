// Package logger defines the leveled logging interface used across the SDK,
// plus a zerolog-backed implementation that is the default for clients.
package logger

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Logger accepts a message followed by alternating key/value pairs,
// log/slog style. Implementations must be safe for concurrent use.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ZerologHandler adapts a zerolog.Logger to the Logger interface.
type ZerologHandler struct {
	logger zerolog.Logger
}

// New returns a ZerologHandler writing JSON lines to w with timestamps.
func New(w io.Writer) *ZerologHandler {
	return &ZerologHandler{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// FromZerolog wraps an existing zerolog.Logger, keeping whatever context
// the caller attached to it.
func FromZerolog(l zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: l}
}

func (h *ZerologHandler) Error(msg string, args ...any) { h.emit(h.logger.Error(), msg, args) }
func (h *ZerologHandler) Warn(msg string, args ...any)  { h.emit(h.logger.Warn(), msg, args) }
func (h *ZerologHandler) Info(msg string, args ...any)  { h.emit(h.logger.Info(), msg, args) }
func (h *ZerologHandler) Debug(msg string, args ...any) { h.emit(h.logger.Debug(), msg, args) }

func (h *ZerologHandler) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 != 0 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	ev.Msg(msg)
}
