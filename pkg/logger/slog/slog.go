// Package slog adapts log/slog to the logger.Logger interface, for callers
// with an existing slog setup who skip the zerolog default.
package slog

import (
	"log/slog"
)

// SlogHandler routes Logger calls to a *slog.Logger. Key/value arguments
// pass through untouched since both sides share the alternating-pair
// convention.
type SlogHandler struct {
	logger *slog.Logger
}

// New builds a SlogHandler on top of a slog.Handler.
func New(h slog.Handler) *SlogHandler {
	return &SlogHandler{logger: slog.New(h)}
}

// FromSlog wraps an existing *slog.Logger, keeping whatever attributes the
// caller attached to it.
func FromSlog(l *slog.Logger) *SlogHandler {
	return &SlogHandler{logger: l}
}

func (h *SlogHandler) Error(msg string, args ...any) { h.logger.Error(msg, args...) }
func (h *SlogHandler) Warn(msg string, args ...any)  { h.logger.Warn(msg, args...) }
func (h *SlogHandler) Info(msg string, args ...any)  { h.logger.Info(msg, args...) }
func (h *SlogHandler) Debug(msg string, args ...any) { h.logger.Debug(msg, args...) }
