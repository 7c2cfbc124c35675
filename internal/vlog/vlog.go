// Package vlog adds a dedicated log level for video recording speed hints
// and an slog.Handler that diverts those records to an external video
// logger instead of the console.
package vlog

import (
	"context"
	"log/slog"
)

// LevelRecording sits below slog.LevelDebug so recording hints never show
// up in normal console output, even at debug verbosity.
const LevelRecording = slog.LevelDebug - 4

// Sink receives recording-speed events diverted from the log stream.
type Sink interface {
	EmitSpeed(multiplier int) error
}

// SetSpeed logs a recording-speed hint. The handler routes it to the video
// logger when one is attached and drops it otherwise.
func SetSpeed(ctx context.Context, logger *slog.Logger, multiplier int) {
	logger.Log(ctx, LevelRecording, "recording speed", "multiplier", multiplier)
}

// Handler wraps another slog.Handler. Records at LevelRecording are
// diverted to the sink; everything else passes through unchanged.
type Handler struct {
	next slog.Handler
	sink Sink
}

// NewHandler returns a Handler forwarding recording records to sink. A nil
// sink is valid and makes the handler inert for LevelRecording records.
func NewHandler(next slog.Handler, sink Sink) *Handler {
	return &Handler{next: next, sink: sink}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	if level == LevelRecording {
		return h.sink != nil
	}
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level != LevelRecording {
		return h.next.Handle(ctx, record)
	}
	if h.sink == nil {
		return nil
	}
	multiplier := 1
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == "multiplier" {
			multiplier = int(a.Value.Int64())
			return false
		}
		return true
	})
	return h.sink.EmitSpeed(multiplier)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs), sink: h.sink}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), sink: h.sink}
}
