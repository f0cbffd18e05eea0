package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// automatically extracted and added to log entries by ContextHandler.
const (
	// ContextKeyJobID identifies a difference-detection job.
	ContextKeyJobID contextKey = "job_id"

	// ContextKeyRoomID identifies the socket room a player is attached to.
	ContextKeyRoomID contextKey = "room_id"

	// ContextKeySessionID identifies a game session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyClientID identifies an individual socket connection.
	ContextKeyClientID contextKey = "client_id"

	// ContextKeyRequestID identifies an individual HTTP request.
	ContextKeyRequestID contextKey = "request_id"
)

// allContextKeys lists the context keys extracted for logging.
var allContextKeys = []contextKey{
	ContextKeyJobID,
	ContextKeyRoomID,
	ContextKeySessionID,
	ContextKeyClientID,
	ContextKeyRequestID,
}

// WithJobID returns a new context with the detection job ID set.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ContextKeyJobID, jobID)
}

// WithRoomID returns a new context with the room ID set.
func WithRoomID(ctx context.Context, roomID string) context.Context {
	return context.WithValue(ctx, ContextKeyRoomID, roomID)
}

// WithSessionID returns a new context with the game session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithClientID returns a new context with the socket client ID set.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ContextKeyClientID, clientID)
}

// WithRequestID returns a new context with the HTTP request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ContextHandler is a slog.Handler that automatically extracts logging fields
// from context and adds them to log records. It wraps an inner handler and
// delegates all actual logging to it after enriching records with context data.
type ContextHandler struct {
	inner        slog.Handler
	commonFields []slog.Attr
}

// NewContextHandler creates a new ContextHandler wrapping the given handler.
// The commonFields are added to every log record (useful for environment, service name, etc.).
func NewContextHandler(inner slog.Handler, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{
		inner:        inner,
		commonFields: commonFields,
	}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enriches the record with common fields and any correlation IDs found
// in the context before delegating to the inner handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	newRecord := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	for _, attr := range h.commonFields {
		newRecord.AddAttrs(attr)
	}

	for _, key := range allContextKeys {
		if value := ctx.Value(key); value != nil {
			newRecord.AddAttrs(slog.Any(string(key), value))
		}
	}

	r.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(a)
		return true
	})

	return h.inner.Handle(ctx, newRecord)
}

// WithAttrs returns a new handler whose attributes consist of both the
// receiver's attributes and the arguments.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:        h.inner.WithAttrs(attrs),
		commonFields: h.commonFields,
	}
}

// WithGroup returns a new handler with the given group appended to the
// receiver's existing groups.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{
		inner:        h.inner.WithGroup(name),
		commonFields: h.commonFields,
	}
}
