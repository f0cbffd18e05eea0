package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureLogs swaps the global logger for one writing to a buffer.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := DefaultLogger
	t.Cleanup(func() { DefaultLogger = previous })
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})
	DefaultLogger = slog.New(NewContextHandler(handler))
	return &buf
}

func TestDetectionJob(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	DetectionJob("job-42", 1200, 5, "medium", "duration_ms", 18)

	out := buf.String()
	assert.Contains(t, out, "detection job completed")
	assert.Contains(t, out, "job_id=job-42")
	assert.Contains(t, out, "different_pixels=1200")
	assert.Contains(t, out, "regions=5")
	assert.Contains(t, out, "difficulty=medium")
	assert.Contains(t, out, "duration_ms=18")
}

func TestSessionEvent(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	SessionEvent("sess-1", "created", "room_id", "room-9")

	out := buf.String()
	assert.Contains(t, out, "session event")
	assert.Contains(t, out, "session_id=sess-1")
	assert.Contains(t, out, "event=created")
	assert.Contains(t, out, "room_id=room-9")
}

func TestContextHandler_EnrichesFromContext(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	ctx := WithRoomID(context.Background(), "room-3")
	ctx = WithJobID(ctx, "job-7")
	InfoContext(ctx, "click validated")

	out := buf.String()
	assert.Contains(t, out, "room_id=room-3")
	assert.Contains(t, out, "job_id=job-7")
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	Debug("noisy detail")
	assert.Empty(t, buf.String())

	buf2 := captureLogs(t, slog.LevelDebug)
	Debug("noisy detail")
	assert.Contains(t, buf2.String(), "noisy detail")
}
