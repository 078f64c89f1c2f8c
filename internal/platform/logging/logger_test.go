package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, sonic.UnmarshalString(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_WritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo).Named("guide").With("feed", "epg")

	logger.Info("guide refreshed", "channels", 12, "err", errors.New("boom"))
	logger.Debug("dropped below level")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "guide refreshed", entries[0]["msg"])
	assert.Equal(t, "guide", entries[0]["component"])
	assert.Equal(t, "epg", entries[0]["feed"])
	assert.EqualValues(t, 12, entries[0]["channels"])
	assert.Equal(t, "boom", entries[0]["err"])
	assert.Contains(t, entries[0]["caller"], "logger_test.go")
}

func TestLogger_OddArgsAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelDebug)

	logger.WarnContext(context.Background(), "odd args", 42, "x", "dangling")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0]["arg"])
	assert.Contains(t, entries[0], "dangling")
	assert.NotContains(t, entries[0], "trace_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNilLoggerFallsBackToDefault(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		_ = logger.With("k", "v")
		_ = logger.Sync()
	})
}
