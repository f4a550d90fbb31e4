package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/pkg/constants"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(constants.LogLevelWarn, &buf)
	ctx := context.Background()

	log.Debug(ctx, "debug")
	log.Info(ctx, "info")
	log.Warn(ctx, "warn")
	log.Error(ctx, "error", errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, "boom", entries[1].Fields["error"])
	assert.NotEmpty(t, entries[1].Caller)
}

func TestLogger_SetLevelIsSharedByChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(constants.LogLevelError, &buf)
	child := root.WithComponent("refresher")

	child.Info(context.Background(), "hidden")
	root.SetLevel(constants.LogLevelDebug)
	child.Info(context.Background(), "visible")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0].Message)
	assert.Equal(t, "refresher", entries[0].Component)
}

func TestLogger_MasksSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(constants.LogLevelInfo, &buf).WithFields(String("purpose", "HMAC"))

	log.Info(context.Background(), "generated", String("key_material", "0123456789abcdef"), Int64("key_id", 7))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "0123***cdef", entries[0].Fields["key_material"])
	assert.Equal(t, "HMAC", entries[0].Fields["purpose"])
	assert.EqualValues(t, 7, entries[0].Fields["key_id"])
}

func TestLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(constants.LogLevelInfo, &buf)
	ctx := context.WithValue(context.Background(), constants.ContextKeyPurpose, "HMAC")

	log.Info(ctx, "refreshed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "HMAC", entries[0].Fields["key_purpose"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, constants.LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, constants.LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, constants.LogLevelInfo, ParseLevel("bogus"))
}
