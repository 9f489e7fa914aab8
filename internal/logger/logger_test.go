package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestContextFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{ServiceName: "field-booking", Output: &buf})

	ctx := l.WithRequestID(context.Background(), "req-1")
	ctx = l.WithFields(ctx, map[string]any{"field_id": 7})
	l.Info(ctx, "allocated")

	m := decodeLine(t, &buf)
	assert.Equal(t, "allocated", m["message"])
	assert.Equal(t, "req-1", m["request_id"])
	assert.Equal(t, float64(7), m["field_id"])
	assert.Equal(t, "field-booking", m["service"])
}

func TestWarnIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})
	l.Warn(context.Background(), "publish failed", errors.New("broker down"))

	m := decodeLine(t, &buf)
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "broker down", m["error"])
	assert.NotContains(t, m, "stack")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: zerolog.WarnLevel})
	l.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
