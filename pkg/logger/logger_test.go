package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestErrorCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithEvent(ctx, "evt_1", "invoice.paid")
	ctx = log.WithFields(ctx, map[string]any{"attempt": 2})
	log.Error(ctx, "reconcile failed", errors.New("boom"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "evt_1", entry["event_id"])
	assert.Equal(t, "invoice.paid", entry["event_type"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "stack")
}

func TestScopedFieldsDoNotLeakToParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "cron", Output: buf})
	parent := context.Background()
	_ = log.WithTeamID(parent, "team-1")

	log.Info(parent, "cycle")
	assert.NotContains(t, decodeLine(t, buf), "team_id")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf, WarnStack: true}).Warn(context.Background(), "warny")
	assert.Contains(t, decodeLine(t, buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "test", Output: buf}).Warn(context.Background(), "warny")
	assert.NotContains(t, decodeLine(t, buf), "stack")
}

func TestLevelFilteringAndConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf}).Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	New(Options{ServiceName: "test", Format: "Console", Output: buf}).Info(context.Background(), "human")
	assert.True(t, strings.Contains(buf.String(), "human"))
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
