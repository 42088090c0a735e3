package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONOutput(t *testing.T) {
	require := require.New(t)
	t.Setenv(EnvKey, "")

	var buf bytes.Buffer
	l := NewSlogWithOutput(&buf, InfoLevel, false)

	l.Debug("hidden", "k", 1)
	require.Zero(buf.Len())

	l.With("component", "runner").Info("packet recorded", "id", 7)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("packet recorded", rec["msg"])
	require.Equal("runner", rec["component"])
	require.EqualValues(7, rec["id"])
	require.Contains(rec, "ts")
	require.NotContains(rec, "time")
}

func TestSlogLogger_SetLevelSharedWithChildren(t *testing.T) {
	require := require.New(t)
	t.Setenv(EnvKey, "")

	var buf bytes.Buffer
	l := NewSlogWithOutput(&buf, ErrorLevel, false)
	child := l.With("component", "scheduler")
	require.Equal(ErrorLevel, child.Level())

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())

	child.Debug("tick")
	require.Contains(buf.String(), `"msg":"tick"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"verbose", InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.name)
			require.Equal(t, tt.level, level)
			require.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	m := NewNopMockLogger()
	SetLogger(m)
	SetLogger(nil)
	require.Same(t, m, GetLogger())

	Info("hello", "k", "v")
	m.AssertCalled(t, "Info", "hello", []any{"k", "v"})
}
