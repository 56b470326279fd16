package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xexec/pkg/context/xctx"
)

func newJSONLogger(t *testing.T, buf *bytes.Buffer) LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := New().SetOutput(buf).SetFormat("json").SetLevel(LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf)
	ctx := context.Background()

	logger.Debug(ctx, "d")
	logger.Info(ctx, "i", Count(3))
	logger.Warn(ctx, "w", Policy("abort"))
	logger.Error(ctx, "e", Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, float64(3), lines[1][KeyCount])
	assert.Equal(t, "abort", lines[2][KeyPolicy])
	assert.Equal(t, "boom", lines[3][KeyError])
}

func TestLogger_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf)

	logger.SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, logger.GetLevel())
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))

	child := logger.With(Component("xpool"))
	child.Info(context.Background(), "hidden")
	child.Warn(context.Background(), "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "xpool", lines[0][KeyComponent])

	// 派生 logger 共享级别
	logger.SetLevel(LevelDebug)
	child.Debug(context.Background(), "now visible")
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestLogger_EnrichFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf)

	ctx, _ := xctx.WithIdentity(context.Background(), xctx.Identity{
		Pool: "orders", TaskID: 12, HasTask: true, WorkerID: 2, HasWorker: true,
	})
	logger.Info(ctx, "task started")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "orders", lines[0][xctx.KeyPool])
	assert.Equal(t, float64(12), lines[0][xctx.KeyTaskID])
	assert.Equal(t, float64(2), lines[0][xctx.KeyWorkerID])
}

func TestLogger_WithGroupAndStack(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf)

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.WithGroup(""))

	g := logger.WithGroup("task")
	g.Info(context.Background(), "grouped", slog.Int("n", 1))

	//nolint:staticcheck // nil ctx 应被容忍
	logger.Stack(nil, "stack", Duration(time.Second))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	group, ok := lines[0]["task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), group["n"])
	assert.Contains(t, lines[1][KeyStack], "goroutine")
	assert.Equal(t, "1s", lines[1][KeyDuration])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogger_OnError(t *testing.T) {
	var got []error
	logger, _, err := New().
		SetOutput(failingWriter{}).
		SetOnError(func(err error) {
			got = append(got, err)
			panic("callback panic is contained")
		}).
		Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "x")
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), ErrorCount(logger))
	assert.Equal(t, uint64(0), ErrorCount(nil))
}

func TestBuilder_Errors(t *testing.T) {
	_, _, err := New().SetFormat("xml").Build()
	assert.Error(t, err)

	_, _, err = New().SetLevelString("loud").SetFormat("xml").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown level")

	_, _, err = New().SetRotation("").Build()
	assert.Error(t, err)
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	logger, cleanup, err := New().SetRotation(path).SetFormat("").SetEnrich(false).SetAddSource(true).Build()
	require.NoError(t, err)
	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())
}

func TestNewEnrichHandler(t *testing.T) {
	_, err := NewEnrichHandler(nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	h, err := NewEnrichHandler(slog.NewTextHandler(&bytes.Buffer{}, nil))
	require.NoError(t, err)
	assert.NotNil(t, h.WithAttrs([]slog.Attr{slog.Int("a", 1)}))
	assert.NotNil(t, h.WithGroup("g"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug, " INFO ": LevelInfo, "warning": LevelWarn, "Error": LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, LevelWarn, l)
	assert.Error(t, l.UnmarshalText([]byte("nope")))
	text, err := LevelError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ERROR", string(text))
	assert.Equal(t, "INFO+2", Level(2).String())
	assert.Equal(t, slog.LevelWarn, LevelWarn.Level())
}

func TestLevel_OffsetRoundTrip(t *testing.T) {
	got, err := ParseLevel("warn-1")
	require.NoError(t, err)
	assert.Equal(t, Level(slog.LevelWarn-1), got)

	for _, l := range []Level{LevelDebug, Level(2), LevelError + 4} {
		text, err := l.MarshalText()
		require.NoError(t, err)
		var back Level
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, l, back, string(text))
	}
}

func TestGlobal(t *testing.T) {
	t.Cleanup(ResetDefault)

	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf)
	SetDefault(nil)
	SetDefault(logger)
	assert.Same(t, logger, Default())

	ctx := context.Background()
	Debug(ctx, "a")
	Info(ctx, "b")
	Warn(ctx, "c")
	Error(ctx, "d")
	assert.Len(t, decodeLines(t, &buf), 4)

	ResetDefault()
	assert.NotNil(t, Default())
}
