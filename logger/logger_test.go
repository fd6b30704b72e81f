package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevels(t *testing.T) {
	log, logs := NewObserverLogger("debug")

	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")

	entries := logs.All()
	require.Len(t, entries, 4)
	for i, want := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		require.Equal(t, want, entries[i].Level)
		require.Empty(t, entries[i].ContextMap())
	}
}

func TestWithContext(t *testing.T) {
	log, logs := NewObserverLogger("info")

	log.DebugWithContext(context.Background(), "filtered")
	log.InfoWithContext(context.Background(), "no span")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	log.With(zap.String("call_id", "abc")).WarnWithContext(ctx, "with span", zap.Int("tile", 3))

	require.Equal(t, 2, logs.Len())
	require.Empty(t, logs.All()[0].ContextMap())

	entry := logs.FilterMessage("with span").All()[0]
	require.Equal(t, map[string]interface{}{
		"call_id":  "abc",
		"tile":     int64(3),
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}, entry.ContextMap())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		for _, level := range []string{"debug", "info", "warn", "error", "none"} {
			log, err := NewLogger(format, level)
			require.NoError(t, err, "%s %s", format, level)
			require.NotNil(t, log)
		}
	}

	log, err := NewLogger("json", "warn")
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger("json", "loud")
	require.Error(t, err)
	_, err = NewLogger("xml", "info")
	require.Error(t, err)
}
