package pkg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			assert.Equal(t, tt.level, GetLogLevel())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)
	require.NotNil(t, logger)

	logger.Warn("test message")
	assert.Contains(t, buf.String(), "test message")
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)
	require.NotNil(t, logger)

	logger.Warn("test message")
	assert.Contains(t, buf.String(), `"msg":"test message"`)
}

func TestLogHelpers(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
		level     slog.Level
	}{
		{"debug", LogDebug, ComponentDevice, slog.LevelDebug},
		{"info", LogInfo, ComponentHost, slog.LevelInfo},
		{"warn", LogWarn, ComponentQueue, slog.LevelWarn},
		{"error", LogError, ComponentPool, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []slog.Record
			SetLogger(slog.New(&slogstub.FuncHandler{
				EnabledFunc: func(ctx context.Context, level slog.Level) bool {
					return true
				},
				HandleFunc: func(ctx context.Context, record slog.Record) error {
					records = append(records, record)
					return nil
				},
			}))

			tt.log(tt.component, tt.name+" message", "key", "value")

			require.Len(t, records, 1)
			assert.Equal(t, tt.name+" message", records[0].Message)
			assert.Equal(t, tt.level, records[0].Level)

			attrs := map[string]string{}
			records[0].Attrs(func(a slog.Attr) bool {
				attrs[a.Key] = a.Value.String()
				return true
			})
			assert.Equal(t, string(tt.component), attrs["component"])
			assert.Equal(t, "value", attrs["key"])
		})
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	original := Logger()
	defer SetLogger(original)

	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	LogInfo(ComponentDriver, "custom logger test")
	assert.Contains(t, buf.String(), "custom logger test")
	assert.Contains(t, buf.String(), "component=driver")
}

func TestErrAttrs(t *testing.T) {
	attrs := ErrAttrs(ErrDeviceNotReady)
	require.Len(t, attrs, 4)
	assert.Equal(t, "error", attrs[0])
	assert.True(t, errors.Is(attrs[1].(error), ErrDeviceNotReady))
	assert.Equal(t, "errClass", attrs[2])
	assert.Equal(t, EDeviceNotReady, attrs[3])
}
