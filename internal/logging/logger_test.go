package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		l, err := NewLogger(nil)
		require.NoError(t, err)
		assert.NotNil(t, l.Underlying())
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := NewLogger(&Config{Level: "info", Format: "xml"})
		assert.Error(t, err)
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := NewLogger(&Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("rejects empty field value", func(t *testing.T) {
		_, err := NewLogger(&Config{Level: "info", Format: "json", Fields: map[string]string{"service": ""}})
		assert.Error(t, err)
	})
}

func TestContextFields(t *testing.T) {
	ctx := WithPassID(context.Background(), "pass-1")
	ctx = WithRequestID(ctx, "req-9")

	tl := NewTestLogger()
	tl.Info(ctx, "pass finished", zap.Int("processed", 3))

	entries := tl.FilterMessage("pass finished").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "pass-1", fields["pass.id"])
	assert.Equal(t, "req-9", fields["request.id"])
	assert.Equal(t, int64(3), fields["processed"])
}

func TestContextFieldsEmpty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
	assert.Equal(t, "", PassIDFromContext(context.Background()))
}

func TestCronLogger(t *testing.T) {
	tl := NewTestLogger()
	cl := CronLogger(tl.Logger)

	cl.Info("skip", "now", "12:00")
	cl.Error(errors.New("boom"), "job panicked")

	tl.AssertLogged(t, zapcore.DebugLevel, "skip")
	tl.AssertLogged(t, zapcore.ErrorLevel, "job panicked")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	tl := NewTestLogger()
	assert.Same(t, tl.Logger, OrNop(tl.Logger))
}
