package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому НЕ используют t.Parallel().

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFrom_ReturnsDefault_WhenNoLoggerInContext(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)

	require.Equal(t, def, From(context.Background()))
}

func TestIntoAndFrom_RoundTrip(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)

	require.Equal(t, l, From(ctx))
}

// TestFrom_ReturnsDefault_WhenStoredValueIsWrongTypeOrNil -
// From устойчив к «мусорным» значениям по нашему ключу и к *slog.Logger(nil).
func TestFrom_ReturnsDefault_WhenStoredValueIsWrongTypeOrNil(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	def := newSilent()
	slog.SetDefault(def)

	ctxWrong := context.WithValue(context.Background(), ctxKey{}, "not-a-logger")
	require.Equal(t, def, From(ctxWrong))

	var nilLogger *slog.Logger
	ctxNil := context.WithValue(context.Background(), ctxKey{}, nilLogger)
	require.Equal(t, def, From(ctxNil))
}

func TestInto_ShadowParentLogger(t *testing.T) {
	parentL := newSilent()
	childL := newSilent()

	parent := Into(context.Background(), parentL)
	child := Into(parent, childL)

	require.Equal(t, childL, From(child))
	require.Equal(t, parentL, From(parent))
}

// TestDetach_KeepsLoggerDropsCancel - Detach сохраняет логгер, но не отмену.
func TestDetach_KeepsLoggerDropsCancel(t *testing.T) {
	l := newSilent()
	parent, cancel := context.WithTimeout(Into(context.Background(), l), time.Millisecond)
	cancel()

	detached := Detach(parent)

	require.Equal(t, l, From(detached))
	require.NoError(t, detached.Err())
	_, ok := detached.Deadline()
	require.False(t, ok)
}

func TestNew_FormatsByEnv(t *testing.T) {
	var buf bytes.Buffer

	New(EnvProd, &buf).Debug("hidden")
	require.Empty(t, buf.String(), "prod не пишет debug")

	New(EnvProd, &buf).Info("user_signed_up", slog.String("user_id", "u1"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "user_signed_up", rec["msg"])
	require.Equal(t, "u1", rec["user_id"])

	buf.Reset()
	New(EnvDev, &buf).Debug("dev_debug")
	require.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))

	buf.Reset()
	New(EnvLocal, &buf).Debug("local_debug")
	require.True(t, strings.Contains(buf.String(), "msg=local_debug"))

	buf.Reset()
	New("unknown", &buf).Debug("fallback")
	require.Contains(t, buf.String(), "msg=fallback")
}
