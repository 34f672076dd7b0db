package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "debug")
	t.Cleanup(func() { Configure(os.Stderr, "info") })

	Component("telegram").Debug("polling")
	line := lastLine(t, &buf)
	assert.Equal(t, "telegram", line["component"])
	assert.Equal(t, "polling", line["msg"])

	WithFields("component", "server", "addr", ":8080").Info("listening")
	line = lastLine(t, &buf)
	assert.Equal(t, "server", line["component"])
	assert.Equal(t, ":8080", line["addr"])
}

func TestConfigureFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "warn")
	t.Cleanup(func() { Configure(os.Stderr, "info") })

	Component("x").Info("dropped")
	assert.Zero(t, buf.Len())
	Component("x").Warn("kept")
	assert.Equal(t, "kept", lastLine(t, &buf)["msg"])
}

func TestLoggerFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "info")
	t.Cleanup(func() { Configure(os.Stderr, "info") })

	LoggerFromContext(context.Background()).Info("plain")
	_, ok := lastLine(t, &buf)["request_id"]
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "req-42")
	LoggerFromContext(ctx).Info("tagged")
	assert.Equal(t, "req-42", lastLine(t, &buf)["request_id"])
}
