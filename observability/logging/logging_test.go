package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "lootpoold", Env: "test"})
	logger.Info("draw dispensed", "tier", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "draw dispensed", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "lootpoold", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "x", Level: "warn"})
	logger.Info("hidden")
	require.Zero(t, buf.Len())
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("secret", "abc").Value.String())
	require.Equal(t, "7", MaskField("tier", "7").Value.String())
	require.Equal(t, "", MaskField("secret", "").Value.String())
}
