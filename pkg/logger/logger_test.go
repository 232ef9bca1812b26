package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, true)
	SetLevel("info")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := Component("optimizer")
	l.Debug().Msg("hidden")
	l.Warn().Str("product", "Kefir").Msg("default applied")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "optimizer", entry["component"])
	assert.Equal(t, "Kefir", entry["product"])
	assert.Equal(t, "warn", entry["level"])
}

func TestSetLevelModes(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	SetLevel("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	SetLevel("release")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	SetLevel("")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	SetLevel("loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
