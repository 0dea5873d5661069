package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWriterEmitsJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	ConfigureWriter(&buf, "debug", true)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger := Component("batch")
	logger.Debug().Int("chunks", 3).Msg("starting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch", entry["component"])
	assert.Equal(t, "starting", entry["message"])
	assert.EqualValues(t, 3, entry["chunks"])
}

func TestConfigureWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	ConfigureWriter(&buf, "loud", true)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
