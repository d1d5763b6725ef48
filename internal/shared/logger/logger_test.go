package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadverse/internal/shared/types"
)

func TestInitWithWriter_LevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "WARN"}, &buf))
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())

	Info().Msg("hidden")
	l := WithComponent("Mesh")
	l.Warn().Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "Mesh")
}

func TestInitWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "chatty"}, &buf))
	assert.Equal(t, zerolog.InfoLevel, log.Logger.GetLevel())
}
