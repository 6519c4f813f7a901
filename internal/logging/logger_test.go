package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, INFO, ParseLevel("что-то"), "неизвестный уровень должен давать INFO")
}

func TestWriterLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("ai", &buf, WARN)

	logger.Info("не должно попасть")
	logger.Warn("агент %d не найден", 42)

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "агент 42 не найден")
	assert.Contains(t, out, "component=ai")

	logger.SetLevel(DEBUG)
	logger.Debug("переход %s", "IDLE->PATROL")
	assert.Contains(t, buf.String(), "IDLE->PATROL")
}

func TestLoggerManager_SetLogLevel(t *testing.T) {
	lm := GetLoggerManager()
	logger, err := lm.GetLogger("test-component")
	require.NoError(t, err)

	again, err := lm.GetLogger("test-component")
	require.NoError(t, err)
	assert.Same(t, logger, again, "повторный запрос должен возвращать тот же логгер")

	assert.NoError(t, lm.SetLogLevel("test-component", ERROR))
	assert.Error(t, lm.SetLogLevel("missing", ERROR))
	assert.Contains(t, lm.ListComponents(), "test-component")
}
