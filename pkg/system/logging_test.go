package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	assert.False(t, NewLogger(false).Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, NewLogger(false).Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, NewLogger(true).Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestLoggerOrNop(t *testing.T) {
	assert.NotNil(t, LoggerOrNop(nil))
	log := NewTestLogger()
	assert.Same(t, log, LoggerOrNop(log))
}
