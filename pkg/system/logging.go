package system

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the CLI logger. Output goes to stderr so stdout only ever
// carries the issued token. verbose lowers the level to debug.
func NewLogger(verbose bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		encoderCfg.TimeKey = ""
		encoderCfg.CallerKey = ""
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core).Sugar()
}

// LoggerOrNop returns log, or a no-op logger when log is nil.
func LoggerOrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log != nil {
		return log
	}
	return nopLogger
}

var nopLogger = zap.NewNop().Sugar()
