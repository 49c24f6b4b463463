package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewWithSink creates a logger that writes colored console output to stdout
// and duplicates every entry to the provided sink (typically the install log
// file). The sink output uses a plain level encoder so log files stay free of
// ANSI escapes, and always records debug detail regardless of the console
// level, so the log file holds the full diagnostics after a failed run.
func NewWithSink(level zapcore.LevelEnabler, sink io.Writer, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig(zapcore.CapitalColorLevelEncoder))
	fileEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig(zapcore.CapitalLevelEncoder))

	fileCore := &coreWithLevel{
		Core:  zapcore.NewCore(fileEncoder, zapcore.AddSync(sink), zapcore.DebugLevel),
		level: zapcore.DebugLevel,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
		fileCore,
	)

	return zap.New(core, options...).Sugar()
}

// consoleEncoderConfig returns the shared console encoder configuration with
// the provided level encoder.
//
//nolint:exhaustruct // Default encoder configuration values are fine.
func consoleEncoderConfig(levelEncoder zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: ", ",
	}
}
