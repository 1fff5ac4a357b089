package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newRotatingFileCore creates a zapcore.Core that writes to a lumberjack-rotated file.
// The returned lumberjack.Logger must be closed on shutdown.
func newRotatingFileCore(cfg *FileOutput, encoder zapcore.Encoder) (zapcore.Core, *lumberjack.Logger, error) {
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("file path is required for rotating logger")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxRotatedFiles,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), parseZapLevel(cfg.Level))
	return core, rotator, nil
}

// traceLevel sits below zap's debug level.
const traceLevel = zapcore.DebugLevel - 1

func parseZapLevel(level string) zapcore.Level {
	switch LogLevel(level) {
	case LogLevelTrace:
		return traceLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapLevel(level LogLevel) zapcore.Level {
	return parseZapLevel(string(level))
}

// levelEncoder renders the custom trace level by name.
func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == traceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func newEncoderConfig() zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return cfg
}
