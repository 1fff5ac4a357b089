package logger

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a Logger that writes through t.Log at debug level and above.
func NewTestLogger(t zaptest.TestingT) Logger {
	z := zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel))
	cl := NewCentralLoggerWithCore(z.Core(), &LoggingConfig{DefaultLevel: string(LogLevelDebug)})
	return cl.Module("test")
}

// NewObservedLogger returns a CentralLogger whose entries can be inspected.
func NewObservedLogger(cfg *LoggingConfig) (*CentralLogger, *observer.ObservedLogs) {
	core, logs := observer.New(traceLevel)
	return NewCentralLoggerWithCore(core, cfg), logs
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return NewCentralLoggerWithCore(zapcore.NewNopCore(), nil).Module("nop")
}
