package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Global logger instance
var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal sets the global CentralLogger instance.
// Called once during startup after configuration is loaded.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the global CentralLogger instance.
// Without SetGlobal it returns a console-only info logger on stderr.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger
	}

	cfg := &LoggingConfig{}
	applyConfigDefaults(cfg)
	encoder := zapcore.NewConsoleEncoder(newEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.InfoLevel)
	globalLogger = newCentralLoggerFromCore(core, cfg)

	return globalLogger
}

type traceIDKey struct{}

// TraceIDKey is the context key for trace IDs. Use WithTraceID to set values.
var TraceIDKey = traceIDKey{}

// WithTraceID returns a new context carrying the trace ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// CentralLogger owns the zap cores and hands out module loggers
type CentralLogger struct {
	config       *LoggingConfig
	core         *swapCore
	base         *zap.Logger
	rotator      *lumberjack.Logger
	moduleLevels map[string]zapcore.Level
	defaultLevel zapcore.Level
	mu           sync.RWMutex
}

// NewCentralLogger creates a centralized logger with console and optional rotated file output
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}

	applyConfigDefaults(cfg)
	core, rotator, err := buildCore(cfg)
	if err != nil {
		return nil, err
	}
	cl := newCentralLoggerFromCore(core, cfg)
	cl.rotator = rotator
	return cl, nil
}

// buildCore tees the console and file outputs enabled in cfg.
func buildCore(cfg *LoggingConfig) (zapcore.Core, *lumberjack.Logger, error) {
	var cores []zapcore.Core

	if cfg.Console.Enabled {
		var encoder zapcore.Encoder
		if cfg.Console.JSON {
			encoder = zapcore.NewJSONEncoder(newEncoderConfig())
		} else {
			encoder = zapcore.NewConsoleEncoder(newEncoderConfig())
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), parseZapLevel(cfg.Console.Level)))
	}

	var rotator *lumberjack.Logger
	if cfg.FileOutput.Enabled {
		core, r, err := newRotatingFileCore(cfg.FileOutput, zapcore.NewJSONEncoder(newEncoderConfig()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create file output: %w", err)
		}
		cores = append(cores, core)
		rotator = r
	}

	return zapcore.NewTee(cores...), rotator, nil
}

// NewCentralLoggerWithCore wraps an existing core. Tests pass an observer core here.
func NewCentralLoggerWithCore(core zapcore.Core, cfg *LoggingConfig) *CentralLogger {
	if cfg == nil {
		cfg = &LoggingConfig{}
	}
	applyConfigDefaults(cfg)
	return newCentralLoggerFromCore(core, cfg)
}

func newCentralLoggerFromCore(core zapcore.Core, cfg *LoggingConfig) *CentralLogger {
	cl := &CentralLogger{
		config: cfg,
		core:   newSwapCore(core),
	}
	cl.base = zap.New(cl.core)
	cl.setLevels(cfg)
	return cl
}

func (cl *CentralLogger) setLevels(cfg *LoggingConfig) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.defaultLevel = parseZapLevel(cfg.DefaultLevel)
	cl.moduleLevels = make(map[string]zapcore.Level, len(cfg.ModuleLevels))
	for module, level := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseZapLevel(level)
	}
}

// Configure replaces the outputs and levels of cl. Module loggers created
// before the call, including package-level ones, follow the new configuration.
func (cl *CentralLogger) Configure(cfg *LoggingConfig) error {
	if cfg == nil {
		return fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)
	core, rotator, err := buildCore(cfg)
	if err != nil {
		return err
	}

	_ = cl.base.Sync()
	cl.core.swap(core)
	cl.setLevels(cfg)

	cl.mu.Lock()
	old := cl.rotator
	cl.rotator = rotator
	cl.config = cfg
	cl.mu.Unlock()
	if old != nil {
		return old.Close()
	}
	return nil
}

// Module returns a logger scoped to the named module
func (cl *CentralLogger) Module(name string) Logger {
	return &zapLogger{
		central: cl,
		module:  name,
		z:       cl.base.With(zap.String("module", name)),
	}
}

// levelFor resolves the minimum level for a module by longest dotted prefix.
func (cl *CentralLogger) levelFor(module string) zapcore.Level {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	name := module
	for {
		if lvl, ok := cl.moduleLevels[name]; ok {
			return lvl
		}
		idx := strings.LastIndex(name, ".")
		if idx < 0 {
			return cl.defaultLevel
		}
		name = name[:idx]
	}
}

// SetModuleLevel changes a module level at runtime.
func (cl *CentralLogger) SetModuleLevel(module string, level LogLevel) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.moduleLevels[module] = toZapLevel(level)
}

// Flush syncs all cores
func (cl *CentralLogger) Flush() error {
	return cl.base.Sync()
}

// Close flushes and closes the rotated log file
func (cl *CentralLogger) Close() error {
	_ = cl.base.Sync()
	cl.mu.RLock()
	rotator := cl.rotator
	cl.mu.RUnlock()
	if rotator != nil {
		return rotator.Close()
	}
	return nil
}

// zapLogger implements Logger on top of a zap.Logger
type zapLogger struct {
	central *CentralLogger
	module  string
	z       *zap.Logger
}

func (l *zapLogger) Module(name string) Logger {
	full := l.module + "." + name
	return &zapLogger{
		central: l.central,
		module:  full,
		z:       l.z.With(zap.String("submodule", name)),
	}
}

func (l *zapLogger) Trace(msg string, fields ...Field) { l.write(traceLevel, msg, fields) }
func (l *zapLogger) Debug(msg string, fields ...Field) { l.write(zapcore.DebugLevel, msg, fields) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.write(zapcore.InfoLevel, msg, fields) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.write(zapcore.WarnLevel, msg, fields) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.write(zapcore.ErrorLevel, msg, fields) }

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.write(toZapLevel(level), msg, fields)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{
		central: l.central,
		module:  l.module,
		z:       l.z.With(toZapFields(fields)...),
	}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		return l.With(String("trace_id", traceID))
	}
	return l
}

func (l *zapLogger) Flush() error {
	return l.z.Sync()
}

func (l *zapLogger) write(level zapcore.Level, msg string, fields []Field) {
	if level < l.central.levelFor(l.module) {
		return
	}
	if ce := l.z.Check(level, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case nil:
			out = append(out, zap.Skip())
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case int64:
			out = append(out, zap.Int64(f.Key, v))
		case float64:
			out = append(out, zap.Float64(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Time:
			out = append(out, zap.Time(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}
