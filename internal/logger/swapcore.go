package logger

import (
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// swapCore forwards to a core that can be replaced after loggers derived
// from it were created. Fields added with With are replayed on the current core.
type swapCore struct {
	current *atomic.Pointer[zapcore.Core]
	fields  []zapcore.Field
}

func newSwapCore(core zapcore.Core) *swapCore {
	p := new(atomic.Pointer[zapcore.Core])
	p.Store(&core)
	return &swapCore{current: p}
}

func (s *swapCore) swap(core zapcore.Core) {
	s.current.Store(&core)
}

func (s *swapCore) target() zapcore.Core {
	core := *s.current.Load()
	if len(s.fields) == 0 {
		return core
	}
	return core.With(s.fields)
}

func (s *swapCore) Enabled(level zapcore.Level) bool {
	return (*s.current.Load()).Enabled(level)
}

func (s *swapCore) With(fields []zapcore.Field) zapcore.Core {
	return &swapCore{
		current: s.current,
		fields:  append(s.fields[:len(s.fields):len(s.fields)], fields...),
	}
}

func (s *swapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return s.target().Check(ent, ce)
}

func (s *swapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return s.target().Write(ent, fields)
}

func (s *swapCore) Sync() error {
	return (*s.current.Load()).Sync()
}
