package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter routes GORM's logging through a module Logger.
// Statements go out at trace level; slow statements and failures at warn.
type GormAdapter struct {
	log           Logger
	slowThreshold time.Duration
}

// NewGormAdapter creates a GORM logger. A zero slowThreshold disables slow statement warnings.
func NewGormAdapter(log Logger, slowThreshold time.Duration) *GormAdapter {
	if log == nil {
		log = Global().Module("db")
	}
	return &GormAdapter{log: log, slowThreshold: slowThreshold}
}

// LogMode is a no-op; levels come from the logging configuration.
func (a *GormAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *GormAdapter) Info(_ context.Context, msg string, data ...any) {
	a.log.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.log.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Error(_ context.Context, msg string, data ...any) {
	a.log.Error(fmt.Sprintf(msg, data...))
}

// Trace is called by GORM after every statement.
func (a *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	stmt, rows := fc()
	log := a.log.WithContext(ctx)

	fields := []Field{
		String("sql", stmt),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("statement failed", append(fields, Error(err))...)
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow statement", fields...)
	default:
		log.Trace("statement", fields...)
	}
}
