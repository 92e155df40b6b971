package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends GORM output to zap. Every line carries the request,
// listing, platform and trace ids found in the statement's context, so a
// failed CAS update can be traced back to the sale that issued it.
type GormLogger struct {
	logger                    *zap.Logger
	logLevel                  gormlogger.LogLevel
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold; zero disables it
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithIgnoreRecordNotFoundError controls whether lookups that miss are logged
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.ignoreRecordNotFoundError = ignore }
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:                    zapLogger.Named("gorm"),
		logLevel:                  level,
		slowThreshold:             200 * time.Millisecond,
		ignoreRecordNotFoundError: true,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.logLevel < min {
		return
	}
	l.at(ctx).Log(lvl, fmt.Sprintf(msg, data...))
}

// at decorates the gorm logger with the ids carried by ctx
func (l *GormLogger) at(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	for _, key := range []contextKey{requestIDKey, listingIDKey, platformKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return WithTraceContext(ctx, l.logger.With(fields...))
}

// Trace implements gormlogger.Interface. Failed statements log at error,
// slow ones at warn and the rest at debug.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}
	if err != nil && l.ignoreRecordNotFoundError && errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold != 0 && elapsed > l.slowThreshold

	var (
		lvl   zapcore.Level
		msg   string
		extra zap.Field
	)
	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		lvl, msg, extra = zapcore.ErrorLevel, "SQL error", zap.Error(err)
	case slow && l.logLevel >= gormlogger.Warn:
		lvl, msg, extra = zapcore.WarnLevel, "Slow SQL", zap.Duration("threshold", l.slowThreshold)
	case l.logLevel >= gormlogger.Info:
		lvl, msg, extra = zapcore.DebugLevel, "SQL", zap.Skip()
	default:
		return
	}

	sql, rows := fc()
	l.at(ctx).Log(lvl, msg,
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
		extra,
	)
}

// ParseGormLevel maps an application log level onto GORM's levels. SQL
// statements are only logged at debug.
func ParseGormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
