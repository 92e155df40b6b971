package telemetry

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Bridge tees log into the OTLP log pipeline for entries at minLevel and
// above. Without log export log is returned unchanged.
func (p *Providers) Bridge(log *zap.Logger, minLevel zapcore.Level) *zap.Logger {
	if p.logs == nil {
		return log
	}
	exported := &minLevelCore{
		Core: otelzap.NewCore(p.settings.ServiceName, otelzap.WithLoggerProvider(p.logs)),
		min:  minLevel,
	}
	return log.WithOptions(zap.WrapCore(func(local zapcore.Core) zapcore.Core {
		return zapcore.NewTee(local, exported)
	}))
}

// minLevelCore puts a floor under the otelzap core, which accepts every level
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if entry.Level < c.min {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), min: c.min}
}
