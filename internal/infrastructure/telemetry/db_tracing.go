package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool          // include bound variables in spans; never enable with real data
	SlowQueryThreshold time.Duration // default 200ms
	DBSystem           string        // "postgresql" or "sqlite"
	// TracerProvider overrides the global provider; tests use it.
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns the secure defaults.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
		DBSystem:           "postgresql",
	}
}

// RegisterDBTracing installs otelgorm on db plus callbacks that tag each
// statement span with its table, row count, errors and slowness.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = DefaultDBTracingConfig().SlowQueryThreshold
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	sq := slowQuery{threshold: cfg.SlowQueryThreshold}
	if err := sq.register(db); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.String("db_system", cfg.DBSystem),
	)
	return nil
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

type slowQuery struct {
	threshold time.Duration
}

func (s slowQuery) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (s slowQuery) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > s.threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

func (s slowQuery) register(db *gorm.DB) error {
	cb := db.Callback()
	steps := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("otel_timing:before_create", s.before) },
		func() error { return cb.Query().Before("gorm:query").Register("otel_timing:before_query", s.before) },
		func() error { return cb.Update().Before("gorm:update").Register("otel_timing:before_update", s.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("otel_timing:before_delete", s.before) },
		func() error { return cb.Row().Before("gorm:row").Register("otel_timing:before_row", s.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("otel_timing:before_raw", s.before) },
		func() error { return cb.Create().After("gorm:create").Register("otel_slow_query:create", s.after) },
		func() error { return cb.Query().After("gorm:query").Register("otel_slow_query:query", s.after) },
		func() error { return cb.Update().After("gorm:update").Register("otel_slow_query:update", s.after) },
		func() error { return cb.Delete().After("gorm:delete").Register("otel_slow_query:delete", s.after) },
		func() error { return cb.Row().After("gorm:row").Register("otel_slow_query:row", s.after) },
		func() error { return cb.Raw().After("gorm:raw").Register("otel_slow_query:raw", s.after) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
