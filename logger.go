package lshgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with lshgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogBuild logs an index construction.
func (l *Logger) LogBuild(ctx context.Context, ps ParameterSet, points int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"points", points,
			"dimension", ps.Dimension(),
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index built",
		"points", points,
		"dimension", ps.Dimension(),
		"family", ps.Family(),
		"storage", ps.Storage(),
		"hash_functions", ps.NumHashFunctions(),
		"hash_tables", ps.NumHashTables(),
		"duration", duration,
	)
}

// LogQuery logs a query against the index.
func (l *Logger) LogQuery(ctx context.Context, op QueryOp, results int, err error) {
	if err != nil {
		l.DebugContext(ctx, "query rejected",
			"op", op,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"op", op,
		"results", results,
	)
}

// LogTuneStep logs one probe precision measurement.
func (l *Logger) LogTuneStep(ctx context.Context, phase string, probes int, precision float64) {
	l.DebugContext(ctx, "probe precision measured",
		"phase", phase,
		"probes", probes,
		"precision", precision,
	)
}

// LogTune logs the outcome of a probe tuning run.
func (l *Logger) LogTune(ctx context.Context, probes, evaluations int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "probe tuning failed",
			"evaluations", evaluations,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "probe tuning completed",
		"probes", probes,
		"evaluations", evaluations,
		"duration", duration,
	)
}
