// Package repo implements the review store: thin, context-aware persistence
// functions over GORM. Every function receives the *gorm.DB handle it should
// use so callers can pass a transaction. No business rules live here.
//
// Two backends are supported: SQLite through the pure-Go glebarez driver
// (default, file path DSN) and PostgreSQL through gorm.io/driver/postgres
// (postgres:// or postgresql:// URL).
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// Options configures OpenDatabase.
type Options struct {
	URL          string // postgres URL or SQLite path
	MaxOpenConns int    // pool size, defaults to 10
	Tracing      bool   // register the OpenTelemetry GORM plugin
	SlowQuery    time.Duration
}

// OpenDatabase opens the configured backend, tunes the pool, bridges GORM
// logs into zerolog, and optionally installs SQL tracing.
func OpenDatabase(opts Options) (*gorm.DB, error) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.SlowQuery <= 0 {
		opts.SlowQuery = 200 * time.Millisecond
	}
	gcfg := &gorm.Config{
		Logger: NewZerologLogger(opts.SlowQuery),
		// Stored timestamps are compared as text on SQLite, so keep them all UTC.
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgresURL(opts.URL) {
		db, err = gorm.Open(postgres.Open(opts.URL), gcfg)
	} else {
		db, err = openSQLite(opts.URL, gcfg)
	}
	if err != nil {
		return nil, err
	}

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("gorm tracing plugin: %w", err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database file with the default
// pool and logger settings.
func OpenSQLite(path string) (*gorm.DB, error) {
	return OpenDatabase(Options{URL: path})
}

func openSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	// PRAGMAs go in the DSN so every pooled connection gets them.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	return gorm.Open(sqlite.Open(dsn), gcfg)
}

func isPostgresURL(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// IsPostgres reports whether db talks to PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Source{},
		&domain.Competitor{},
		&domain.Review{},
		&domain.Topic{},
		&domain.ReviewTopic{},
		&domain.Digest{},
		&domain.Idempotency{},
	)
}

// zerologLogger routes GORM's log output through the global zerolog logger
// so SQL diagnostics share the service's JSON log stream.
type zerologLogger struct {
	level     logger.LogLevel
	slowQuery time.Duration
}

// NewZerologLogger returns a GORM logger at Warn level that reports errors
// (except record-not-found) and queries slower than slow.
func NewZerologLogger(slow time.Duration) logger.Interface {
	return &zerologLogger{level: logger.Warn, slowQuery: slow}
}

func (l *zerologLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zerologLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		ctxLogger(ctx).Info().Msgf(msg, args...)
	}
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		ctxLogger(ctx).Warn().Msgf(msg, args...)
	}
}

func (l *zerologLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		ctxLogger(ctx).Error().Msgf(msg, args...)
	}
}

func (l *zerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	lg := ctxLogger(ctx)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		lg.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query failed")
	case l.slowQuery > 0 && elapsed > l.slowQuery && l.level >= logger.Warn:
		sql, rows := fc()
		lg.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm slow query")
	case l.level >= logger.Info:
		sql, rows := fc()
		lg.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query")
	}
}

// ctxLogger prefers a request-scoped logger and falls back to the global one.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
