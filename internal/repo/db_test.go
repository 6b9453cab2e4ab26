package repo

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "reviews.db"))
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestOpenDatabase_SQLite(t *testing.T) {
	db, err := OpenDatabase(Options{URL: "sqlite://" + filepath.Join(t.TempDir(), "reviews.db"), MaxOpenConns: 3})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragma := func(name string) string {
		var v string
		require.NoError(t, db.Raw("PRAGMA "+name).Row().Scan(&v), name)
		return strings.ToLower(v)
	}
	assert.Equal(t, "wal", pragma("journal_mode"))
	assert.Equal(t, "1", pragma("foreign_keys"))
	assert.Equal(t, "5000", pragma("busy_timeout"))
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
	assert.False(t, IsPostgres(db))

	require.NoError(t, AutoMigrate(db))
	for _, model := range []any{
		&domain.Source{}, &domain.Competitor{}, &domain.Review{}, &domain.Topic{},
		&domain.ReviewTopic{}, &domain.Digest{}, &domain.Idempotency{},
	} {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestOpenDatabase_Tracing(t *testing.T) {
	db, err := OpenDatabase(Options{URL: filepath.Join(t.TempDir(), "traced.db"), Tracing: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}

func TestIsPostgresURL(t *testing.T) {
	for in, want := range map[string]bool{
		"postgres://u:p@h/db":  true,
		" POSTGRESQL://h/db":   true,
		"customer_voice.db":    false,
		"sqlite://data/app.db": false,
		"file:x?mode=memory":   false,
	} {
		assert.Equal(t, want, isPostgresURL(in), in)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	for msg, want := range map[string]bool{
		"UNIQUE constraint failed: competitors.name":                                 true,
		"constraint failed: UNIQUE constraint failed: sources.id (2067)":             true,
		"no such table: competitors":                                                 false,
		`ERROR: duplicate key value violates unique constraint "x" (SQLSTATE 23505)`: true,
	} {
		assert.Equal(t, want, IsUniqueViolation(errors.New(msg)), msg)
	}
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(ErrDuplicate))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
}

func TestZerologLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	sql := func() (string, int64) { return "SELECT * FROM reviews", 3 }
	l := NewZerologLogger(50 * time.Millisecond)

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, buf.String(), "misses and fast queries are not logged at warn")

	l.Trace(ctx, time.Now(), sql, errors.New("database is locked"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT * FROM reviews"`)

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "gorm slow query")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Empty(t, buf.String())
}
