package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

func idempotencyPair(scope, key string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("scope = ? AND key = ?", scope, key)
	}
}

// GetIdempotency returns the stored result for (scope, key) while it is
// still live at now. Blank keys, unknown pairs and expired rows all yield
// ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	rec := new(domain.Idempotency)
	err := db.WithContext(ctx).
		Scopes(idempotencyPair(scope, key)).
		Where("expires_at > ?", now.UTC()).
		Take(rec).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateIdempotency records the response for (scope, key), valid for ttl.
// A stale row for the pair is replaced; a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key string, status int, response []byte, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Scope:     scope,
		Key:       key,
		Status:    status,
		Response:  datatypes.JSON(response),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Scopes(idempotencyPair(scope, key)).Where("expires_at <= ?", now)
		if err := stale.Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	switch {
	case IsUniqueViolation(err):
		return nil, ErrDuplicate
	case err != nil:
		return nil, err
	}
	return rec, nil
}
