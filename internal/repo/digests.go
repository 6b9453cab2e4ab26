package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// CreateDigest appends d. Digests are never updated.
func CreateDigest(ctx context.Context, db *gorm.DB, d *domain.Digest) error {
	return db.WithContext(ctx).Create(d).Error
}

// GetDigest returns the digest with id, or ErrNotFound.
func GetDigest(ctx context.Context, db *gorm.DB, id string) (*domain.Digest, error) {
	d := new(domain.Digest)
	if err := db.WithContext(ctx).Take(d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func CountDigests(ctx context.Context, db *gorm.DB) (n int64, err error) {
	err = db.WithContext(ctx).Model(&domain.Digest{}).Count(&n).Error
	return n, err
}

// ListDigestsPage returns one page of digests, newest generated_at first.
func ListDigestsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Digest, error) {
	page := make([]domain.Digest, 0, limit)
	err := db.WithContext(ctx).
		Order("generated_at DESC").Order("id").
		Offset(offset).Limit(limit).
		Find(&page).Error
	return page, err
}
