package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// SourceMetadata carries optional descriptive fields for a source. Nil
// pointers mean "not supplied".
type SourceMetadata struct {
	Name       *string
	Platform   *string
	ExternalID *string
	URL        *string
}

// GetSource fetches a source by id or returns ErrNotFound.
func GetSource(ctx context.Context, db *gorm.DB, id string) (*domain.Source, error) {
	var s domain.Source
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSource inserts a source with the given id. A missing or blank name
// becomes domain.DefaultSourceName. An id that already exists yields
// ErrDuplicate without failing the surrounding transaction; other unique
// collisions, such as (platform, external_id), surface as driver errors.
func CreateSource(ctx context.Context, db *gorm.DB, id string, meta SourceMetadata) (*domain.Source, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	s := &domain.Source{
		ID:         id,
		Name:       domain.DefaultSourceName,
		Platform:   nonEmpty(meta.Platform),
		ExternalID: nonEmpty(meta.ExternalID),
		URL:        nonEmpty(meta.URL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if n := nonEmpty(meta.Name); n != nil {
		s.Name = *n
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(s)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return s, nil
}

// UpdateSourceMetadata overwrites each supplied non-empty field of the
// source. It is a no-op when nothing was supplied.
func UpdateSourceMetadata(ctx context.Context, db *gorm.DB, id string, meta SourceMetadata) error {
	updates := map[string]any{}
	if v := nonEmpty(meta.Name); v != nil {
		updates["name"] = *v
	}
	if v := nonEmpty(meta.Platform); v != nil {
		updates["platform"] = *v
	}
	if v := nonEmpty(meta.ExternalID); v != nil {
		updates["external_id"] = *v
	}
	if v := nonEmpty(meta.URL); v != nil {
		updates["url"] = *v
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Source{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSources returns the number of sources.
func CountSources(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Source{}).Count(&total).Error
	return total, err
}

// ListSourcesPage returns sources ordered by name then id.
func ListSourcesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Source, error) {
	out := []domain.Source{}
	err := db.WithContext(ctx).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
