package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// CompetitorPatch lists the columns an update may touch. Nil fields are
// left as they are; Tags replaces the whole list when non-nil.
type CompetitorPatch struct {
	Name        *string
	URL         *string
	Description *string
	Tags        datatypes.JSON
}

// CreateCompetitor inserts a competitor. Unique violations on name are
// returned raw; see IsUniqueViolation.
func CreateCompetitor(ctx context.Context, db *gorm.DB, name string, url, description *string, tags datatypes.JSON) (*domain.Competitor, error) {
	now := time.Now().UTC()
	if tags == nil {
		tags = datatypes.JSON("[]")
	}
	c := &domain.Competitor{
		ID:          uuid.NewString(),
		Name:        name,
		URL:         url,
		Description: description,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCompetitor fetches a competitor by id or returns ErrNotFound.
func GetCompetitor(ctx context.Context, db *gorm.DB, id string) (*domain.Competitor, error) {
	var c domain.Competitor
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountCompetitors returns the number of tracked competitors.
func CountCompetitors(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Competitor{}).Count(&total).Error
	return total, err
}

// ListCompetitorsPage returns competitors, most recently created first.
func ListCompetitorsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Competitor, error) {
	out := []domain.Competitor{}
	err := db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAllCompetitors returns every competitor ordered by name.
func ListAllCompetitors(ctx context.Context, db *gorm.DB) ([]domain.Competitor, error) {
	out := []domain.Competitor{}
	err := db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

// UpdateCompetitor applies p and returns the updated row, or ErrNotFound.
func UpdateCompetitor(ctx context.Context, db *gorm.DB, id string, p CompetitorPatch) (*domain.Competitor, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.URL != nil {
		updates["url"] = *p.URL
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Tags != nil {
		updates["tags"] = p.Tags
	}
	res := db.WithContext(ctx).Model(&domain.Competitor{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetCompetitor(ctx, db, id)
}

// DeleteCompetitor removes a competitor. Its reviews keep existing with
// competitor_id set to NULL by the foreign key.
func DeleteCompetitor(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Competitor{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
