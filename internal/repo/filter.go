package repo

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// ReviewFilter narrows the review set. Zero fields are ignored. Start and
// End are inclusive bounds on published_at.
type ReviewFilter struct {
	Start        *time.Time
	End          *time.Time
	SourceID     string
	CompetitorID string
	OwnOnly      bool // competitor_id IS NULL; wins over CompetitorID
	Sentiment    domain.SentimentLabel
}

// Where renders the filter as a squirrel condition on the reviews table
// referenced by alias (e.g. "r"). An empty filter renders as (1=1).
func (f ReviewFilter) Where(alias string) sq.Sqlizer {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	conds := sq.And{}
	if f.Start != nil {
		conds = append(conds, sq.GtOrEq{col("published_at"): f.Start.UTC()})
	}
	if f.End != nil {
		conds = append(conds, sq.LtOrEq{col("published_at"): f.End.UTC()})
	}
	if f.SourceID != "" {
		conds = append(conds, sq.Eq{col("source_id"): f.SourceID})
	}
	switch {
	case f.OwnOnly:
		conds = append(conds, sq.Eq{col("competitor_id"): nil})
	case f.CompetitorID != "":
		conds = append(conds, sq.Eq{col("competitor_id"): f.CompetitorID})
	}
	if f.Sentiment != "" {
		conds = append(conds, sq.Eq{col("sentiment_label"): string(f.Sentiment)})
	}
	return conds
}

// Scope applies the filter to a GORM query over the reviews table.
func (f ReviewFilter) Scope(db *gorm.DB) *gorm.DB {
	sql, args, err := f.Where("reviews").ToSql()
	if err != nil {
		_ = db.AddError(err)
		return db
	}
	return db.Where(sql, args...)
}
