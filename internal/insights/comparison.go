package insights

import (
	"context"
	"math"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/repo"
)

// DefaultComparisonLimit is the number of topics reported by a comparison.
const DefaultComparisonLimit = 5

// Comparison is the side-by-side view of the operator's product and one
// competitor over the same window.
type Comparison struct {
	SelfSentiment       SentimentSummary  `json:"self_sentiment"`
	CompetitorSentiment SentimentSummary  `json:"competitor_sentiment"`
	TopTopics           []TopicComparison `json:"top_topics"`
}

// TopicCounts returns, per topic label, how many reviews of the cohort
// carry it.
func (e *Engine) TopicCounts(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) (map[string]int64, error) {
	sql, args, err := sq.
		Select("rt.topic_label AS label", "COUNT(DISTINCT rt.review_id) AS n").
		From("review_topics rt").
		Join("reviews r ON r.id = rt.review_id").
		Where(f.Where("r")).
		GroupBy("rt.topic_label").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Label string
		N     int64
	}
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Label] = r.N
	}
	return out, nil
}

// TopicShares divides each topic count by the number of reviews in the
// cohort. An empty cohort yields an empty map.
func (e *Engine) TopicShares(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) (map[string]float64, error) {
	counts, err := e.TopicCounts(ctx, db, f)
	if err != nil {
		return nil, err
	}
	total, err := repo.CountReviews(ctx, db, f)
	if err != nil {
		return nil, err
	}
	return Shares(counts, total), nil
}

// Shares converts counts into fractions of total.
func Shares(counts map[string]int64, total int64) map[string]float64 {
	out := make(map[string]float64, len(counts))
	if total <= 0 {
		return out
	}
	for label, n := range counts {
		out[label] = float64(n) / float64(total)
	}
	return out
}

// CompareTopics reports, for every label present in either cohort, the
// share in each and delta = other - self. Values are rounded to 4 places.
// Rows are ordered by |delta| descending, then label, and cut to limit
// (limit <= 0 keeps all). Swapping the arguments negates every delta.
func CompareTopics(self, other map[string]float64, limit int) []TopicComparison {
	labels := make(map[string]struct{}, len(self)+len(other))
	for l := range self {
		labels[l] = struct{}{}
	}
	for l := range other {
		labels[l] = struct{}{}
	}
	out := make([]TopicComparison, 0, len(labels))
	for l := range labels {
		s, o := self[l], other[l]
		out = append(out, TopicComparison{
			TopicLabel:      l,
			SelfShare:       round(s, 4),
			CompetitorShare: round(o, 4),
			Delta:           round(o-s, 4),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := math.Abs(out[i].Delta), math.Abs(out[j].Delta)
		if di != dj {
			return di > dj
		}
		return out[i].TopicLabel < out[j].TopicLabel
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CompareCompetitor contrasts own reviews (no competitor) with the reviews
// of competitorID inside window. Only the window's Start/End are used.
func (e *Engine) CompareCompetitor(ctx context.Context, db *gorm.DB, competitorID string, window repo.ReviewFilter) (*Comparison, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CompareCompetitor")
	defer span.End()

	self := repo.ReviewFilter{Start: window.Start, End: window.End, OwnOnly: true}
	rival := repo.ReviewFilter{Start: window.Start, End: window.End, CompetitorID: competitorID}

	selfSent, err := e.SentimentSummary(ctx, db, self)
	if err != nil {
		return nil, err
	}
	rivalSent, err := e.SentimentSummary(ctx, db, rival)
	if err != nil {
		return nil, err
	}
	selfCounts, err := e.TopicCounts(ctx, db, self)
	if err != nil {
		return nil, err
	}
	rivalCounts, err := e.TopicCounts(ctx, db, rival)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		SelfSentiment:       selfSent,
		CompetitorSentiment: rivalSent,
		TopTopics: CompareTopics(
			Shares(selfCounts, selfSent.ReviewCount),
			Shares(rivalCounts, rivalSent.ReviewCount),
			DefaultComparisonLimit,
		),
	}, nil
}
