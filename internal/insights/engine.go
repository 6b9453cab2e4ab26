// Package insights computes read-only aggregates over the review store:
// sentiment summaries and daily trends, topic distributions, per-source
// breakdowns, and topic-share comparisons between the operator's product
// and a competitor.
//
// Every method takes the *gorm.DB to read from and a repo.ReviewFilter.
// Queries are composed with squirrel and executed through GORM's Raw, so
// the same builder serves SQLite and PostgreSQL. An empty result set yields
// zero counts, 0.0 averages, and empty (non-nil) slices, never an error.
package insights

import (
	"context"
	"math"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/repo"
)

// SentimentSummary is the label histogram and mean score of a cohort.
// Positive+Neutral+Negative always equals ReviewCount.
type SentimentSummary struct {
	Positive     int64   `json:"positive"`
	Neutral      int64   `json:"neutral"`
	Negative     int64   `json:"negative"`
	AverageScore float64 `json:"average_score"`
	ReviewCount  int64   `json:"review_count"`
}

// TrendPoint is one UTC calendar day of the sentiment trend.
type TrendPoint struct {
	Date         string  `json:"date"`
	Positive     int64   `json:"positive"`
	Neutral      int64   `json:"neutral"`
	Negative     int64   `json:"negative"`
	AverageScore float64 `json:"average_score"`
}

// TopicStat is one row of the topic distribution.
type TopicStat struct {
	TopicLabel        string  `json:"topic_label"`
	ReviewCount       int64   `json:"review_count"`
	AverageConfidence float64 `json:"average_confidence"`
}

// SourceStat is one row of the source breakdown.
type SourceStat struct {
	SourceID              string  `json:"source_id"`
	SourceName            string  `json:"source_name"`
	ReviewCount           int64   `json:"review_count"`
	AverageSentimentScore float64 `json:"average_sentiment_score"`
}

// TopicComparison contrasts how often a topic appears in two cohorts.
type TopicComparison struct {
	TopicLabel      string  `json:"topic_label"`
	SelfShare       float64 `json:"self_share"`
	CompetitorShare float64 `json:"competitor_share"`
	Delta           float64 `json:"delta"`
}

// Engine is stateless; the zero value is ready to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine { return &Engine{} }

const tracerName = "insights/Engine"

type labelRow struct {
	Label    string
	N        int64
	AvgScore float64
}

// SentimentSummary groups the filtered reviews by label.
func (e *Engine) SentimentSummary(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) (SentimentSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SentimentSummary")
	defer span.End()

	sql, args, err := sq.
		Select("r.sentiment_label AS label", "COUNT(*) AS n", "AVG(r.sentiment_score) AS avg_score").
		From("reviews r").
		Where(f.Where("r")).
		GroupBy("r.sentiment_label").
		ToSql()
	if err != nil {
		return SentimentSummary{}, err
	}
	var rows []labelRow
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return SentimentSummary{}, err
	}

	var out SentimentSummary
	var total float64
	for _, r := range rows {
		addLabel(&out.Positive, &out.Neutral, &out.Negative, r.Label, r.N)
		out.ReviewCount += r.N
		total += r.AvgScore * float64(r.N)
	}
	if out.ReviewCount > 0 {
		out.AverageScore = round(total/float64(out.ReviewCount), 2)
	}
	span.SetAttributes(attribute.Int64("review_count", out.ReviewCount))
	return out, nil
}

type trendRow struct {
	Day      string
	Label    string
	N        int64
	AvgScore float64
}

// SentimentTrend buckets the filtered reviews by UTC day of published_at.
// Days without reviews are absent; points are in ascending date order.
func (e *Engine) SentimentTrend(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) ([]TrendPoint, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SentimentTrend")
	defer span.End()

	day := dayExpr(db, "r.published_at")
	sql, args, err := sq.
		Select(day+" AS day", "r.sentiment_label AS label", "COUNT(*) AS n", "AVG(r.sentiment_score) AS avg_score").
		From("reviews r").
		Where(f.Where("r")).
		GroupBy(day, "r.sentiment_label").
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []trendRow
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]TrendPoint, 0, len(rows))
	totals := make([]float64, 0, len(rows))
	counts := make([]int64, 0, len(rows))
	idx := map[string]int{}
	for _, r := range rows {
		i, ok := idx[r.Day]
		if !ok {
			i = len(out)
			idx[r.Day] = i
			out = append(out, TrendPoint{Date: r.Day})
			totals = append(totals, 0)
			counts = append(counts, 0)
		}
		p := &out[i]
		addLabel(&p.Positive, &p.Neutral, &p.Negative, r.Label, r.N)
		totals[i] += r.AvgScore * float64(r.N)
		counts[i] += r.N
	}
	for i := range out {
		if counts[i] > 0 {
			out[i].AverageScore = round(totals[i]/float64(counts[i]), 2)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out, nil
}

// TopicDistribution counts reviews per topic label, most frequent first.
func (e *Engine) TopicDistribution(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) ([]TopicStat, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "TopicDistribution")
	defer span.End()

	sql, args, err := sq.
		Select("rt.topic_label AS topic_label", "COUNT(rt.review_id) AS review_count", "AVG(rt.topic_confidence) AS average_confidence").
		From("review_topics rt").
		Join("reviews r ON r.id = rt.review_id").
		Where(f.Where("r")).
		GroupBy("rt.topic_label").
		OrderBy("review_count DESC", "topic_label ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []TopicStat{}
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	for i := range out {
		out[i].AverageConfidence = round(out[i].AverageConfidence, 2)
	}
	return out, nil
}

// SourceBreakdown counts reviews per source, most frequent first.
func (e *Engine) SourceBreakdown(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) ([]SourceStat, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SourceBreakdown")
	defer span.End()

	sql, args, err := sq.
		Select("s.id AS source_id", "s.name AS source_name", "COUNT(r.id) AS review_count", "AVG(r.sentiment_score) AS average_sentiment_score").
		From("sources s").
		Join("reviews r ON r.source_id = s.id").
		Where(f.Where("r")).
		GroupBy("s.id", "s.name").
		OrderBy("review_count DESC", "source_name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []SourceStat{}
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	for i := range out {
		out[i].AverageSentimentScore = round(out[i].AverageSentimentScore, 2)
	}
	return out, nil
}

// DistinctSources returns how many sources contributed to the filtered set.
func (e *Engine) DistinctSources(ctx context.Context, db *gorm.DB, f repo.ReviewFilter) (int64, error) {
	sql, args, err := sq.
		Select("COUNT(DISTINCT r.source_id)").
		From("reviews r").
		Where(f.Where("r")).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.WithContext(ctx).Raw(sql, args...).Scan(&n).Error
	return n, err
}

func addLabel(pos, neu, neg *int64, label string, n int64) {
	switch domain.SentimentLabel(label) {
	case domain.SentimentPositive:
		*pos += n
	case domain.SentimentNegative:
		*neg += n
	default:
		*neu += n
	}
}

// dayExpr renders the UTC calendar day of col as YYYY-MM-DD text.
func dayExpr(db *gorm.DB, col string) string {
	if repo.IsPostgres(db) {
		return "to_char(" + col + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	return "date(" + col + ")"
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
