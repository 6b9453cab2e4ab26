// Package digest assembles periodic snapshots of sentiment, topics, and
// competitor standing for a time window, and persists them as append-only
// Digest rows. The HTTP endpoint and the CLI share the same Assembler.
package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/insights"
	"github.com/tbourn/customer-voice-api/internal/repo"
)

// ErrInvalidTimeframe is returned when both bounds are given and start is not
// before end.
var ErrInvalidTimeframe = errors.New("timeframe_end must be after timeframe_start")

const (
	// DefaultWindow is used when start is omitted.
	DefaultWindow = 7 * 24 * time.Hour

	spotlightTopics = 3
	sampleQuotes    = 2
	quoteRunes      = 140
)

// Timeframe is an inclusive [Start, End] window in UTC.
type Timeframe struct {
	Start time.Time
	End   time.Time
}

// Request describes one digest run. Nil bounds take defaults.
type Request struct {
	Start              *time.Time
	End                *time.Time
	IncludeCompetitors bool
}

// KeyMetrics are the headline numbers of a digest.
type KeyMetrics struct {
	TotalReviews     int64   `json:"total_reviews"`
	AverageSentiment float64 `json:"average_sentiment"`
	PositiveRatio    float64 `json:"positive_ratio"`
	UniqueSources    int64   `json:"unique_sources"`
}

// Spotlight is one of the most discussed topics of the window.
type Spotlight struct {
	TopicLabel       string   `json:"topic_label"`
	ChangeVsPrevious float64  `json:"change_vs_previous"`
	SampleQuotes     []string `json:"sample_quotes"`
}

// CompetitorSummary is one competitor's standing against the own product.
type CompetitorSummary struct {
	CompetitorID   string  `json:"competitor_id"`
	Name           string  `json:"name"`
	SentimentDelta float64 `json:"sentiment_delta"`
	Highlight      string  `json:"highlight"`
}

// Payload is the digest document returned to callers. DigestID and
// GeneratedAt are only set once the digest was persisted.
type Payload struct {
	DigestID          string                    `json:"digest_id,omitempty"`
	GeneratedAt       *time.Time                `json:"generated_at,omitempty"`
	TimeframeStart    time.Time                 `json:"timeframe_start"`
	TimeframeEnd      time.Time                 `json:"timeframe_end"`
	Highlights        []string                  `json:"highlights"`
	KeyMetrics        KeyMetrics                `json:"key_metrics"`
	SentimentSnapshot insights.SentimentSummary `json:"sentiment_snapshot"`
	TopicSpotlight    []Spotlight               `json:"topic_spotlight"`
	CompetitorSummary []CompetitorSummary       `json:"competitor_summary"`
}

// Assembler builds digests. Now defaults to time.Now.
type Assembler struct {
	Engine *insights.Engine
	Now    func() time.Time
}

// NewAssembler returns an Assembler over engine using the wall clock.
func NewAssembler(engine *insights.Engine) *Assembler {
	return &Assembler{Engine: engine, Now: time.Now}
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

// Window resolves the digest bounds: end defaults to now, start to seven
// days before end. Only when both bounds are supplied must start be strictly
// before end.
func (a *Assembler) Window(start, end *time.Time) (Timeframe, error) {
	var tf Timeframe
	if end != nil {
		tf.End = end.UTC()
	} else {
		tf.End = a.now()
	}
	if start != nil {
		tf.Start = start.UTC()
	} else {
		tf.Start = tf.End.Add(-DefaultWindow)
	}
	if start != nil && end != nil && !tf.Start.Before(tf.End) {
		return Timeframe{}, ErrInvalidTimeframe
	}
	return tf, nil
}

// Assemble computes the digest for tf without persisting anything.
func (a *Assembler) Assemble(ctx context.Context, db *gorm.DB, tf Timeframe, includeCompetitors bool) (*Payload, error) {
	ctx, span := otel.Tracer("digest/Assembler").Start(ctx, "Assemble")
	defer span.End()

	own := repo.ReviewFilter{Start: &tf.Start, End: &tf.End, OwnOnly: true}

	snap, err := a.Engine.SentimentSummary(ctx, db, own)
	if err != nil {
		return nil, err
	}
	spot, err := a.spotlight(ctx, db, own)
	if err != nil {
		return nil, err
	}
	sources, err := a.Engine.DistinctSources(ctx, db, own)
	if err != nil {
		return nil, err
	}

	highlights := []string{
		fmt.Sprintf("Total reviews: %d across %d sources.", snap.ReviewCount, sources),
		fmt.Sprintf("Positive/Neutral/Negative split: %d/%d/%d.", snap.Positive, snap.Neutral, snap.Negative),
	}
	if len(spot) > 0 {
		highlights = append(highlights,
			fmt.Sprintf("Top topic: %s (%s trend).", spot[0].TopicLabel, formatFloat(spot[0].ChangeVsPrevious)))
	}

	metrics := KeyMetrics{
		TotalReviews:     snap.ReviewCount,
		AverageSentiment: snap.AverageScore,
		UniqueSources:    sources,
	}
	if snap.ReviewCount > 0 {
		metrics.PositiveRatio = round2(float64(snap.Positive) / float64(snap.ReviewCount))
	}

	comps := []CompetitorSummary{}
	if includeCompetitors {
		if comps, err = a.competitors(ctx, db, tf, snap.AverageScore); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int64("review_count", snap.ReviewCount),
		attribute.Int("competitors", len(comps)),
	)
	return &Payload{
		TimeframeStart:    tf.Start,
		TimeframeEnd:      tf.End,
		Highlights:        highlights,
		KeyMetrics:        metrics,
		SentimentSnapshot: snap,
		TopicSpotlight:    spot,
		CompetitorSummary: comps,
	}, nil
}

// Run resolves the window, assembles the digest, and stores it in one
// transaction. The returned payload carries the new digest id.
func (a *Assembler) Run(ctx context.Context, db *gorm.DB, req Request) (*Payload, error) {
	tf, err := a.Window(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	var out *Payload
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := a.Assemble(ctx, tx, tf, req.IncludeCompetitors)
		if err != nil {
			return err
		}
		row, err := toRow(p, a.now(), req.IncludeCompetitors)
		if err != nil {
			return err
		}
		if err := repo.CreateDigest(ctx, tx, row); err != nil {
			return err
		}
		p.DigestID = row.ID
		p.GeneratedAt = &row.GeneratedAt
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Assembler) spotlight(ctx context.Context, db *gorm.DB, own repo.ReviewFilter) ([]Spotlight, error) {
	dist, err := a.Engine.TopicDistribution(ctx, db, own)
	if err != nil {
		return nil, err
	}
	if len(dist) > spotlightTopics {
		dist = dist[:spotlightTopics]
	}
	out := make([]Spotlight, 0, len(dist))
	for _, t := range dist {
		bodies, err := repo.SampleBodies(ctx, db, own, t.TopicLabel, sampleQuotes)
		if err != nil {
			return nil, err
		}
		quotes := make([]string, 0, len(bodies))
		for _, b := range bodies {
			quotes = append(quotes, truncateRunes(b, quoteRunes))
		}
		// Prior-window comparison is not computed yet; always 0.0.
		out = append(out, Spotlight{TopicLabel: t.TopicLabel, ChangeVsPrevious: 0, SampleQuotes: quotes})
	}
	return out, nil
}

func (a *Assembler) competitors(ctx context.Context, db *gorm.DB, tf Timeframe, baseline float64) ([]CompetitorSummary, error) {
	all, err := repo.ListAllCompetitors(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]CompetitorSummary, 0, len(all))
	for _, c := range all {
		s, err := a.Engine.SentimentSummary(ctx, db, repo.ReviewFilter{Start: &tf.Start, End: &tf.End, CompetitorID: c.ID})
		if err != nil {
			return nil, err
		}
		highlight := "No new reviews in this window."
		if s.ReviewCount > 0 {
			highlight = fmt.Sprintf("%d reviews, average %s", s.ReviewCount, formatFloat(s.AverageScore))
		}
		out = append(out, CompetitorSummary{
			CompetitorID:   c.ID,
			Name:           c.Name,
			SentimentDelta: round2(s.AverageScore - baseline),
			Highlight:      highlight,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentimentDelta > out[j].SentimentDelta })
	return out, nil
}

func toRow(p *Payload, now time.Time, includeCompetitors bool) (*domain.Digest, error) {
	summary, err := json.Marshal(map[string]any{"highlights": p.Highlights, "key_metrics": p.KeyMetrics})
	if err != nil {
		return nil, err
	}
	sentiment, err := json.Marshal(p.SentimentSnapshot)
	if err != nil {
		return nil, err
	}
	topics, err := json.Marshal(map[string]any{"topic_spotlight": p.TopicSpotlight})
	if err != nil {
		return nil, err
	}
	row := &domain.Digest{
		ID:                uuid.NewString(),
		TimeframeStart:    p.TimeframeStart,
		TimeframeEnd:      p.TimeframeEnd,
		GeneratedAt:       now,
		Summary:           datatypes.JSON(summary),
		SentimentSnapshot: datatypes.JSON(sentiment),
		TopicsSnapshot:    datatypes.JSON(topics),
	}
	if includeCompetitors {
		comp, err := json.Marshal(map[string]any{"items": p.CompetitorSummary})
		if err != nil {
			return nil, err
		}
		row.CompetitorSnapshot = datatypes.JSON(comp)
	}
	return row, nil
}

// FromRow rebuilds a payload from a persisted digest.
func FromRow(d *domain.Digest) (*Payload, error) {
	p := &Payload{
		DigestID:          d.ID,
		GeneratedAt:       &d.GeneratedAt,
		TimeframeStart:    d.TimeframeStart.UTC(),
		TimeframeEnd:      d.TimeframeEnd.UTC(),
		Highlights:        []string{},
		TopicSpotlight:    []Spotlight{},
		CompetitorSummary: []CompetitorSummary{},
	}
	var summary struct {
		Highlights []string   `json:"highlights"`
		KeyMetrics KeyMetrics `json:"key_metrics"`
	}
	if err := json.Unmarshal(d.Summary, &summary); err != nil {
		return nil, fmt.Errorf("digest %s summary: %w", d.ID, err)
	}
	if summary.Highlights != nil {
		p.Highlights = summary.Highlights
	}
	p.KeyMetrics = summary.KeyMetrics
	if err := json.Unmarshal(d.SentimentSnapshot, &p.SentimentSnapshot); err != nil {
		return nil, fmt.Errorf("digest %s sentiment: %w", d.ID, err)
	}
	var topics struct {
		TopicSpotlight []Spotlight `json:"topic_spotlight"`
	}
	if err := json.Unmarshal(d.TopicsSnapshot, &topics); err != nil {
		return nil, fmt.Errorf("digest %s topics: %w", d.ID, err)
	}
	if topics.TopicSpotlight != nil {
		p.TopicSpotlight = topics.TopicSpotlight
	}
	if len(d.CompetitorSnapshot) > 0 && string(d.CompetitorSnapshot) != "null" {
		var comp struct {
			Items []CompetitorSummary `json:"items"`
		}
		if err := json.Unmarshal(d.CompetitorSnapshot, &comp); err != nil {
			return nil, fmt.Errorf("digest %s competitors: %w", d.ID, err)
		}
		if comp.Items != nil {
			p.CompetitorSummary = comp.Items
		}
	}
	return p, nil
}

// formatFloat prints v the short way but always with a decimal point
// ("0.0", "0.45", "-1.0").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
