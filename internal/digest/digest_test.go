package digest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/insights"
	"github.com/tbourn/customer-voice-api/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "digest.db"))
	require.NoError(t, err)
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newAssembler() *Assembler {
	a := NewAssembler(insights.New())
	a.Now = func() time.Time { return fixedNow }
	return a
}

func addReview(t *testing.T, db *gorm.DB, sourceID string, competitorID *string, label domain.SentimentLabel, score float64, at time.Time, body string, topics ...string) {
	t.Helper()
	ctx := context.Background()
	r := &domain.Review{
		ID:             uuid.NewString(),
		SourceID:       sourceID,
		CompetitorID:   competitorID,
		SourceReviewID: uuid.NewString(),
		Body:           body,
		SentimentLabel: label,
		SentimentScore: score,
		PublishedAt:    at,
	}
	ok, err := repo.InsertReview(ctx, db, r)
	require.NoError(t, err)
	require.True(t, ok)
	for _, l := range topics {
		topic, err := repo.UpsertTopic(ctx, db, l)
		require.NoError(t, err)
		require.NoError(t, repo.InsertReviewTopic(ctx, db, r.ID, topic, 0.5))
	}
}

func TestWindow_Defaults(t *testing.T) {
	a := newAssembler()

	tf, err := a.Window(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, tf.End)
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour), tf.Start)

	end := time.Date(2024, 1, 8, 0, 0, 0, 0, time.FixedZone("X", 2*3600))
	tf, err = a.Window(nil, &end)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tf.End.Location())
	assert.True(t, tf.End.Equal(end))
	assert.True(t, tf.Start.Equal(end.Add(-DefaultWindow)))
}

func TestWindow_RejectsInverted(t *testing.T) {
	a := newAssembler()
	start := fixedNow
	end := fixedNow

	_, err := a.Window(&start, &end)
	assert.ErrorIs(t, err, ErrInvalidTimeframe)

	before := fixedNow.Add(-time.Hour)
	_, err = a.Window(&start, &before)
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestWindow_StartOnlyIsNotValidated(t *testing.T) {
	a := newAssembler()

	// A start past the default end is accepted as long as end was not given.
	start := fixedNow.Add(time.Hour)
	tf, err := a.Window(&start, nil)
	require.NoError(t, err)
	assert.Equal(t, start, tf.Start)
	assert.Equal(t, fixedNow, tf.End)

	// Likewise an end before the default start.
	end := fixedNow.Add(-30 * 24 * time.Hour)
	tf, err = a.Window(nil, &end)
	require.NoError(t, err)
	assert.True(t, tf.Start.Before(tf.End))
}

func TestAssemble_EmptyStore(t *testing.T) {
	db := newTestDB(t)
	a := newAssembler()
	tf, err := a.Window(nil, nil)
	require.NoError(t, err)

	p, err := a.Assemble(context.Background(), db, tf, true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Total reviews: 0 across 0 sources.",
		"Positive/Neutral/Negative split: 0/0/0.",
	}, p.Highlights)
	assert.Equal(t, int64(0), p.SentimentSnapshot.ReviewCount)
	assert.Equal(t, 0.0, p.SentimentSnapshot.AverageScore)
	assert.NotNil(t, p.TopicSpotlight)
	assert.Empty(t, p.TopicSpotlight)
	assert.NotNil(t, p.CompetitorSummary)
	assert.Empty(t, p.CompetitorSummary)
	assert.Equal(t, KeyMetrics{}, p.KeyMetrics)
}

func TestAssemble_HighlightsSpotlightAndCompetitors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	name := "Store"
	src, err := repo.CreateSource(ctx, db, uuid.NewString(), repo.SourceMetadata{Name: &name})
	require.NoError(t, err)
	rival, err := repo.CreateCompetitor(ctx, db, "Rival", nil, nil, nil)
	require.NoError(t, err)
	quiet, err := repo.CreateCompetitor(ctx, db, "Quiet", nil, nil, nil)
	require.NoError(t, err)

	in := fixedNow.Add(-24 * time.Hour)
	long := strings.Repeat("é", 200)
	addReview(t, db, src.ID, nil, domain.SentimentPositive, 0.6, in, long, "Pricing", "Support")
	addReview(t, db, src.ID, nil, domain.SentimentNegative, -0.4, in.Add(time.Hour), "too pricey", "Pricing")
	addReview(t, db, src.ID, nil, domain.SentimentNeutral, 0.1, in.Add(2*time.Hour), "fine", "Pricing", "Onboarding", "Speed")
	// Outside the window.
	addReview(t, db, src.ID, nil, domain.SentimentPositive, 0.9, fixedNow.Add(-30*24*time.Hour), "old", "Pricing")
	addReview(t, db, src.ID, &rival.ID, domain.SentimentPositive, 0.5, in, "rival ok")

	a := newAssembler()
	tf, err := a.Window(nil, nil)
	require.NoError(t, err)
	p, err := a.Assemble(ctx, db, tf, true)
	require.NoError(t, err)

	require.Len(t, p.Highlights, 3)
	assert.Equal(t, "Total reviews: 3 across 1 sources.", p.Highlights[0])
	assert.Equal(t, "Positive/Neutral/Negative split: 1/1/1.", p.Highlights[1])
	assert.Equal(t, "Top topic: Pricing (0.0 trend).", p.Highlights[2])

	assert.Equal(t, int64(3), p.KeyMetrics.TotalReviews)
	assert.Equal(t, 0.1, p.KeyMetrics.AverageSentiment)
	assert.Equal(t, 0.33, p.KeyMetrics.PositiveRatio)
	assert.Equal(t, int64(1), p.KeyMetrics.UniqueSources)

	require.Len(t, p.TopicSpotlight, 3)
	assert.Equal(t, "Pricing", p.TopicSpotlight[0].TopicLabel)
	require.Len(t, p.TopicSpotlight[0].SampleQuotes, 2)
	assert.Equal(t, "fine", p.TopicSpotlight[0].SampleQuotes[0])
	for _, s := range p.TopicSpotlight {
		assert.Equal(t, 0.0, s.ChangeVsPrevious)
		for _, q := range s.SampleQuotes {
			assert.LessOrEqual(t, len([]rune(q)), 140)
		}
	}

	require.Len(t, p.CompetitorSummary, 2)
	assert.Equal(t, CompetitorSummary{
		CompetitorID: rival.ID, Name: "Rival", SentimentDelta: 0.4, Highlight: "1 reviews, average 0.5",
	}, p.CompetitorSummary[0])
	assert.Equal(t, quiet.ID, p.CompetitorSummary[1].CompetitorID)
	assert.Equal(t, -0.1, p.CompetitorSummary[1].SentimentDelta)
	assert.Equal(t, "No new reviews in this window.", p.CompetitorSummary[1].Highlight)
}

func TestAssemble_ExcludeCompetitors(t *testing.T) {
	db := newTestDB(t)
	_, err := repo.CreateCompetitor(context.Background(), db, "Rival", nil, nil, nil)
	require.NoError(t, err)

	a := newAssembler()
	tf, _ := a.Window(nil, nil)
	p, err := a.Assemble(context.Background(), db, tf, false)
	require.NoError(t, err)
	assert.Empty(t, p.CompetitorSummary)
}

func TestRun_PersistsAndRoundTrips(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := repo.CreateCompetitor(ctx, db, "Rival", nil, nil, nil)
	require.NoError(t, err)

	a := newAssembler()
	p, err := a.Run(ctx, db, Request{IncludeCompetitors: true})
	require.NoError(t, err)
	require.NotEmpty(t, p.DigestID)
	require.NotNil(t, p.GeneratedAt)
	assert.True(t, p.GeneratedAt.Equal(fixedNow))

	row, err := repo.GetDigest(ctx, db, p.DigestID)
	require.NoError(t, err)
	assert.NotEmpty(t, row.CompetitorSnapshot)

	back, err := FromRow(row)
	require.NoError(t, err)
	assert.Equal(t, p.Highlights, back.Highlights)
	assert.Equal(t, p.KeyMetrics, back.KeyMetrics)
	assert.Equal(t, p.SentimentSnapshot, back.SentimentSnapshot)
	assert.Equal(t, p.CompetitorSummary, back.CompetitorSummary)
	assert.True(t, p.TimeframeStart.Equal(back.TimeframeStart))
	assert.True(t, p.TimeframeEnd.Equal(back.TimeframeEnd))
}

func TestRun_WithoutCompetitorsStoresNullSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := newAssembler().Run(ctx, db, Request{IncludeCompetitors: false})
	require.NoError(t, err)

	row, err := repo.GetDigest(ctx, db, p.DigestID)
	require.NoError(t, err)
	assert.Empty(t, row.CompetitorSnapshot)

	back, err := FromRow(row)
	require.NoError(t, err)
	assert.NotNil(t, back.CompetitorSummary)
	assert.Empty(t, back.CompetitorSummary)
}

func TestRun_InvalidWindowWritesNothing(t *testing.T) {
	db := newTestDB(t)
	start := fixedNow
	end := fixedNow.Add(-time.Minute)

	_, err := newAssembler().Run(context.Background(), db, Request{Start: &start, End: &end})
	require.ErrorIs(t, err, ErrInvalidTimeframe)

	n, err := repo.CountDigests(context.Background(), db)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{0: "0.0", 0.5: "0.5", -1: "-1.0", 0.45: "0.45", 3: "3.0"}
	for in, want := range cases {
		assert.Equal(t, want, formatFloat(in), "formatFloat(%v)", in)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ééé", truncateRunes("éééé", 3))
}
