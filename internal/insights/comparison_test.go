package insights

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/repo"
)

func TestShares(t *testing.T) {
	assert.Empty(t, Shares(map[string]int64{"a": 1}, 0))
	got := Shares(map[string]int64{"a": 1, "b": 3}, 4)
	assert.InDelta(t, 0.25, got["a"], 1e-12)
	assert.InDelta(t, 0.75, got["b"], 1e-12)
}

func TestCompareTopics_OrderingRoundingAndLimit(t *testing.T) {
	self := map[string]float64{"A": 0.5, "B": 0.1, "C": 1.0 / 3}
	other := map[string]float64{"A": 0.2, "B": 0.6, "D": 0.3}

	got := CompareTopics(self, other, 0)
	want := []TopicComparison{
		{TopicLabel: "B", SelfShare: 0.1, CompetitorShare: 0.6, Delta: 0.5},
		{TopicLabel: "C", SelfShare: 0.3333, CompetitorShare: 0, Delta: -0.3333},
		{TopicLabel: "A", SelfShare: 0.5, CompetitorShare: 0.2, Delta: -0.3},
		{TopicLabel: "D", SelfShare: 0, CompetitorShare: 0.3, Delta: 0.3},
	}
	assert.Equal(t, want, got)

	assert.Len(t, CompareTopics(self, other, 2), 2)
	assert.Empty(t, CompareTopics(nil, nil, 5))
}

func TestCompareTopics_Antisymmetric(t *testing.T) {
	a := map[string]float64{"X": 0.12345, "Y": 0.5, "Z": 0.00005}
	b := map[string]float64{"X": 0.7, "W": 0.25, "Z": 0.0001}

	ab := CompareTopics(a, b, 0)
	ba := CompareTopics(b, a, 0)
	require.Len(t, ba, len(ab))

	byLabel := map[string]TopicComparison{}
	for _, c := range ba {
		byLabel[c.TopicLabel] = c
	}
	for _, c := range ab {
		r := byLabel[c.TopicLabel]
		assert.Equal(t, -c.Delta, r.Delta, c.TopicLabel)
		assert.Equal(t, c.SelfShare, r.CompetitorShare, c.TopicLabel)
		assert.Equal(t, c.CompetitorShare, r.SelfShare, c.TopicLabel)
	}
}

func TestCompareCompetitor(t *testing.T) {
	db := newTestDB(t)
	src := source(t, db, "G2")
	rival := competitor(t, db, "Rival")
	other := competitor(t, db, "Other")

	review(t, db, seed{source: src, label: domain.SentimentPositive, score: 0.6, at: day(1, 1), topics: []string{"Dashboard UX"}})
	review(t, db, seed{source: src, label: domain.SentimentNeutral, score: 0, at: day(1, 2), topics: []string{"Performance"}})
	review(t, db, seed{source: src, competitor: &rival, label: domain.SentimentNegative, score: -0.4, at: day(1, 3), topics: []string{"Performance"}})
	review(t, db, seed{source: src, competitor: &other, label: domain.SentimentNegative, score: -1, at: day(1, 4), topics: []string{"Integrations"}})

	cmp, err := New().CompareCompetitor(context.Background(), db, rival, repo.ReviewFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), cmp.SelfSentiment.ReviewCount)
	assert.InDelta(t, 0.3, cmp.SelfSentiment.AverageScore, 1e-9)
	assert.Equal(t, int64(1), cmp.CompetitorSentiment.ReviewCount)
	assert.Equal(t, int64(1), cmp.CompetitorSentiment.Negative)

	// Self: Dashboard 0.5, Performance 0.5. Rival: Performance 1.0.
	assert.Equal(t, []TopicComparison{
		{TopicLabel: "Dashboard UX", SelfShare: 0.5, CompetitorShare: 0, Delta: -0.5},
		{TopicLabel: "Performance", SelfShare: 0.5, CompetitorShare: 1, Delta: 0.5},
	}, cmp.TopTopics)
}

func TestCompareCompetitor_NoReviews(t *testing.T) {
	db := newTestDB(t)
	rival := competitor(t, db, "Quiet")

	cmp, err := New().CompareCompetitor(context.Background(), db, rival, repo.ReviewFilter{})
	require.NoError(t, err)
	assert.Zero(t, cmp.CompetitorSentiment.ReviewCount)
	assert.NotNil(t, cmp.TopTopics)
	assert.Empty(t, cmp.TopTopics)
}
