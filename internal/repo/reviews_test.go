package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

func TestInsertReview_ConflictIsNotAnError(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	src := seedSource(t, db, "App Store")

	mk := func() *domain.Review {
		return &domain.Review{
			ID: uuid.NewString(), SourceID: src.ID, SourceReviewID: "ext-1", Body: "great",
			SentimentLabel: domain.SentimentPositive, SentimentScore: 1, PublishedAt: time.Now().UTC(),
		}
	}
	ok, err := InsertReview(ctx, db, mk())
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	ok, err = InsertReview(ctx, db, mk())
	if err != nil {
		t.Fatalf("conflicting insert should not fail: %v", err)
	}
	if ok {
		t.Fatalf("conflicting insert reported a write")
	}

	exists, err := ReviewExists(ctx, db, src.ID, "ext-1")
	if err != nil || !exists {
		t.Fatalf("ReviewExists: %v %v", exists, err)
	}
	exists, err = ReviewExists(ctx, db, src.ID, "ext-2")
	if err != nil || exists {
		t.Fatalf("ReviewExists on missing key: %v %v", exists, err)
	}
	n, _ := CountReviews(ctx, db, ReviewFilter{})
	if n != 1 {
		t.Fatalf("expected 1 review, got %d", n)
	}
}

func TestInsertReview_UnknownSourceFails(t *testing.T) {
	db := newTestDB(t, true)
	r := &domain.Review{
		ID: uuid.NewString(), SourceID: uuid.NewString(), SourceReviewID: "x", Body: "b",
		SentimentLabel: domain.SentimentNeutral, PublishedAt: time.Now().UTC(),
	}
	if _, err := InsertReview(context.Background(), db, r); err == nil {
		t.Fatalf("expected foreign key failure")
	}
}

func TestListReviewsPage_FilterOrderAndTopics(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	a := seedSource(t, db, "A")
	b := seedSource(t, db, "B")
	comp, _ := CreateCompetitor(ctx, db, "Rival", nil, nil, nil)

	day := func(d int) time.Time { return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC) }
	seedReview(t, db, reviewSeed{sourceID: a.ID, published: day(1), label: domain.SentimentPositive,
		topics: map[string]float64{"Dashboard UX": 0.6, "Performance": 0.8}})
	seedReview(t, db, reviewSeed{sourceID: a.ID, published: day(3), label: domain.SentimentNegative})
	seedReview(t, db, reviewSeed{sourceID: b.ID, published: day(2), label: domain.SentimentPositive})
	seedReview(t, db, reviewSeed{sourceID: b.ID, published: day(4), competitorID: &comp.ID})

	all, err := ListReviewsPage(ctx, db, ReviewFilter{}, 0, 10)
	if err != nil || len(all) != 4 {
		t.Fatalf("ListReviewsPage: %d %v", len(all), err)
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].PublishedAt.Before(all[i].PublishedAt) {
			t.Fatalf("not newest first: %v before %v", all[i-1].PublishedAt, all[i].PublishedAt)
		}
	}
	oldest := all[len(all)-1]
	if len(oldest.Topics) != 2 || oldest.Topics[0].TopicLabel != "Performance" {
		t.Fatalf("topics not preloaded by confidence: %+v", oldest.Topics)
	}

	cases := []struct {
		name string
		f    ReviewFilter
		want int64
	}{
		{"source", ReviewFilter{SourceID: a.ID}, 2},
		{"sentiment", ReviewFilter{Sentiment: domain.SentimentPositive}, 2},
		{"own only", ReviewFilter{OwnOnly: true}, 3},
		{"competitor", ReviewFilter{CompetitorID: comp.ID}, 1},
		{"inclusive window", ReviewFilter{Start: ptr(day(2)), End: ptr(day(3))}, 2},
		{"combined", ReviewFilter{SourceID: b.ID, OwnOnly: true, Sentiment: domain.SentimentPositive}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := CountReviews(ctx, db, tc.f)
			if err != nil || n != tc.want {
				t.Fatalf("CountReviews = %d, %v; want %d", n, err, tc.want)
			}
			page, err := ListReviewsPage(ctx, db, tc.f, 0, 10)
			if err != nil || int64(len(page)) != tc.want {
				t.Fatalf("ListReviewsPage = %d, %v; want %d", len(page), err, tc.want)
			}
		})
	}

	// Past the end is empty, not an error.
	page, err := ListReviewsPage(ctx, db, ReviewFilter{}, 100, 10)
	if err != nil || len(page) != 0 {
		t.Fatalf("expected empty page past end, got %d %v", len(page), err)
	}
}

func TestSampleBodies(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	s := seedSource(t, db, "S")
	for i, body := range []string{"first", "second", "third"} {
		seedReview(t, db, reviewSeed{
			sourceID: s.ID, body: body,
			published: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
			topics:    map[string]float64{"Email Digests": 0.7},
		})
	}
	seedReview(t, db, reviewSeed{sourceID: s.ID, body: "other", published: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})

	got, err := SampleBodies(ctx, db, ReviewFilter{}, "Email Digests", 2)
	if err != nil {
		t.Fatalf("SampleBodies: %v", err)
	}
	if len(got) != 2 || got[0] != "third" || got[1] != "second" {
		t.Fatalf("unexpected samples: %v", got)
	}
}
