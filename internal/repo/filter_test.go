package repo

import (
	"strings"
	"testing"
	"time"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

func TestReviewFilter_Where(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := ReviewFilter{}.Where("r").ToSql()
	if err != nil || sql != "(1=1)" || len(args) != 0 {
		t.Fatalf("empty filter: %q %v %v", sql, args, err)
	}

	sql, args, err = ReviewFilter{
		Start:        &start,
		SourceID:     "s1",
		CompetitorID: "ignored",
		OwnOnly:      true,
		Sentiment:    domain.SentimentNegative,
	}.Where("r").ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	for _, frag := range []string{"r.published_at >= ?", "r.source_id = ?", "r.competitor_id IS NULL", "r.sentiment_label = ?"} {
		if !strings.Contains(sql, frag) {
			t.Fatalf("missing %q in %q", frag, sql)
		}
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}

	sql, _, _ = ReviewFilter{CompetitorID: "c1"}.Where("").ToSql()
	if !strings.Contains(sql, "competitor_id = ?") || strings.Contains(sql, ".") {
		t.Fatalf("unexpected competitor clause: %q", sql)
	}
}
