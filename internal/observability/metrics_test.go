package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDomainCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(ReviewsIngested)
	ReviewsIngested.Add(3)
	if got := testutil.ToFloat64(ReviewsIngested) - before; got != 3 {
		t.Fatalf("reviews_ingested delta = %v", got)
	}

	DigestsGenerated.WithLabelValues("cli", "false").Inc()
	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer,
		"customervoice_reviews_ingested_total",
		"customervoice_digests_generated_total",
	)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected both counters on the default registry, got %d series", n)
	}

	err = testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(`
# HELP customervoice_ingest_batches_failed_total Ingestion batches rolled back after a storage failure.
# TYPE customervoice_ingest_batches_failed_total counter
customervoice_ingest_batches_failed_total 0
`), "customervoice_ingest_batches_failed_total")
	if err != nil {
		t.Fatalf("ingest_batches_failed: %v", err)
	}
}
