package observability

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "customervoice"

// Domain counters exported next to the HTTP metrics on /metrics.
var (
	ReviewsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "reviews_ingested_total",
		Help:      "Reviews stored by ingestion.",
	})

	ReviewsDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "reviews_duplicate_total",
		Help:      "Reviews skipped because (source_id, source_review_id) already existed.",
	})

	IngestBatchesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "ingest_batches_failed_total",
		Help:      "Ingestion batches rolled back after a storage failure.",
	})

	DigestsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "digests_generated_total",
		Help:      "Digests assembled, by trigger (http, cli) and whether they were persisted.",
	}, []string{"trigger", "persisted"})
)

func init() {
	prometheus.MustRegister(ReviewsIngested, ReviewsDuplicate, IngestBatchesFailed, DigestsGenerated)
}
