package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion counters, labelled by source ("bank-sync", "csv-import",
// "manual"). Dedup skips and parse errors are tracked separately so a
// noisy feed is visible without reading logs.
var (
	TransactionsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispensa",
		Name:      "transactions_ingested_total",
		Help:      "Transactions added to the ledger.",
	}, []string{"source"})

	TransactionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispensa",
		Name:      "transactions_skipped_total",
		Help:      "Candidate transactions skipped as duplicates or non-expenses.",
	}, []string{"source"})

	IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispensa",
		Name:      "ingest_errors_total",
		Help:      "Rows or records that failed to parse during ingestion.",
	}, []string{"source"})

	CyclesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispensa",
		Name:      "cycles_finalized_total",
		Help:      "Billing cycles closed.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispensa",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by method and status class.",
	}, []string{"method", "status"})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispensa",
		Name:      "rate_limit_hits_total",
		Help:      "Mutating requests rejected by the per-client rate limiter.",
	})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordImport bumps the ingestion counters for one merge outcome.
func RecordImport(source string, added, skipped, errs int) {
	TransactionsIngested.WithLabelValues(source).Add(float64(added))
	TransactionsSkipped.WithLabelValues(source).Add(float64(skipped))
	IngestErrors.WithLabelValues(source).Add(float64(errs))
}
