// Package metrics exposes Prometheus collectors for the statement import
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DocumentsProcessed counts imported documents by outcome.
var DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "import",
	Name:      "documents_total",
	Help:      "Total statement documents processed, by outcome.",
}, []string{"outcome"})

// TransactionsParsed counts parsed transactions by statement format.
var TransactionsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "import",
	Name:      "transactions_parsed_total",
	Help:      "Total transactions parsed from statement text, by format.",
}, []string{"format"})

// ReconciliationMismatches counts statements whose computed ending balance
// disagreed with the stated one beyond tolerance.
var ReconciliationMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "import",
	Name:      "reconciliation_mismatches_total",
	Help:      "Total statements failing balance reconciliation.",
})

// CategorizationOutcomes counts categorization results by tier.
var CategorizationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "categorize",
	Name:      "outcomes_total",
	Help:      "Total categorization outcomes, by source tier.",
}, []string{"source"})

// ImportDuration tracks end-to-end per-document import latency.
var ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "statements",
	Subsystem: "import",
	Name:      "duration_seconds",
	Help:      "End-to-end statement import duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// ReviewQueueDepth tracks the current needs-review backlog.
var ReviewQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "statements",
	Subsystem: "review",
	Name:      "queue_depth",
	Help:      "Current number of transactions awaiting manual review.",
})
