package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_insight_predictions_total",
			Help: "Total number of journal comment predictions by outcome.",
		},
		[]string{"outcome"},
	)
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_insight_nl_queries_total",
			Help: "Total number of natural-language queries by outcome.",
		},
		[]string{"outcome"},
	)
	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_insight_llm_request_duration_seconds",
			Help:    "Latency of generation calls by purpose.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"purpose"},
	)
	recordsLoaded = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_insight_records_loaded",
			Help:    "Number of order records loaded per prediction request.",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 750, 1000},
		},
	)
	writeBacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_insight_write_backs_total",
			Help: "Total number of prediction write-backs by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		predictionsTotal,
		queriesTotal,
		llmRequestDurationSeconds,
		recordsLoaded,
		writeBacksTotal,
	)
}

func ObservePrediction(outcome string) {
	predictionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveQuery(outcome string) {
	queriesTotal.WithLabelValues(outcome).Inc()
}

func ObserveLLMRequest(purpose string, elapsed time.Duration) {
	llmRequestDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveRecordsLoaded(n int) {
	if n < 0 {
		n = 0
	}
	recordsLoaded.Observe(float64(n))
}

func ObserveWriteBack(outcome string) {
	writeBacksTotal.WithLabelValues(outcome).Inc()
}
