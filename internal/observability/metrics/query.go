package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

// QueryMetrics implements ports.QueryObserver.
type QueryMetrics struct {
	service string

	queriesTotal       *prometheus.CounterVec
	queryDuration      *prometheus.HistogramVec
	subQuestions       *prometheus.HistogramVec
	unknownCategories  *prometheus.CounterVec
	retrievedFragments *prometheus.HistogramVec
}

func NewQueryMetrics(service string, registerer prometheus.Registerer) *QueryMetrics {
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rrr",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total queries by outcome.",
		},
		[]string{"service", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rrr",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "status"},
	)
	subQuestions := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rrr",
			Subsystem: "query",
			Name:      "sub_questions",
			Help:      "Sub-questions produced per decomposed query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
		[]string{"service"},
	)
	unknownCategories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rrr",
			Subsystem: "query",
			Name:      "unknown_category_total",
			Help:      "Sub-questions routed to a category with no retriever.",
		},
		[]string{"service", "category"},
	)
	retrievedFragments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rrr",
			Subsystem: "retrieval",
			Name:      "fragments",
			Help:      "Fragments retrieved per sub-question by category.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "category"},
	)

	registerer.MustRegister(queriesTotal, queryDuration, subQuestions, unknownCategories, retrievedFragments)

	return &QueryMetrics{
		service:            service,
		queriesTotal:       queriesTotal,
		queryDuration:      queryDuration,
		subQuestions:       subQuestions,
		unknownCategories:  unknownCategories,
		retrievedFragments: retrievedFragments,
	}
}

func (m *QueryMetrics) ObserveQuery(status string, subQuestions int, duration float64) {
	if status == "" {
		status = "unknown"
	}
	m.queriesTotal.WithLabelValues(m.service, status).Inc()
	m.queryDuration.WithLabelValues(m.service, status).Observe(duration)
	if subQuestions > 0 || status == "success" {
		m.subQuestions.WithLabelValues(m.service).Observe(float64(subQuestions))
	}
}

func (m *QueryMetrics) ObserveUnknownCategory(category string) {
	m.unknownCategories.WithLabelValues(m.service, categoryLabel(category)).Inc()
}

func (m *QueryMetrics) ObserveRetrieval(category string, fragments int) {
	m.retrievedFragments.WithLabelValues(m.service, categoryLabel(category)).Observe(float64(fragments))
}

// categoryLabel bounds label cardinality: the decomposer may invent any
// token, so overly long ones collapse into a single value.
func categoryLabel(category string) string {
	if category == "" {
		return "unknown"
	}
	if len(category) > 64 {
		return "overlong"
	}
	return category
}

var _ ports.QueryObserver = (*QueryMetrics)(nil)
