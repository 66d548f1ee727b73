package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeChurn    = "churn"
	OutcomeContinue = "continue"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_predictions_total",
			Help: "Total number of prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	ValidationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_validation_errors_total",
			Help: "Total number of field validation errors",
		},
		[]string{"field"},
	)

	UnknownCategoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_unknown_categories_total",
			Help: "Categorical inputs absent from the reference data",
		},
		[]string{"field"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "churn_prediction_duration_seconds",
			Help:    "Duration of feature assembly and model scoring in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
