package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_predictions_total",
		Help: "Rows scored, by mode (single, batch)",
	}, []string{"mode"})
	predictionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_prediction_failures_total",
		Help: "Failed prediction requests, by stage",
	}, []string{"stage"})
	likelyChurnTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churn_likely_churn_total",
		Help: "Rows labelled Likely to Churn",
	})
	inferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "churn_inference_duration_seconds",
		Help:    "Classifier call latency per request",
		Buckets: prometheus.DefBuckets,
	})
	batchRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "churn_batch_rows",
		Help:    "Rows per batch upload",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	})
	autoFilledColumns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_auto_filled_columns_total",
		Help: "Batch uploads missing a schema column, by column",
	}, []string{"column"})
	textFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_text_fallbacks_total",
		Help: "Text service calls answered with a placeholder, by kind",
	}, []string{"kind"})
)
