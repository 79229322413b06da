// Package metrics exposes Prometheus collectors for the copilot pipeline
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "copilot"

var (
	TextsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "texts_total", Help: "Screen texts received, by source"},
		[]string{"source"},
	)
	ParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "parse_total", Help: "Parse attempts by detected format and outcome"},
		[]string{"format", "outcome"},
	)
	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "duplicates_total", Help: "Offers suppressed as duplicates",
	})
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "recommendations_total", Help: "Assessed offers by overall level"},
		[]string{"level"},
	)
	OCRSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "ocr_seconds", Help: "OCR latency",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
	})
	PipelineSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "pipeline_seconds", Help: "Text to overlay instruction latency",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	OverlayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "overlay_clients", Help: "Connected overlay WebSocket clients",
	})
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_total", Help: "Published offer events by result"},
		[]string{"result"},
	)
	HistoryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "history_write_failures_total", Help: "Records that failed to persist",
	})
	FramesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "frames_skipped_total", Help: "Captured frames skipped as unchanged",
	})
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "breaker_state", Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open"},
		[]string{"breaker"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
