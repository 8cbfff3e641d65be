package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	objectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacatalog_ingest_objects_total",
		Help: "Objects handled by the ingest pipeline, by terminal state.",
	}, []string{"state"})

	bytesPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediacatalog_ingest_bytes_placed_total",
		Help: "Bytes written to the destination store by committed objects.",
	})

	objectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediacatalog_ingest_object_duration_seconds",
		Help:    "Wall time of one object's pipeline.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediacatalog_ingest_in_flight",
		Help: "Objects currently inside the pipeline.",
	})
)
