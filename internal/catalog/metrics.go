package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediacatalog",
		Subsystem: "catalog",
		Name:      "rows_total",
		Help:      "Catalog rows processed by the writer, by result.",
	}, []string{"result"})

	backfillRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediacatalog",
		Subsystem: "backfill",
		Name:      "rows_total",
		Help:      "Rows visited by the full hash backfill, by outcome.",
	}, []string{"outcome"})
)
