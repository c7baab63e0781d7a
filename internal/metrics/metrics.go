package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatcheck_stations_processed_total",
			Help: "Stations processed per run, by outcome",
		},
		[]string{"station", "outcome"},
	)

	StationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatcheck_station_failures_total",
			Help: "Station processing failures by cause",
		},
		[]string{"station", "cause"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heatcheck_run_duration_seconds",
			Help:    "Wall time of a full processing run",
			Buckets: prometheus.DefBuckets,
		},
	)

	HeatmapRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatcheck_heatmap_rows_written_total",
			Help: "Heatmap percentile rows reconciled per station",
		},
		[]string{"station"},
	)
)
