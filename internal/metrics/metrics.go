package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ViewResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiat_view_resolutions_total",
			Help: "Total dashboard views resolved",
		},
		[]string{"tab", "outcome"},
	)

	DateExtrapolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiat_date_extrapolations_total",
			Help: "Views whose forecast date fell past the end of the catalogue",
		},
		[]string{"basis"},
	)

	PlaceholdersServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiat_placeholders_served_total",
			Help: "Plot requests answered with the Data Unavailable image",
		},
		[]string{"kind"},
	)

	DisplayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiat_display_events_total",
			Help: "Selection events applied to the shared display",
		},
		[]string{"type", "outcome"},
	)

	SyncFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiat_sync_files_total",
			Help: "Plot files handled by the mirror",
		},
		[]string{"result"},
	)

	SyncBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiat_sync_bytes_total",
			Help: "Bytes of plot files downloaded",
		},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiat_sync_duration_seconds",
			Help:    "Duration of a plot tree sync",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"source", "status"},
	)

	CatalogueDates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fiat_catalogue_dates",
			Help: "Dates currently in the model run catalogue",
		},
	)

	ProbeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiat_probe_results_total",
			Help: "Plot reachability checks by result",
		},
		[]string{"role", "result"},
	)
)
