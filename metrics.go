package tiled

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/qri-io/tiled-go")

var (
	tilesReadCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiled_tiles_read_total",
		Help: "The total number of tiles materialized by the tile reader.",
	})

	regionsCombinedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiled_regions_combined_total",
		Help: "The total number of shared regions resolved by combining partials.",
	})

	extractFailuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiled_extract_failures_total",
		Help: "The total number of failed extract calls, by strategy.",
	}, []string{"strategy"})

	pendingSharedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiled_pending_shared_regions",
		Help: "The number of shared regions waiting for partials from more tiles.",
	})
)
