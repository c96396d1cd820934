package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector exported by the service.
type Metrics struct {
	DownstreamRequests *prometheus.CounterVec   // outcome per modality: succeeded or a fallback reason
	DownstreamSeconds  *prometheus.HistogramVec // latency per modality
	BreakerState       *prometheus.GaugeVec     // 0 closed, 1 half-open, 2 open
	FusionResults      *prometheus.CounterVec   // fusion terminal states
	NearbyQueries      *prometheus.CounterVec   // nearby outcomes
	NearbySeconds      prometheus.Histogram
	NearbyResults      prometheus.Histogram

	SpecialistsLocated *prometheus.CounterVec
	GeocoderErrors     prometheus.Counter
	GeocoderSeconds    *prometheus.HistogramVec
	ActiveWorkers      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DownstreamRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_downstream_requests_total",
			Help: "Total number of analysis requests forwarded to downstream services, by outcome.",
		}, []string{"modality", "outcome"}),
		DownstreamSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hermes_downstream_request_duration_seconds",
			Help:    "Duration of requests to downstream analysis services.",
			Buckets: prometheus.DefBuckets,
		}, []string{"modality"}),
		BreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "hermes_circuit_breaker_state",
			Help: "Circuit breaker state per modality (0=closed, 1=half-open, 2=open).",
		}, []string{"modality"}),
		FusionResults: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_fusion_results_total",
			Help: "Total number of fusion results, by terminal state.",
		}, []string{"state"}),
		NearbyQueries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_nearby_queries_total",
			Help: "Total number of nearby specialist lookups, by status.",
		}, []string{"status"}),
		NearbySeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_nearby_query_duration_seconds",
			Help:    "Duration of nearby specialist store queries.",
			Buckets: prometheus.DefBuckets,
		}),
		NearbyResults: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_nearby_results",
			Help:    "Number of specialists returned per nearby lookup.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		SpecialistsLocated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_locator_specialists_processed_total",
			Help: "Total number of specialists processed by the locator, by status.",
		}, []string{"status"}),
		GeocoderErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hermes_geocoder_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		GeocoderSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hermes_geocoder_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hermes_locator_active_workers",
			Help: "Current number of locator workers processing specialists.",
		}),
	}
}
