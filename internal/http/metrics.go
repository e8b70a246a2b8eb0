package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webpulse",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"})

		r.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webpulse",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})

		r.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webpulse",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"})

		r.ingestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webpulse",
			Subsystem: "engine",
			Name:      "measurements_ingested_total",
			Help:      "Accepted measurements by metric name and rating",
		}, []string{"metric", "rating"})

		r.rejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webpulse",
			Subsystem: "engine",
			Name:      "measurements_rejected_total",
			Help:      "Measurements rejected at the ingestion boundary",
		})

		retained := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "webpulse",
			Subsystem: "engine",
			Name:      "retained_measurements",
			Help:      "Measurements currently held in the rolling store",
		}, func() float64 { return float64(r.engine.StoredCount()) })

		collectors := []prometheus.Collector{r.requestTotal, r.requestLatency, r.rateLimitHits, r.ingestedTotal, r.rejectedTotal, retained}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						switch collector {
						case r.requestTotal:
							r.requestTotal = v
						case r.rateLimitHits:
							r.rateLimitHits = v
						case r.ingestedTotal:
							r.ingestedTotal = v
						}
					case *prometheus.HistogramVec:
						r.requestLatency = v
					case prometheus.Counter:
						if collector == r.rejectedTotal {
							r.rejectedTotal = v
						}
					}
				}
			}
		}
		r.metricsInitialized = true
	})
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) recordIngested(metric, rating string) {
	if !r.metricsInitialized {
		return
	}
	r.ingestedTotal.With(prometheus.Labels{"metric": metric, "rating": rating}).Inc()
}

func (r *Router) recordRejected() {
	if !r.metricsInitialized {
		return
	}
	r.rejectedTotal.Inc()
}
