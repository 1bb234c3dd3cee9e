package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"bundled/pkg/types"
)

const namespace = "bundled"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// The route pattern is only known after routing.
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// inflightMiddleware tracks in-flight requests by route pattern. It must be
// mounted inside the router so the pattern is resolved.
func inflightMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()
		next.ServeHTTP(w, r)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// StatusSource is the subset of the service the bundle collector reads.
type StatusSource interface {
	Status() types.StatusResponse
}

// BundleCollector exports manager status as Prometheus metrics. Values are
// read from a single Status snapshot per scrape.
type BundleCollector struct {
	src StatusSource

	bundles     *prometheus.Desc
	queue       *prometheus.Desc
	loaded      *prometheus.Desc
	transfers   *prometheus.Desc
	loads       *prometheus.Desc
	downloads   *prometheus.Desc
	errors      *prometheus.Desc
	loadsTotal  *prometheus.Desc
	evictions   *prometheus.Desc
	manifestSet *prometheus.Desc
}

// NewBundleCollector builds a collector over src.
func NewBundleCollector(src StatusSource) *BundleCollector {
	d := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &BundleCollector{
		src:         src,
		bundles:     d("bundles", "Bundles by derived status", "status"),
		queue:       d("queue_length", "Entries in the download queue"),
		loaded:      d("loaded_bundles", "Bundles in the loaded set"),
		transfers:   d("active_transfers", "In-flight network transfers"),
		loads:       d("active_loads", "In-flight local loads"),
		downloads:   d("downloads_total", "Successful downloads"),
		errors:      d("errors_total", "Failed downloads and loads"),
		loadsTotal:  d("loads_total", "Bundles materialized into memory"),
		evictions:   d("evictions_total", "Loaded-set evictions"),
		manifestSet: d("manifest_ready", "1 when a manifest is set"),
	}
}

// Describe implements prometheus.Collector.
func (c *BundleCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.bundles, c.queue, c.loaded, c.transfers, c.loads,
		c.downloads, c.errors, c.loadsTotal, c.evictions, c.manifestSet,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *BundleCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Status()
	for status, n := range s.States {
		ch <- prometheus.MustNewConstMetric(c.bundles, prometheus.GaugeValue, float64(n), status)
	}
	ready := 0.0
	if s.ManifestReady {
		ready = 1
	}
	ch <- prometheus.MustNewConstMetric(c.manifestSet, prometheus.GaugeValue, ready)
	ch <- prometheus.MustNewConstMetric(c.queue, prometheus.GaugeValue, float64(len(s.Queue)))
	ch <- prometheus.MustNewConstMetric(c.loaded, prometheus.GaugeValue, float64(len(s.Loaded)))
	ch <- prometheus.MustNewConstMetric(c.transfers, prometheus.GaugeValue, float64(s.ActiveTransfers))
	ch <- prometheus.MustNewConstMetric(c.loads, prometheus.GaugeValue, float64(s.ActiveLoads))
	ch <- prometheus.MustNewConstMetric(c.downloads, prometheus.CounterValue, float64(s.DownloadsTotal))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.ErrorsTotal))
	ch <- prometheus.MustNewConstMetric(c.loadsTotal, prometheus.CounterValue, float64(s.LoadsTotal))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.EvictionsTotal))
}
