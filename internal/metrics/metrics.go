package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry of the viewer
	Registry = prometheus.NewRegistry()

	// Resolutions counts assignment resolutions by confidence tier
	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "overlay_resolutions_total", Help: "Assignment resolutions by confidence tier."},
		[]string{"confidence"},
	)
	// MalformedGeometries counts matched routes dropped for having fewer than 2 points
	MalformedGeometries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "overlay_malformed_geometries_total", Help: "Matched routes skipped for malformed geometry."},
	)
	// SolutionCache counts per-solution cache lookups by result (hit, miss)
	SolutionCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "overlay_solution_cache_total", Help: "Solution view cache lookups by result."},
		[]string{"result"},
	)
	// HighlightChanges counts highlight state transitions
	HighlightChanges = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "overlay_highlight_changes_total", Help: "Highlight state changes."},
	)
	// ActiveSessions tracks open view sessions
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "overlay_active_sessions", Help: "Open view sessions."},
	)
	// HTTPRequests counts requests by method, path and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)
)

var regOnce sync.Once

// Register registers all collectors on Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(Resolutions)
		Registry.MustRegister(MalformedGeometries)
		Registry.MustRegister(SolutionCache)
		Registry.MustRegister(HighlightChanges)
		Registry.MustRegister(ActiveSessions)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
