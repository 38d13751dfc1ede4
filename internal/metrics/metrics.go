package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	surveysSubmitted  prometheus.Counter
	photosWatermarked prometheus.Counter
	exportJobsTotal   *prometheus.CounterVec
	exportJobDuration prometheus.Histogram
}

// New creates a fresh Metrics registry with HTTP, survey and export metrics
// registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propsurvey",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "propsurvey",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	surveysSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "propsurvey",
		Name:      "surveys_submitted_total",
		Help:      "Total number of field surveys accepted",
	})

	photosWatermarked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "propsurvey",
		Name:      "photos_watermarked_total",
		Help:      "Total number of survey photos watermarked and stored",
	})

	exportJobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propsurvey",
		Name:      "export_jobs_total",
		Help:      "Total number of export jobs processed, by outcome",
	}, []string{"outcome"})

	exportJobDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "propsurvey",
		Name:      "export_job_duration_seconds",
		Help:      "Duration of export jobs from claim to completion",
		Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	})

	registry.MustRegister(
		httpRequests,
		httpDuration,
		surveysSubmitted,
		photosWatermarked,
		exportJobsTotal,
		exportJobDuration,
	)

	return &Metrics{
		registry:          registry,
		httpRequests:      httpRequests,
		httpDuration:      httpDuration,
		surveysSubmitted:  surveysSubmitted,
		photosWatermarked: photosWatermarked,
		exportJobsTotal:   exportJobsTotal,
		exportJobDuration: exportJobDuration,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpDuration.With(labels).Observe(duration.Seconds())
}

// IncSurveySubmitted increments the accepted-survey counter.
func (m *Metrics) IncSurveySubmitted() {
	if m == nil {
		return
	}
	m.surveysSubmitted.Inc()
}

// AddPhotosWatermarked adds n to the watermarked-photo counter.
func (m *Metrics) AddPhotosWatermarked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.photosWatermarked.Add(float64(n))
}

// IncExportJob counts one finished export job by outcome ("done"/"failed").
func (m *Metrics) IncExportJob(outcome string) {
	if m == nil {
		return
	}
	m.exportJobsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// ObserveExportJobDuration observes an export job duration.
func (m *Metrics) ObserveExportJobDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.exportJobDuration.Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
