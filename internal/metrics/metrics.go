// Package metrics exposes Prometheus counters for ingestion, code
// generation, chart rendering and HTTP traffic. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/usage-dashboard/internal/apperror"
)

// Result labels.
const (
	ResultOK            = "ok"
	ResultValidation    = "validation"
	ResultNotFound      = "not_found"
	ResultDuplicate     = "duplicate"
	ResultIntegrity     = "integrity"
	ResultConfiguration = "configuration"
	ResultGeneration    = "generation"
	ResultExecution     = "execution"
	ResultCanceled      = "canceled"
	ResultNoChart       = "no_chart"
	ResultError         = "error"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	uploads       *prometheus.CounterVec
	rowsIngested  *prometheus.CounterVec
	rowsDeleted   *prometheus.CounterVec
	generations   *prometheus.CounterVec
	generationDur *prometheus.HistogramVec
	renders       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// New registers the collectors with reg. Pass a fresh prometheus.Registry
// in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_dashboard_uploads_total",
			Help: "Report uploads by result.",
		}, []string{"result"}),
		rowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_dashboard_rows_ingested_total",
			Help: "Rows appended to the master tables.",
		}, []string{"table"}),
		rowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_dashboard_rows_deleted_total",
			Help: "Rows removed from the master tables by report deletion.",
		}, []string{"table"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_dashboard_generations_total",
			Help: "Code generation calls by backend and result.",
		}, []string{"backend", "result"}),
		generationDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usage_dashboard_generation_duration_seconds",
			Help:    "Latency of code generation calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"backend"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_dashboard_renders_total",
			Help: "Chart code executions by engine and result.",
		}, []string{"engine", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_dashboard_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
	}
	reg.MustRegister(m.uploads, m.rowsIngested, m.rowsDeleted, m.generations,
		m.generationDur, m.renders, m.httpRequests)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Classify maps an error to a low-cardinality result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	case errors.Is(err, apperror.ErrValidation):
		return ResultValidation
	case errors.Is(err, apperror.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, apperror.ErrDuplicateReport):
		return ResultDuplicate
	case errors.Is(err, apperror.ErrDataIntegrity):
		return ResultIntegrity
	case errors.Is(err, apperror.ErrConfiguration):
		return ResultConfiguration
	case errors.Is(err, apperror.ErrGeneration):
		return ResultGeneration
	case errors.Is(err, apperror.ErrExecution):
		return ResultExecution
	default:
		return ResultError
	}
}

func (m *Metrics) ObserveUpload(err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(Classify(err)).Inc()
}

// ObserveRows records rows added (or removed, when deleted is true) per table.
func (m *Metrics) ObserveRows(deleted bool, users, models, tools int) {
	if m == nil {
		return
	}
	vec := m.rowsIngested
	if deleted {
		vec = m.rowsDeleted
	}
	vec.WithLabelValues("users").Add(float64(users))
	vec.WithLabelValues("models").Add(float64(models))
	vec.WithLabelValues("tools").Add(float64(tools))
}

func (m *Metrics) ObserveGeneration(backend string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(backend, Classify(err)).Inc()
	m.generationDur.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveRender records one execution. A successful run that produced no
// chart is counted as no_chart.
func (m *Metrics) ObserveRender(engine string, err error, produced bool) {
	if m == nil {
		return
	}
	result := Classify(err)
	if err == nil && !produced {
		result = ResultNoChart
	}
	m.renders.WithLabelValues(engine, result).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
