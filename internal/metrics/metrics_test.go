package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/apperror"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ResultOK},
		{name: "canceled", err: fmt.Errorf("x: %w", context.Canceled), want: ResultCanceled},
		{name: "validation", err: apperror.ValidationFailed("f", "bad"), want: ResultValidation},
		{name: "duplicate", err: apperror.DuplicateReport("2025-05-01"), want: ResultDuplicate},
		{name: "integrity", err: apperror.DataIntegrity("bad", nil), want: ResultIntegrity},
		{name: "configuration", err: apperror.Configuration("K", "missing"), want: ResultConfiguration},
		{name: "generation", err: apperror.Generation("Gemini", errors.New("x")), want: ResultGeneration},
		{name: "execution", err: apperror.Execution("x"), want: ResultExecution},
		{name: "not found", err: apperror.NotFound("chart", "1"), want: ResultNotFound},
		{name: "other", err: errors.New("boom"), want: ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveUpload(nil)
	m.ObserveUpload(apperror.DuplicateReport("2025-05-01"))
	m.ObserveRows(false, 3, 5, 2)
	m.ObserveRows(true, 1, 0, 0)
	m.ObserveGeneration("gemini", nil, time.Second)
	m.ObserveRender("plotscript", nil, false)
	m.ObserveRender("plotscript", apperror.Execution("x"), false)
	m.ObserveRequest(http.MethodGet, http.StatusOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(ResultDuplicate)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsIngested.WithLabelValues("models")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsDeleted.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("gemini", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("plotscript", ResultNoChart)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("plotscript", ResultExecution)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload(nil)
		m.ObserveRows(false, 1, 1, 1)
		m.ObserveGeneration("openai", nil, 0)
		m.ObserveRender("docker", nil, true)
		m.ObserveRequest("POST", 500)
	})
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveUpload(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `usage_dashboard_uploads_total{result="ok"} 1`))
}
