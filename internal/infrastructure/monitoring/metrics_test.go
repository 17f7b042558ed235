package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTaskStarted("local")
	m.RecordTaskStarted("local")
	m.RecordTaskSettled("local", "committed", 10*time.Millisecond)
	m.RecordTaskSettled("local", "stale", time.Millisecond)
	m.RecordTaskFailure("compile")
	m.RecordLoadingShown("iframe")
	m.IncDemosActive()
	m.SetBreakerState("compiler", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TasksStarted.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksSettled.WithLabelValues("local", "stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskFailures.WithLabelValues("compile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadingShown.WithLabelValues("iframe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DemosActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("compiler")))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTaskStarted("local")
		m.RecordTaskSettled("local", "failed", time.Second)
		m.IncFrameConnections()
		m.SetBreakerState("compiler", 1)
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond, 0, 0)
	})
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/api/demos/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/demos/a", "/api/demos/b", "/nope"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/demos/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRegistrationIsPerRegistry(t *testing.T) {
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
