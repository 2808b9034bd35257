package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolated(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordRx("SMD_DS", 10)
	assert.Equal(t, float64(10), testutil.ToFloat64(a.RxBytes.WithLabelValues("SMD_DS")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.RxBytes.WithLabelValues("SMD_DS")))
}

func TestRecordersUpdateSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordOpen("SMD_DS", ResultOK)
	m.IncOpenInstances()
	m.RecordRx("SMD_DS", 5)
	m.RecordTx("SMD_DS", 3, true)
	m.RecordProtocolFault("SMD_DS")
	m.RecordHangup("SMD_DS")
	m.DecOpenInstances()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OpensTotal.WithLabelValues("SMD_DS", ResultOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TxTruncated.WithLabelValues("SMD_DS")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.OpenInstances))

	snap := m.Snapshot()
	assert.Equal(t, int64(5), snap.RxBytes)
	assert.Equal(t, int64(3), snap.TxBytes)
	assert.Equal(t, int64(1), snap.ProtocolFaults)
	assert.Equal(t, int64(1), snap.Hangups)
	assert.Equal(t, int64(0), snap.OpenInstances)
}

func TestTimerRecordsPump(t *testing.T) {
	m := NewMetrics()

	timer := NewTimer(m, "SMD_GPSNMEA")
	time.Sleep(time.Millisecond)
	timer.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PumpRuns.WithLabelValues("SMD_GPSNMEA")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/channels/:index", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/channels/9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/channels/:index", "404")))
	assert.Equal(t, int64(1), m.Snapshot().TotalErrors)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "chanbridge_uptime_seconds"))
}
