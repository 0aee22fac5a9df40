package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("success")
	c.RecordLogin("invalid_credentials")
	c.RecordGateRejection("revoked")
	c.RecordRevocation("logout")
	c.RecordSweep(3, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.gateRejections.WithLabelValues("revoked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.revocations.WithLabelValues("logout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sweepDeleted))
}

func TestCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSignup("created")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `pos_auth_signups_total{outcome="created"} 1`))
}
