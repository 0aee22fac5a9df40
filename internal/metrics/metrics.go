// Package metrics collects Prometheus metrics for the authentication flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the service layer, the gate and the sweeper report to.
type Recorder interface {
	RecordLogin(outcome string)
	RecordSignup(outcome string)
	RecordGateRejection(reason string)
	RecordRevocation(reason string)
	RecordSweep(deleted int64, duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	logins         *prometheus.CounterVec
	signups        *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	revocations    *prometheus.CounterVec
	sweepDeleted   prometheus.Counter
	sweepLatency   prometheus.Histogram
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_auth_signups_total",
			Help: "Signup attempts by outcome.",
		}, []string{"outcome"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_auth_gate_rejections_total",
			Help: "Requests rejected by the authentication gate, by internal reason.",
		}, []string{"reason"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_auth_token_revocations_total",
			Help: "Tokens revoked before their natural expiry, by reason.",
		}, []string{"reason"}),
		sweepDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_auth_revocation_sweep_deleted_total",
			Help: "Revocation entries removed by the sweeper.",
		}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_auth_revocation_sweep_seconds",
			Help:    "Duration of revocation sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.logins, c.signups, c.gateRejections, c.revocations, c.sweepDeleted, c.sweepLatency)
	return c
}

func (c *Collector) RecordLogin(outcome string)  { c.logins.WithLabelValues(outcome).Inc() }
func (c *Collector) RecordSignup(outcome string) { c.signups.WithLabelValues(outcome).Inc() }

func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordRevocation(reason string) {
	c.revocations.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordSweep(deleted int64, duration time.Duration) {
	c.sweepDeleted.Add(float64(deleted))
	c.sweepLatency.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin(string)               {}
func (Nop) RecordSignup(string)              {}
func (Nop) RecordGateRejection(string)       {}
func (Nop) RecordRevocation(string)          {}
func (Nop) RecordSweep(int64, time.Duration) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
