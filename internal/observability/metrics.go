package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provisioning outcomes. Partial failures are split so that a compensated
// failure can be told apart from one that left the two stores inconsistent.
const (
	OutcomeSuccess                = "success"
	OutcomeValidationError        = "validation_error"
	OutcomeNotFound               = "not_found"
	OutcomeGatewayUnreachable     = "gateway_unreachable"
	OutcomeGatewayRejected        = "gateway_rejected"
	OutcomePartialCompensated     = "partial_failure_compensated"
	OutcomeReconciliationRequired = "reconciliation_required"
	OutcomeError                  = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Provisioning metrics
	ProvisioningTotal    *prometheus.CounterVec
	ProvisioningDuration *prometheus.HistogramVec

	// Identity provider metrics
	GatewayCallsTotal   *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec
	GatewayReachable    prometheus.Gauge

	// Reconciliation metrics
	SyncRunsTotal       *prometheus.CounterVec
	SyncIdentitiesTotal *prometheus.CounterVec
	SyncDuration        prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academic_provisioning_operations_total",
				Help: "Total number of provisioning operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		ProvisioningDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "academic_provisioning_duration_seconds",
				Help:    "Provisioning operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		GatewayCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academic_identity_provider_calls_total",
				Help: "Total number of identity provider calls",
			},
			[]string{"operation", "status"},
		),
		GatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "academic_identity_provider_call_duration_seconds",
				Help:    "Identity provider call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		GatewayReachable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "academic_identity_provider_reachable",
				Help: "1 when the last reachability probe succeeded",
			},
		),

		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academic_sync_runs_total",
				Help: "Total number of reconciliation sweeps",
			},
			[]string{"status"},
		),
		SyncIdentitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academic_sync_identities_total",
				Help: "Identities processed by reconciliation sweeps by result",
			},
			[]string{"result"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "academic_sync_duration_seconds",
				Help:    "Reconciliation sweep duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}

	registry.MustRegister(
		m.ProvisioningTotal,
		m.ProvisioningDuration,
		m.GatewayCallsTotal,
		m.GatewayCallDuration,
		m.GatewayReachable,
		m.SyncRunsTotal,
		m.SyncIdentitiesTotal,
		m.SyncDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordProvisioning records one provisioning operation. Safe on a nil receiver.
func (m *Metrics) RecordProvisioning(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.ProvisioningTotal.WithLabelValues(operation, outcome).Inc()
	m.ProvisioningDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordGatewayCall records one identity provider call. Safe on a nil receiver.
func (m *Metrics) RecordGatewayCall(operation, status string, start time.Time) {
	if m == nil {
		return
	}
	m.GatewayCallsTotal.WithLabelValues(operation, status).Inc()
	m.GatewayCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetGatewayReachable records the result of a reachability probe.
func (m *Metrics) SetGatewayReachable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.GatewayReachable.Set(1)
		return
	}
	m.GatewayReachable.Set(0)
}

// RecordSync records the counts of one finished sweep.
func (m *Metrics) RecordSync(status string, synced, skipped, failed int, start time.Time) {
	if m == nil {
		return
	}
	m.SyncRunsTotal.WithLabelValues(status).Inc()
	m.SyncIdentitiesTotal.WithLabelValues("synced").Add(float64(synced))
	m.SyncIdentitiesTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.SyncIdentitiesTotal.WithLabelValues("failed").Add(float64(failed))
	m.SyncDuration.Observe(time.Since(start).Seconds())
}
