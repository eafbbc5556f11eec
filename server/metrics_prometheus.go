package server

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetrics is the MetricsCollector implementation for production
// deployments, registered against a caller-supplied prometheus.Registerer
// so a single process can host more than one netfiles server alongside
// other instrumented components.
type PrometheusMetrics struct {
	connections  *prometheus.CounterVec
	opens        *prometheus.CounterVec
	closes       prometheus.Counter
	policyDenied prometheus.Counter
	openFiles    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers the netfiles collector set.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netfiles_connections_total",
			Help: "TCP connections handled, labeled by acceptance and reason.",
		}, []string{"accepted", "reason"}),
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netfiles_opens_total",
			Help: "Open requests handled, labeled by whether they were admitted.",
		}, []string{"allowed"}),
		closes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netfiles_closes_total",
			Help: "Successful Close requests.",
		}),
		policyDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netfiles_policy_denied_total",
			Help: "Read/Write requests refused for lack of permission.",
		}),
		openFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netfiles_open_files",
			Help: "Distinct paths currently open in the Access Manager table.",
		}),
	}
	reg.MustRegister(m.connections, m.opens, m.closes, m.policyDenied, m.openFiles)
	return m
}

func (m *PrometheusMetrics) RecordConnection(accepted bool, reason string) {
	m.connections.WithLabelValues(boolLabel(accepted), reason).Inc()
}

func (m *PrometheusMetrics) RecordOpen(allowed bool) {
	m.opens.WithLabelValues(boolLabel(allowed)).Inc()
}

func (m *PrometheusMetrics) RecordClose() {
	m.closes.Inc()
}

func (m *PrometheusMetrics) RecordPolicyDenied() {
	m.policyDenied.Inc()
}

func (m *PrometheusMetrics) SetOpenFileCount(n int) {
	m.openFiles.Set(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
