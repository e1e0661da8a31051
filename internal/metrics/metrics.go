// Package metrics exposes rate limit and audit counters in Prometheus format.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lms"

// Metrics owns a private registry and the application collectors.
type Metrics struct {
	registry      *prometheus.Registry
	decisions     *prometheus.CounterVec
	historyWrites *prometheus.CounterVec
	quotaDenials  *prometheus.CounterVec
}

// New constructs Metrics with Go runtime and process collectors registered.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		historyWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "writes_total",
			Help:      "Audit history writes by table and outcome.",
		}, []string{"table", "outcome"}),
		quotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "denials_total",
			Help:      "AI quota denials by axis.",
		}, []string{"axis"}),
	}

	for _, collector := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisions,
		m.historyWrites,
		m.quotaDenials,
	} {
		if errRegister := registry.Register(collector); errRegister != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", errRegister)
		}
	}
	return m, nil
}

// ObserveDecision counts one rate limit decision.
func (m *Metrics) ObserveDecision(action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.decisions.WithLabelValues(action, outcome).Inc()
}

// ObserveWrite counts one audit write.
func (m *Metrics) ObserveWrite(table string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.historyWrites.WithLabelValues(table, outcome).Inc()
}

// ObserveQuotaDenial counts one AI quota denial on axis.
func (m *Metrics) ObserveQuotaDenial(axis string) {
	if m == nil {
		return
	}
	m.quotaDenials.WithLabelValues(axis).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
