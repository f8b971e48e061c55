// Package metrics holds the Prometheus collectors of the taxvoice server.
// All Record methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	QuotaTicksTotal     *prometheus.CounterVec
	QuotaSecondsTotal   prometheus.Counter
	TokenExchangesTotal *prometheus.CounterVec
	ConversationsSaved  *prometheus.CounterVec
	SummariesTotal      *prometheus.CounterVec
	SharesTotal         *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "taxvoice"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		}, []string{"method", "route"}),
		QuotaTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_ticks_total",
			Help:      "Quota ticks by outcome.",
		}, []string{"outcome"}),
		QuotaSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_seconds_consumed_total",
			Help:      "Call seconds deducted from user quotas.",
		}),
		TokenExchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "One-time login token exchanges by outcome.",
		}, []string{"outcome"}),
		ConversationsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_saved_total",
			Help:      "Saved conversations, split by quota flag.",
		}, []string{"quota_exceeded"}),
		SummariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summarization requests by outcome.",
		}, []string{"outcome"}),
		SharesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shares_total",
			Help:      "Transcript share exports by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.QuotaTicksTotal,
		m.QuotaSecondsTotal,
		m.TokenExchangesTotal,
		m.ConversationsSaved,
		m.SummariesTotal,
		m.SharesTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordTick(outcome string, consumed int64) {
	if m == nil {
		return
	}
	m.QuotaTicksTotal.WithLabelValues(outcome).Inc()
	if consumed > 0 {
		m.QuotaSecondsTotal.Add(float64(consumed))
	}
}

func (m *Metrics) RecordExchange(outcome string) {
	if m == nil {
		return
	}
	m.TokenExchangesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSave(quotaExceeded bool) {
	if m == nil {
		return
	}
	label := "false"
	if quotaExceeded {
		label = "true"
	}
	m.ConversationsSaved.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordSummary(outcome string) {
	if m == nil {
		return
	}
	m.SummariesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordShare(outcome string) {
	if m == nil {
		return
	}
	m.SharesTotal.WithLabelValues(outcome).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
