// Package metrics exposes prometheus counters of the spam engine.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umputun/dc-spam/lib/dcspam"
)

// Metrics is a set of engine metrics registered in its own registry
type Metrics struct {
	reg *prometheus.Registry

	Messages    *prometheus.CounterVec // received messages by outcome
	Actions     *prometheus.CounterVec // audit actions of scored messages
	Triggers    *prometheus.CounterVec // fired triggers
	Removals    *prometheus.CounterVec // removal attempts by result
	Score       prometheus.Histogram   // spam score of scored messages
	AuditErrors prometheus.Counter     // failed audit sink writes
	Pruned      prometheus.Counter     // history entries discarded by periodic prune
	Users       prometheus.Gauge       // users with a message counter
}

// New makes Metrics with go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dcspam_messages_total",
			Help: "Total number of received messages by outcome",
		}, []string{"outcome"}), // "scored", "skipped_empty", "skipped_window", "ignored"
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dcspam_actions_total",
			Help: "Total number of scored messages by audit action",
		}, []string{"action"}),
		Triggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dcspam_triggers_total",
			Help: "Total number of fired triggers",
		}, []string{"trigger"}),
		Removals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dcspam_removals_total",
			Help: "Total number of message removal attempts by result",
		}, []string{"result"}), // "removed", "not_found", "forbidden", "failed"
		Score: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dcspam_score",
			Help:    "Spam score of scored messages",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		AuditErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "dcspam_audit_errors_total",
			Help: "Total number of failed audit sink writes",
		}),
		Pruned: f.NewCounter(prometheus.CounterOpts{
			Name: "dcspam_history_pruned_total",
			Help: "Total number of history entries discarded by prune",
		}),
		Users: f.NewGauge(prometheus.GaugeOpts{
			Name: "dcspam_tracked_users",
			Help: "Current number of users with a message counter",
		}),
	}
}

// Observe updates counters with the result of a message check
func (m *Metrics) Observe(res dcspam.Result) {
	switch {
	case !res.Scored && res.Count == 0:
		m.Messages.WithLabelValues("skipped_empty").Inc()
		return
	case !res.Scored:
		m.Messages.WithLabelValues("skipped_window").Inc()
		return
	}

	m.Messages.WithLabelValues("scored").Inc()
	m.Score.Observe(float64(res.Decision.Score))
	for _, t := range res.Decision.Triggers {
		m.Triggers.WithLabelValues(t).Inc()
	}
	if res.Record != nil {
		m.Actions.WithLabelValues(res.Record.Action).Inc()
	}
	if res.Enforcement == nil {
		return
	}
	m.observeRemoval(res.Enforcement.Current)
	for _, r := range res.Enforcement.Prior {
		m.observeRemoval(r)
	}
}

// Ignored counts a message dropped before the engine, like bot or direct messages
func (m *Metrics) Ignored() {
	m.Messages.WithLabelValues("ignored").Inc()
}

// Handler returns http handler serving metrics in prometheus format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) observeRemoval(r dcspam.Removal) {
	switch {
	case r.Removed():
		m.Removals.WithLabelValues("removed").Inc()
	case errors.Is(r.Err, dcspam.ErrNotFound):
		m.Removals.WithLabelValues("not_found").Inc()
	case errors.Is(r.Err, dcspam.ErrForbidden):
		m.Removals.WithLabelValues("forbidden").Inc()
	default:
		m.Removals.WithLabelValues("failed").Inc()
	}
}
