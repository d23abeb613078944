// Package metrics collects and exposes Prometheus metrics for the workflow engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pipefy"

// Result labels.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultSkipped  = "skipped"
	ResultError    = "error"
)

// Collector owns its registry so several instances can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	ticketsCreated *prometheus.CounterVec
	ticketMoves    *prometheus.CounterVec
	ticketMigrates *prometheus.CounterVec
	ruleExecutions *prometheus.CounterVec
	claimConflicts prometheus.Counter
	sweepDuration  prometheus.Histogram
	sweepDueRules  prometheus.Gauge
	notifyFailures prometheus.Counter
}

// NewCollector creates a collector with a fresh registry that also carries the
// Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created, by origin (manual or recurring rule).",
		}, []string{"origin"}),
		ticketMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_moves_total",
			Help:      "Stage move requests, by result.",
		}, []string{"result"}),
		ticketMigrates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_migrations_total",
			Help:      "Cross-process migration requests, by result.",
		}, []string{"result"}),
		ruleExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_executions_total",
			Help:      "Recurring rule executions, by trigger and result.",
		}, []string{"trigger", "result"}),
		claimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_claim_conflicts_total",
			Help:      "Rule executions refused because another execution held the claim.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_sweep_duration_seconds",
			Help:      "Duration of scheduler sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepDueRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_due_rules",
			Help:      "Rules found due by the latest sweep.",
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Ticket notifications that could not be published.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.ticketsCreated,
		c.ticketMoves,
		c.ticketMigrates,
		c.ruleExecutions,
		c.claimConflicts,
		c.sweepDuration,
		c.sweepDueRules,
		c.notifyFailures,
	)

	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordTicketCreated(origin string) {
	if c == nil {
		return
	}

	c.ticketsCreated.WithLabelValues(origin).Inc()
}

func (c *Collector) RecordMove(result string) {
	if c == nil {
		return
	}

	c.ticketMoves.WithLabelValues(result).Inc()
}

func (c *Collector) RecordMigration(result string) {
	if c == nil {
		return
	}

	c.ticketMigrates.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRuleExecution(trigger, result string) {
	if c == nil {
		return
	}

	c.ruleExecutions.WithLabelValues(trigger, result).Inc()

	if result == ResultConflict {
		c.claimConflicts.Inc()
	}
}

// RecordSweep records a finished sweep and the number of due rules it found.
func (c *Collector) RecordSweep(elapsed time.Duration, due int) {
	if c == nil {
		return
	}

	c.sweepDuration.Observe(elapsed.Seconds())
	c.sweepDueRules.Set(float64(due))
}

func (c *Collector) RecordNotifyFailure() {
	if c == nil {
		return
	}

	c.notifyFailures.Inc()
}
