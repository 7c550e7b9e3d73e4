package events

import (
	"github.com/phrazzld/caro-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded by Metrics.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomePanic   = "panic"
)

// Metrics exposes Prometheus collectors that report event delivery.
// A nil *Metrics records nothing.
type Metrics struct {
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	dropped          *prometheus.CounterVec
	taskFailures     *prometheus.CounterVec
}

// MustNewMetrics constructs Metrics registered with reg. Collectors that
// are already registered are reused, so several buses may share a registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caro",
				Subsystem: "events",
				Name:      "deliveries_total",
				Help:      "Event deliveries by handler and outcome.",
			},
			[]string{"event", "handler", "outcome"},
		),
		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "caro",
				Subsystem: "events",
				Name:      "delivery_duration_seconds",
				Help:      "Time spent in event handlers.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event", "handler"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "caro",
				Subsystem: "events",
				Name:      "deliveries_in_flight",
				Help:      "Deliveries currently running.",
			},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caro",
				Subsystem: "events",
				Name:      "dispatch_rejected_total",
				Help:      "Deliveries the dispatch policy refused to schedule.",
			},
			[]string{"event", "handler"},
		),
		taskFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caro",
				Subsystem: "events",
				Name:      "task_failures_total",
				Help:      "Delivery tasks that failed outside the failure policy.",
			},
			[]string{"handler"},
		),
	}

	m.deliveries = register(reg, m.deliveries)
	m.deliveryDuration = register(reg, m.deliveryDuration)
	m.inFlight = register(reg, m.inFlight)
	m.dropped = register(reg, m.dropped)
	m.taskFailures = register(reg, m.taskFailures)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) deliveryStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) deliveryFinished(result Result) {
	if m == nil {
		return
	}
	m.inFlight.Dec()

	outcome := outcomeSuccess
	switch {
	case result.Panicked:
		outcome = outcomePanic
	case result.Err != nil:
		outcome = outcomeError
	}

	name := result.Delivery.Event.EventName()
	m.deliveries.WithLabelValues(name, result.Delivery.HandlerID, outcome).Inc()
	m.deliveryDuration.WithLabelValues(name, result.Delivery.HandlerID).Observe(result.Duration.Seconds())
}

func (m *Metrics) dispatchRejected(d Delivery) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(d.Event.EventName(), d.HandlerID).Inc()
}

// TaskFailed counts a delivery task that the executor saw fail. It matches
// the signature of task.Executor.SetErrorHandler.
func (m *Metrics) TaskFailed(t task.Task, _ error) {
	if m == nil {
		return
	}
	m.taskFailures.WithLabelValues(t.Name()).Inc()
}
