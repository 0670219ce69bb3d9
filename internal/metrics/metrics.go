// Package metrics exposes prometheus collectors fed from lifecycle events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	docstore "github.com/hanpama/contentgraph/internal/docstore"
	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	events "github.com/hanpama/contentgraph/internal/events"
)

const namespace = "contentgraph"

// Metrics owns a private registry rather than the global one.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	unsubscribe   []func()
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operations_total",
			Help: "GraphQL operations by type and outcome.",
		}, []string{"type", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operation_duration_seconds",
			Help: "GraphQL operation latency.", Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "operations_total",
			Help: "Document store operations by op, collection and outcome.",
		}, []string{"op", "collection", "outcome"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
			Help: "Document store operation latency.", Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.operations, m.opDuration,
		m.storeOps, m.storeDuration,
	)
	return m
}

// Subscribe feeds the collectors from bus until Close.
func (m *Metrics) Subscribe(bus *eventbus.Bus) {
	m.unsubscribe = append(m.unsubscribe,
		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			m.httpDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLFinish) {
			outcome := "ok"
			if len(e.Errors) > 0 {
				outcome = "error"
			}
			m.operations.WithLabelValues(e.OperationType, outcome).Inc()
			m.opDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.StoreFinish) {
			m.storeOps.WithLabelValues(e.Op, e.Collection, storeOutcome(e.Err)).Inc()
			m.storeDuration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
		}),
	)
}

func (m *Metrics) Close() {
	for _, u := range m.unsubscribe {
		u()
	}
	m.unsubscribe = nil
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func storeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, docstore.ErrNotFound):
		return "not_found"
	case errors.Is(err, docstore.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
