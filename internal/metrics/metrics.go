package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated    prometheus.Counter
	OrdersRejected   *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	CreateDuration   prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders committed.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Order creations aborted, by reason.",
	}, []string{"reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_state_transitions_total",
		Help: "Committed order state changes.",
	}, []string{"from", "to"})
	createDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_create_duration_seconds",
		Help:    "Latency of order creation including the storage transaction.",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(
		created, rejected, transitions, createDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg:              r,
		OrdersCreated:    created,
		OrdersRejected:   rejected,
		StateTransitions: transitions,
		CreateDuration:   createDuration,
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
