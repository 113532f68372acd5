// Package metrics exposes the feed client's event surface as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonirico/wsfeed"
)

const namespace = "wsfeed"

type Metrics struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	timeouts    prometheus.Counter
	failures    prometheus.Counter
	state       prometheus.Gauge
}

// New creates the collectors on a dedicated registry, along with the go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages received while subscribed, by type and product",
		}, []string{"type", "product_id"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions, by edge",
		}, []string{"from", "to"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_timeouts_total",
			Help:      "Subscriptions that stopped receiving heartbeats",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Terminal client failures",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current client state, see wsfeed.State",
		}),
	}

	m.registry.MustRegister(
		m.messages,
		m.transitions,
		m.timeouts,
		m.failures,
		m.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveTicker(t wsfeed.Ticker) {
	m.messages.WithLabelValues(string(wsfeed.TickerMessage), t.ProductID).Inc()
}

func (m *Metrics) ObserveHeartbeat(h wsfeed.Heartbeat) {
	m.messages.WithLabelValues(string(wsfeed.HeartbeatMessage), h.ProductID).Inc()
}

func (m *Metrics) ObserveTransition(t wsfeed.Transition) {
	m.transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	m.state.Set(float64(t.To))
}

func (m *Metrics) ObserveTimeout(error) {
	m.timeouts.Inc()
}

func (m *Metrics) ObserveFailure(error) {
	m.failures.Inc()
}

// Observe registers the collectors as listeners of c. The returned func removes them.
func (m *Metrics) Observe(c *wsfeed.Client) (detach func()) {
	m.state.Set(float64(c.State()))

	removers := []func(){
		c.OnTicker(m.ObserveTicker),
		c.OnHeartbeat(m.ObserveHeartbeat),
		c.OnAnyTransition(m.ObserveTransition),
		c.OnTimeout(m.ObserveTimeout),
		c.OnFailure(m.ObserveFailure),
	}

	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}
