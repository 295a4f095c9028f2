package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "luma_bridge"

// Metrics holds the bridge's collectors on a private registry. It
// satisfies both cdp.CallObserver and usecase.LoopObserver.
type Metrics struct {
	registry        *prometheus.Registry
	CDPConnected    prometheus.Gauge
	Contexts        prometheus.Gauge
	RPCCalls        *prometheus.CounterVec
	RPCDuration     *prometheus.HistogramVec
	CaptureTicks    *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
	ReconnectsTotal prometheus.Counter
	Subscribers     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		CDPConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cdp_connected",
			Help:      "1 while a debugger connection is live",
		}),
		Contexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "execution_contexts",
			Help:      "Execution contexts known on the current connection",
		}),
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "CDP calls by method and outcome",
		}, []string{"method", "outcome"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "CDP call latency",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 5, 30},
		}, []string{"method"}),
		CaptureTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_ticks_total",
			Help:      "Capture cycles by outcome",
		}, []string{"outcome"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Change events broadcast by type",
		}, []string{"type"}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Debugger connections lost and retried",
		}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Connected event subscribers by transport",
		}, []string{"transport"}),
	}
	r.MustRegister(m.CDPConnected, m.Contexts, m.RPCCalls, m.RPCDuration, m.CaptureTicks,
		m.EventsEmitted, m.ReconnectsTotal, m.Subscribers)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveCall(method, outcome string, elapsed time.Duration) {
	m.RPCCalls.WithLabelValues(method, outcome).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveContexts(n int) { m.Contexts.Set(float64(n)) }

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.CDPConnected.Set(1)
		return
	}
	m.CDPConnected.Set(0)
	m.Contexts.Set(0)
}

func (m *Metrics) ObserveTick(outcome string) { m.CaptureTicks.WithLabelValues(outcome).Inc() }

func (m *Metrics) ObserveEvent(eventType string) { m.EventsEmitted.WithLabelValues(eventType).Inc() }

func (m *Metrics) ObserveReconnect() { m.ReconnectsTotal.Inc() }

func (m *Metrics) SetSubscribers(transport string, n int) {
	m.Subscribers.WithLabelValues(transport).Set(float64(n))
}
