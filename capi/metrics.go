package capi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"capictl/capi20"
)

type metrics struct {
	requests    *prometheus.CounterVec
	messages    *prometheus.CounterVec
	calls       *prometheus.CounterVec
	ignored     prometheus.Counter
	transitions *prometheus.CounterVec
	occupied    prometheus.Gauge
	bytes       *prometheus.CounterVec
	reconnects  prometheus.Counter
	failures    prometheus.Counter
}

// newMetrics creates the session collectors. A nil registerer leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "requests_total",
			Help:      "Messages put on the wire by command and outcome",
		}, []string{"command", "result"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "messages_total",
			Help:      "Messages received by command and subcommand",
		}, []string{"command", "subcommand"}),
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "calls_total",
			Help:      "Calls placed or accepted by direction",
		}, []string{"direction"}),
		ignored: f.NewCounter(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "calls_ignored_total",
			Help:      "Inbound calls ignored for their service indicator or a full table",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "state_transitions_total",
			Help:      "Connection state transitions",
		}, []string{"from", "to"}),
		occupied: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "capi",
			Name:      "connections_active",
			Help:      "Occupied connection slots",
		}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "data_bytes_total",
			Help:      "B3 payload bytes by direction",
		}, []string{"direction"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "reconnects_total",
			Help:      "Session re-registrations after a queue desynchronization",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "capi",
			Name:      "dispatch_failures_total",
			Help:      "Fatal receive errors that stopped the dispatch loop",
		}),
	}
}

func (m *metrics) request(cmd capi20.Command, info capi20.Info) {
	result := "ok"
	if info != capi20.InfoOK {
		result = "error"
	}
	m.requests.WithLabelValues(cmd.String(), result).Inc()
}
