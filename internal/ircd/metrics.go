package ircd

import "github.com/prometheus/client_golang/prometheus"

// serverMetrics holds the counters the admin HTTP surface exposes. It is
// constructed once and handed to both Server (which increments it
// inline, on its own goroutine) and the /metrics handler (which only
// ever reads via the registry, never touches Server fields directly).
type serverMetrics struct {
	connectionsTotal prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "connections_total",
			Help:      "Total number of accepted client connections.",
		}),
	}
	reg.MustRegister(m.connectionsTotal)
	return m
}
