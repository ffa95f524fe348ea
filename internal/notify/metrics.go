package notify

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK      = "ok"
	resultDropped = "dropped"
)

type metrics struct {
	subscribers prometheus.Gauge
	deliveries  *prometheus.CounterVec
	broadcasts  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cafe",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of connected subscribers.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Event deliveries by result.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Broadcast events by type.",
		}, []string{"type"}),
	}

	if reg != nil {
		reg.MustRegister(m.subscribers, m.deliveries, m.broadcasts)
	}

	return m
}
