package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts store activity.
//
// Statement kinds: insert_data, delete_data, delete_properties, modify,
// unlink, rename. Notification kinds: node, query.
type Metrics struct {
	Statements    *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Triples       prometheus.Gauge
}

// NewMetrics creates the store metrics and registers them on reg when reg
// is non-nil. Registering twice on the same registry panics, so each store
// sharing a registry needs its own prometheus.WrapRegistererWith prefix.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linked",
				Subsystem: "store",
				Name:      "statements_total",
				Help:      "Total number of update statements executed",
			},
			[]string{"kind"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linked",
				Subsystem: "store",
				Name:      "notifications_total",
				Help:      "Total number of observer notifications delivered",
			},
			[]string{"kind"},
		),
		Triples: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "linked",
				Subsystem: "store",
				Name:      "triples",
				Help:      "Number of triples after the last executed statement",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Statements, m.Notifications, m.Triples)
	}
	return m
}
