package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	EventsCreated      *prometheus.CounterVec
	EventsUpdated      *prometheus.CounterVec
	EventsDeleted      *prometheus.CounterVec
	AssignmentsCreated prometheus.Counter
	AssignmentsDeleted prometheus.Counter
	CacheLookups       *prometheus.CounterVec
}

// New builds the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsschool",
			Name:      "events_created_total",
			Help:      "Events created, by kind.",
		}, []string{"kind"}),
		EventsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsschool",
			Name:      "events_updated_total",
			Help:      "Events patched, by kind.",
		}, []string{"kind"}),
		EventsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsschool",
			Name:      "events_deleted_total",
			Help:      "Events deleted, by kind.",
		}, []string{"kind"}),
		AssignmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsschool",
			Name:      "assignments_created_total",
			Help:      "Assignments created by task fan-out.",
		}),
		AssignmentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsschool",
			Name:      "assignments_deleted_total",
			Help:      "Assignments removed together with their task.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsschool",
			Name:      "event_cache_lookups_total",
			Help:      "Event cache lookups, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.EventsCreated,
			m.EventsUpdated,
			m.EventsDeleted,
			m.AssignmentsCreated,
			m.AssignmentsDeleted,
			m.CacheLookups,
		)
	}
	return m
}

func (m *Metrics) EventCreated(kind string, assignments int) {
	if m == nil {
		return
	}
	m.EventsCreated.WithLabelValues(kind).Inc()
	m.AssignmentsCreated.Add(float64(assignments))
}

func (m *Metrics) EventUpdated(kind string) {
	if m == nil {
		return
	}
	m.EventsUpdated.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventDeleted(kind string, assignments int64) {
	if m == nil {
		return
	}
	m.EventsDeleted.WithLabelValues(kind).Inc()
	m.AssignmentsDeleted.Add(float64(assignments))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
