package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts engine activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	searches      prometheus.Counter
	notes         prometheus.Counter
	incidents     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kitchenlog",
			Name:      "registrations_total",
			Help:      "Kitchen registration submissions by outcome.",
		}, []string{"outcome"}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kitchenlog",
			Name:      "searches_total",
			Help:      "Kitchen list requests with an active search query.",
		}),
		incidents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kitchenlog",
			Name:      "incidents_opened_total",
			Help:      "Incidents opened against kitchens.",
		}),
		notes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kitchenlog",
			Name:      "history_notes_total",
			Help:      "Follow-up notes appended to incidents.",
		}),
	}
	reg.MustRegister(
		m.registrations, m.searches, m.incidents, m.notes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registered() {
	if m != nil {
		m.registrations.WithLabelValues("accepted").Inc()
	}
}

func (m *Metrics) Rejected() {
	if m != nil {
		m.registrations.WithLabelValues("rejected").Inc()
	}
}

func (m *Metrics) Searched() {
	if m != nil {
		m.searches.Inc()
	}
}

func (m *Metrics) IncidentOpened() {
	if m != nil {
		m.incidents.Inc()
	}
}

func (m *Metrics) NoteAppended() {
	if m != nil {
		m.notes.Inc()
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
