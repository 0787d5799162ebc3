// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. Construct once with New and inject; the
// zero value is not usable.
type Metrics struct {
	VisitStarts  *prometheus.CounterVec
	VisitEnds    *prometheus.CounterVec
	NotesSaves   *prometheus.CounterVec
	DraftSaves   *prometheus.CounterVec
	OrdersPlaced prometheus.Counter
	StoreErrors  *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		VisitStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_starts_total",
			Help:      "Visit start attempts by outcome.",
		}, []string{"status"}),
		VisitEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_ends_total",
			Help:      "Visit end attempts by outcome.",
		}, []string{"status"}),
		NotesSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_saves_total",
			Help:      "Debounced and forced notes saves by outcome.",
		}, []string{"status"}),
		DraftSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_saves_total",
			Help:      "Draft order snapshot writes by outcome.",
		}, []string{"status"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders successfully placed.",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store failures by error kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.VisitStarts, m.VisitEnds, m.NotesSaves, m.DraftSaves,
		m.OrdersPlaced, m.StoreErrors,
	)
	return m
}

// Outcome labels shared by the counter vecs.
const (
	OK     = "ok"
	Failed = "failed"
)
