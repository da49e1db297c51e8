package operations

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatepass_passes_issued_total",
		Help: "Gate passes issued, initial and rotated.",
	})

	visitsCheckedIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatepass_visits_checked_in_total",
		Help: "Successful visitor check-ins.",
	})

	visitsCheckedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatepass_visits_checked_out_total",
		Help: "Completed visits.",
	})
)
