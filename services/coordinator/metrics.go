package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eventbook_transitions_total",
	Help: "Membership transition attempts by operation and outcome.",
}, []string{"op", "outcome"})
