package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

var (
	dispatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventbook_dispatch_attempts_total",
		Help: "Notification dispatch outcomes after retries.",
	}, []string{"outcome"})

	dispatchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbook_dispatch_dropped_total",
		Help: "Notifications dropped after retry exhaustion.",
	})
)
