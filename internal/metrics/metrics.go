package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Ledger operations by kind (grant, extend, reduce, remove, import) and outcome.
	LedgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipbot_ledger_operations_total",
			Help: "Total number of ledger mutations",
		},
		[]string{"operation", "result"},
	)
	ActiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vipbot_active_subscribers",
			Help: "Number of records currently in the ledger",
		},
	)

	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipbot_sweeps_total",
			Help: "Total number of expiry sweep iterations",
		},
		[]string{"result"},
	)
	ExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vipbot_expired_subscriptions_total",
			Help: "Total number of subscriptions removed by expiry",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipbot_notifications_total",
			Help: "Total number of outbound gateway messages",
		},
		[]string{"kind", "result"},
	)

	IntakeTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipbot_intake_transitions_total",
			Help: "Total number of intake state machine events",
		},
		[]string{"event"},
	)
)

var registerOnce sync.Once

// Registry holds every collector of this process.
var Registry = prometheus.NewRegistry()

// InitMetrics registers all collectors. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		Registry.MustRegister(LedgerOperationsTotal)
		Registry.MustRegister(ActiveSubscribers)
		Registry.MustRegister(SweepsTotal)
		Registry.MustRegister(ExpiredTotal)
		Registry.MustRegister(NotificationsTotal)
		Registry.MustRegister(IntakeTransitionsTotal)

		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
