package quest

import "github.com/prometheus/client_golang/prometheus"

var (
	passRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questtracker_pass_runs_total",
			Help: "Daily pass invocations by outcome",
		},
		[]string{"outcome"},
	)
	passOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questtracker_pass_tasks_total",
			Help: "Tasks recorded by the daily pass by result",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the pass counters with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(passRunsTotal, passOutcomesTotal)
}
