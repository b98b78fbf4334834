package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	poolsCreated     prometheus.Counter
	poolsDeleted     prometheus.Counter
	dispatchFailures prometheus.Counter
	jobsFinished     *prometheus.CounterVec
	jobsRunning      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orchestrator",
			Name:      "pools_created_total",
			Help:      "Number of worker pools created.",
		}),
		poolsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orchestrator",
			Name:      "pools_deleted_total",
			Help:      "Number of worker pools deleted.",
		}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orchestrator",
			Name:      "dispatch_failures_total",
			Help:      "Number of partitions which could not be sent to workers.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orchestrator",
			Name:      "jobs_finished_total",
			Help:      "Number of copy jobs finished, by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "store",
			Subsystem: "orchestrator",
			Name:      "jobs_running",
			Help:      "Number of copy jobs running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.poolsCreated, m.poolsDeleted, m.dispatchFailures, m.jobsFinished, m.jobsRunning)
	}
	return m
}

func (m *metrics) finished(s State) {
	m.jobsRunning.Dec()
	result := "completed"
	if s == Failed {
		result = "failed"
	}
	m.jobsFinished.WithLabelValues(result).Inc()
}
