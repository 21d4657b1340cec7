package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	TriggerScheduler = "scheduler"
	TriggerList      = "list"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// DefaultRegisterer and DefaultGatherer are the registry the /metrics
	// endpoint serves. Tests may swap them for a fresh registry.
	DefaultRegisterer = prometheus.DefaultRegisterer
	DefaultGatherer   = prometheus.DefaultGatherer
)

var (
	SweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iplog_sweep_runs_total",
		Help: "Total number of expiry sweeps, by trigger and result.",
	}, []string{"trigger", "result"})
	RecordsEvictedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iplog_records_evicted_total",
		Help: "Total number of IP records removed because their TTL elapsed.",
	}, []string{"trigger"})
	RecordsAddedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "iplog_records_added_total",
		Help: "Total number of IP records inserted.",
	})
	NextSweepTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "iplog_next_sweep_timestamp_seconds",
		Help: "Unix time of the next scheduled sweep, 0 while the scheduler is stopped.",
	})
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		DefaultRegisterer.MustRegister(SweepRunsTotal)
		DefaultRegisterer.MustRegister(RecordsEvictedTotal)
		DefaultRegisterer.MustRegister(RecordsAddedTotal)
		DefaultRegisterer.MustRegister(NextSweepTimestamp)
	})
}

// ObserveSweep records one sweep pass.
func ObserveSweep(trigger string, removed int64, err error) {
	if err != nil {
		SweepRunsTotal.WithLabelValues(trigger, ResultFailure).Inc()
		return
	}
	SweepRunsTotal.WithLabelValues(trigger, ResultSuccess).Inc()
	if removed > 0 {
		RecordsEvictedTotal.WithLabelValues(trigger).Add(float64(removed))
	}
}
