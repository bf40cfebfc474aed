package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarmcrew_build_info",
		Help: "Build information of the crew service",
	}, []string{"version", "commit"})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmcrew_jobs_total", Help: "Total crew jobs finished, by outcome.",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarmcrew_stage_duration_seconds",
		Help:    "Wall-clock duration of successful crew stages.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"task"})

	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmcrew_stage_failures_total", Help: "Total crew stages aborted by an agent failure.",
	}, []string{"task"})

	ProgressDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmcrew_progress_deliveries_total", Help: "Progress update deliveries, by transport and outcome.",
	}, []string{"transport", "outcome"})

	ResultDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmcrew_result_deliveries_total", Help: "Deferred result deliveries, by transport and outcome.",
	}, []string{"transport", "outcome"})

	AsyncJobsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swarmcrew_async_jobs_inflight", Help: "Deferred jobs queued or running.",
	})

	AsyncPoolRunning = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "swarmcrew_async_pool_running", Help: "Deferred jobs executing on the worker pool.",
	}, func() float64 {
		running, _ := poolOccupancy()
		return float64(running)
	})

	AsyncPoolWaiting = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "swarmcrew_async_pool_waiting", Help: "Deferred jobs queued in the worker pool.",
	}, func() float64 {
		_, waiting := poolOccupancy()
		return float64(waiting)
	})
)

// PoolStats reports how many jobs a pool is running and how many are queued
type PoolStats func() (running int64, waiting uint64)

var trackedPool atomic.Pointer[PoolStats]

// TrackPool makes stats the source of the async pool gauges. The most recent call wins.
func TrackPool(stats PoolStats) {
	trackedPool.Store(&stats)
}

func poolOccupancy() (int64, uint64) {
	stats := trackedPool.Load()
	if stats == nil {
		return 0, 0
	}
	return (*stats)()
}
