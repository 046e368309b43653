// rsx_metrics.go - Prometheus instrumentation for the offload core and command ring

package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// offloadMetrics is optional everywhere: a nil *offloadMetrics records
// nothing and costs a nil check.
type offloadMetrics struct {
	enqueued       *prometheus.CounterVec
	processed      *prometheus.CounterVec
	immediate      *prometheus.CounterVec
	offloadedBytes *prometheus.CounterVec
	syncWait       prometheus.Histogram
	syncFastPath   prometheus.Counter
	submissions    prometheus.Counter
	fenceWaits     prometheus.Counter
}

// newOffloadMetrics registers the offload collectors with reg.
func newOffloadMetrics(reg prometheus.Registerer) *offloadMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &offloadMetrics{
		enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rsx_offload_tasks_enqueued_total",
			Help: "Tasks handed to the offload worker, by kind",
		}, []string{"kind"}),
		processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rsx_offload_tasks_processed_total",
			Help: "Tasks applied by the offload worker, by kind",
		}, []string{"kind"}),
		immediate: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rsx_offload_tasks_immediate_total",
			Help: "Requests executed synchronously on the caller, by kind",
		}, []string{"kind"}),
		offloadedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rsx_offload_bytes_total",
			Help: "Bytes written by offloaded tasks, by kind",
		}, []string{"kind"}),
		syncWait: f.NewHistogram(prometheus.HistogramOpts{
			Name: "rsx_offload_sync_wait_microseconds",
			Help: "Time Sync spent waiting for the worker to drain",
			Buckets: []float64{
				1,    // already drained but raced
				10,   // typical small burst
				50,   //
				100,  //
				500,  //
				1000, // 1ms - large texture upload
				5000, //
				20000,
			},
		}),
		syncFastPath: f.NewCounter(prometheus.CounterOpts{
			Name: "rsx_offload_sync_fast_path_total",
			Help: "Sync calls that found the queue already drained",
		}),
		submissions: f.NewCounter(prometheus.CounterOpts{
			Name: "rsx_command_buffer_submissions_total",
			Help: "Command buffer chunks submitted to the backend queue",
		}),
		fenceWaits: f.NewCounter(prometheus.CounterOpts{
			Name: "rsx_command_buffer_fence_waits_total",
			Help: "Blocking waits on a command buffer fence",
		}),
	}
}

func (m *offloadMetrics) observeEnqueue(k offloadKind, bytes uint32) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(k.String()).Inc()
	m.offloadedBytes.WithLabelValues(k.String()).Add(float64(bytes))
}

func (m *offloadMetrics) observeProcessed(k offloadKind) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(k.String()).Inc()
}

func (m *offloadMetrics) observeImmediate(k offloadKind) {
	if m == nil {
		return
	}
	m.immediate.WithLabelValues(k.String()).Inc()
}

func (m *offloadMetrics) observeSync(waited time.Duration) {
	if m == nil {
		return
	}
	m.syncWait.Observe(float64(waited.Microseconds()))
}

func (m *offloadMetrics) observeSyncFastPath() {
	if m == nil {
		return
	}
	m.syncFastPath.Inc()
}

func (m *offloadMetrics) observeSubmit() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *offloadMetrics) observeFenceWait() {
	if m == nil {
		return
	}
	m.fenceWaits.Inc()
}
