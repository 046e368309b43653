// rsx_offload.go - RSX DMA offload manager: background worker for copies and index emulation

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine

License: GPLv3 or later
*/

/*
rsx_offload.go - DMA Offload Manager

The RSX thread issues vertex/texture uploads and index-buffer emulation for
every draw. Large transfers are handed to a dedicated worker goroutine so
the RSX thread can keep decoding the command stream, and Sync is called
before anything that reads the destination memory (typically a command
buffer submission).

Shared state:

    The worker touches nothing but offloadShared: the task queue, the
    enqueued/processed counters and the lifecycle flag. Destination and
    source bytes belong to guest memory and are never locked.

Ordering:

    Tasks run in enqueue order. processed only advances after a task has
    been fully applied, so once processed >= N the first N tasks are
    visible to any goroutine that observed the counter.

Degraded mode:

    With video.multithreaded_rsx disabled the worker is still started but
    returns at once, and every request runs synchronously on the caller.
*/

package main

import (
	"sync/atomic"
	"time"
)

type workerState uint32

const (
	WORKER_CREATED workerState = iota
	WORKER_RUNNING
	WORKER_FINISHED
)

func (s workerState) String() string {
	switch s {
	case WORKER_CREATED:
		return "created"
	case WORKER_RUNNING:
		return "running"
	case WORKER_FINISHED:
		return "finished"
	}
	return "unknown"
}

// offloadShared is everything the worker and the producer both touch.
type offloadShared struct {
	queue     offloadQueue
	enqueued  atomic.Uint64 // producer writes
	processed atomic.Uint64 // worker writes
	state     atomic.Uint32
}

func (s *offloadShared) drained() bool {
	return s.enqueued.Load() == s.processed.Load()
}

// drain applies one detached batch, publishing progress after every task
// so a waiter can observe a partially applied batch.
func (s *offloadShared) drain(metrics *offloadMetrics) {
	for batch := s.queue.popAll(); !batch.empty(); batch.popFront() {
		task := batch.front()
		applyOffloadTask(task)
		s.processed.Add(1)
		metrics.observeProcessed(task.kind())
	}
}

// offloadWorkerConfig is the read-only part of the configuration the
// worker needs, captured once at Init.
type offloadWorkerConfig struct {
	enabled    bool
	pinToCores bool
	affinity   []int
	policy     SpinPolicy
	metrics    *offloadMetrics
}

// runOffloadWorker is the worker goroutine body.
func runOffloadWorker(shared *offloadShared, cfg offloadWorkerConfig, done chan<- struct{}) {
	defer close(done)

	if !cfg.enabled {
		logDebug("offload worker disabled, running transfers inline")
		return
	}

	if cfg.pinToCores {
		if err := applyWorkerAffinity(cfg.affinity); err != nil {
			logWarn("failed to apply offload worker affinity", "cpus", cfg.affinity, "error", err)
		} else {
			logDebug("offload worker pinned", "cpus", cfg.affinity)
		}
	}

	shared.state.CompareAndSwap(uint32(WORKER_CREATED), uint32(WORKER_RUNNING))
	logDebug("offload worker started")

	idle := cfg.policy.idleWaiter()
	for workerState(shared.state.Load()) != WORKER_FINISHED {
		if !shared.drained() {
			idle.hit()
			shared.drain(cfg.metrics)
		} else {
			idle.miss()
		}
	}

	// Apply whatever was queued before the finished flag landed rather
	// than marking it processed unseen.
	for !shared.drained() {
		shared.drain(cfg.metrics)
	}

	logDebug("offload worker exited", "processed", shared.processed.Load())
}

// DMAManager owns the offload worker for one rendering session.
// All methods except Stats and Done must be called from the single
// producer goroutine.
type DMAManager struct {
	shared *offloadShared
	done   atomic.Pointer[chan struct{}] // current session's exit channel

	multithreaded     bool
	immediateTransfer uint32
	pinToCores        bool
	affinity          []int
	policy            SpinPolicy
	metrics           *offloadMetrics

	started   bool
	immediate atomic.Uint64
}

type DMAOption func(*DMAManager)

// WithSpinPolicy overrides the wait policy derived from the config.
func WithSpinPolicy(p SpinPolicy) DMAOption {
	return func(m *DMAManager) { m.policy = p }
}

func WithOffloadMetrics(metrics *offloadMetrics) DMAOption {
	return func(m *DMAManager) { m.metrics = metrics }
}

func NewDMAManager(cfg Config, opts ...DMAOption) *DMAManager {
	m := &DMAManager{
		shared:            &offloadShared{},
		multithreaded:     cfg.Video.MultithreadedRSX,
		immediateTransfer: cfg.Video.ImmediateTransferSize,
		pinToCores:        cfg.Core.ThreadSchedulerEnabled,
		affinity:          append([]int(nil), cfg.Core.RSXAffinity...),
		policy:            cfg.SpinPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init starts a fresh session: counters reset, stale tasks dropped and a
// new worker spawned. A session still running is joined first.
func (m *DMAManager) Init() {
	if m.started {
		m.Join()
	}

	m.shared.state.Store(uint32(WORKER_CREATED))
	m.shared.enqueued.Store(0)
	m.shared.processed.Store(0)
	m.immediate.Store(0)

	// Empty work queue in case of stale contents
	m.shared.queue.popAll()

	done := make(chan struct{})
	m.done.Store(&done)
	m.started = true

	go runOffloadWorker(m.shared, offloadWorkerConfig{
		enabled:    m.multithreaded,
		pinToCores: m.pinToCores,
		affinity:   m.affinity,
		policy:     m.policy,
		metrics:    m.metrics,
	}, done)
}

func (m *DMAManager) enqueue(t offloadTask) {
	if !m.started {
		panic("rsx: offload task enqueued outside an Init/Join session")
	}
	m.shared.enqueued.Add(1)
	m.shared.queue.push(t)
	m.metrics.observeEnqueue(t.kind(), t.size())
}

func (m *DMAManager) runsInline(length uint32) bool {
	return length <= m.immediateTransfer || !m.multithreaded
}

// Copy transfers length bytes from src to dst. src is referenced, not
// copied, when the transfer is offloaded: it must stay untouched until Sync.
//
// Inline transfers are not ordered against queued ones. Sync before
// rewriting a range an offloaded task may still target.
func (m *DMAManager) Copy(dst, src []byte, length uint32) {
	if m.runsInline(length) {
		copy(dst[:length], src[:length])
		m.immediate.Add(1)
		m.metrics.observeImmediate(OFFLOAD_RAW_COPY)
		return
	}
	m.enqueue(rawCopyTask{dst: dst[:length], src: src[:length]})
}

// CopyVector transfers length bytes from src to dst, snapshotting src when
// the transfer is offloaded so the caller may reuse it immediately.
func (m *DMAManager) CopyVector(dst, src []byte, length uint32) {
	if m.runsInline(length) {
		copy(dst[:length], src[:length])
		m.immediate.Add(1)
		m.metrics.observeImmediate(OFFLOAD_VECTOR_COPY)
		return
	}
	data := make([]byte, length)
	copy(data, src[:length])
	m.enqueue(vectorCopyTask{dst: dst[:length], data: data})
}

// EmulateAsIndexed writes the index buffer that draws count vertices of
// primitive as a list. dst must hold IndexBufferSize(primitive, count) bytes.
func (m *DMAManager) EmulateAsIndexed(dst []byte, primitive PrimitiveType, count uint32) {
	if !m.multithreaded {
		WriteIndexArrayForNonIndexedNonNativePrimitive(dst, primitive, count)
		m.immediate.Add(1)
		m.metrics.observeImmediate(OFFLOAD_INDEX_EMULATE)
		return
	}
	m.enqueue(indexEmulateTask{dst: dst, primitive: primitive, count: count})
}

// Sync blocks until every task enqueued so far has been applied.
func (m *DMAManager) Sync() {
	s := m.shared
	if s.drained() {
		// Nothing to do
		m.metrics.observeSyncFastPath()
		return
	}

	start := time.Now()
	w := m.policy.syncWaiter()
	for !s.drained() {
		w.miss()
	}
	m.metrics.observeSync(time.Since(start))
}

// Join drains outstanding work and stops the worker. The manager needs a
// fresh Init before further use.
func (m *DMAManager) Join() {
	if !m.started {
		return
	}
	m.shared.state.Store(uint32(WORKER_FINISHED))
	m.Sync()
	<-*m.done.Load()
	m.started = false
}

// Done is closed when the current session's worker goroutine has exited.
// It returns nil before the first Init.
func (m *DMAManager) Done() <-chan struct{} {
	done := m.done.Load()
	if done == nil {
		return nil
	}
	return *done
}

type OffloadStats struct {
	Enqueued       uint64
	Processed      uint64
	Immediate      uint64
	State          workerState
	Multithreaded  bool
	ImmediateLimit uint32
}

// Stats is safe to call from any goroutine.
func (m *DMAManager) Stats() OffloadStats {
	return OffloadStats{
		Enqueued:       m.shared.enqueued.Load(),
		Processed:      m.shared.processed.Load(),
		Immediate:      m.immediate.Load(),
		State:          workerState(m.shared.state.Load()),
		Multithreaded:  m.multithreaded,
		ImmediateLimit: m.immediateTransfer,
	}
}
